// Package chunker divides text files into fixed-size overlapping line
// windows for keyword retrieval.
//
// # Basic Usage
//
//	c := chunker.New(300, 50, logger)
//	chunks, err := c.Build(ctx, manifestRecords)
//	if err != nil {
//	    return err
//	}
//
// # Windowing
//
// Each window start advances by max(1, lines-overlap). The loop stops after
// the window that reaches the last line, so the final window may be shorter
// than the nominal size and always ends exactly at the file's last line.
// Files with zero lines produce no chunks.
//
// For a 700-line file with the defaults:
//
//	1-300, 251-550, 501-700
//
// # Identifiers
//
// Each chunk keeps up to 20 identifier tokens ranked by frequency within
// the window (first occurrence breaks ties), lower-cased, with language
// keywords and English filler removed. The preview holds the first 300
// characters of the window.
package chunker
