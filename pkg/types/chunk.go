package types

// PreviewChars is the maximum number of characters kept in a chunk preview
const PreviewChars = 300

// MaxChunkIdentifiers is the number of salient identifiers kept per chunk
const MaxChunkIdentifiers = 20

// ChunkRecord is one overlapping line window of a text file
type ChunkRecord struct {
	Path        string   `json:"path"`
	RelPath     string   `json:"rel_path"`
	StartLine   int      `json:"start_line"` // 1-based, inclusive
	EndLine     int      `json:"end_line"`   // 1-based, inclusive
	Language    string   `json:"lang"`
	Preview     string   `json:"preview"`
	Identifiers []string `json:"identifiers"`
}

// Validate checks the chunk's line window
func (c *ChunkRecord) Validate() error {
	if c.Path == "" {
		return ErrMissingPath
	}
	if c.StartLine <= 0 || c.EndLine < c.StartLine {
		return ErrInvalidLineRange
	}
	return nil
}

// LineCount returns the number of lines covered by the window
func (c *ChunkRecord) LineCount() int {
	return c.EndLine - c.StartLine + 1
}
