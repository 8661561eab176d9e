package chunker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dshills/reporecall/internal/manifest"
	"github.com/dshills/reporecall/internal/tokenize"
	"github.com/dshills/reporecall/pkg/types"
)

const (
	// DefaultLines is the nominal window size in lines
	DefaultLines = 300

	// DefaultOverlap is the number of lines shared by consecutive windows
	DefaultOverlap = 50
)

// Window is a 1-based inclusive line range
type Window struct {
	Start int
	End   int
}

// Chunker splits text files into overlapping line windows
type Chunker struct {
	lines   int
	overlap int
	logger  *slog.Logger
}

// New creates a Chunker. Non-positive sizes fall back to the defaults and
// a negative overlap is treated as zero.
func New(lines, overlap int, logger *slog.Logger) *Chunker {
	if lines <= 0 {
		lines = DefaultLines
	}
	if overlap < 0 {
		overlap = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{lines: lines, overlap: overlap, logger: logger}
}

func step(size, overlap int) int {
	return max(1, size-overlap)
}

// Windows returns the windows covering a file of n lines. The last window
// always ends at n and no window extends past it.
func Windows(n, size, overlap int) []Window {
	if n <= 0 || size <= 0 {
		return nil
	}
	advance := step(size, overlap)

	var out []Window
	for start := 1; ; start += advance {
		end := min(start+size-1, n)
		out = append(out, Window{Start: start, End: end})
		if end == n {
			break
		}
	}
	return out
}

// Build chunks every text file of the manifest. Files that cannot be read
// are skipped.
func (c *Chunker) Build(ctx context.Context, files []types.FileRecord) ([]types.ChunkRecord, error) {
	var out []types.ChunkRecord
	skipped := 0
	for i := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := &files[i]
		if !f.IsText {
			continue
		}
		chunks, err := c.ChunkFile(f)
		if err != nil {
			skipped++
			c.logger.Debug("chunking skipped file", "path", f.RelPath, "error", err)
			continue
		}
		out = append(out, chunks...)
	}
	c.logger.Debug("chunks built", "chunks", len(out), "skipped", skipped)
	return out, nil
}

// ChunkFile reads one file and chunks its lines
func (c *Chunker) ChunkFile(f *types.FileRecord) ([]types.ChunkRecord, error) {
	lines, err := manifest.ReadLines(f.Path)
	if err != nil {
		return nil, err
	}
	return c.ChunkLines(f, lines), nil
}

// ChunkLines chunks already-read lines. Zero lines produce no chunks.
func (c *Chunker) ChunkLines(f *types.FileRecord, lines []string) []types.ChunkRecord {
	windows := Windows(len(lines), c.lines, c.overlap)
	if len(windows) == 0 {
		return nil
	}

	out := make([]types.ChunkRecord, 0, len(windows))
	for _, w := range windows {
		text := strings.Join(lines[w.Start-1:w.End], "\n")
		ids := tokenize.TopIdentifiers(text, types.MaxChunkIdentifiers)
		if ids == nil {
			ids = []string{}
		}
		out = append(out, types.ChunkRecord{
			Path:        f.Path,
			RelPath:     f.RelPath,
			StartLine:   w.Start,
			EndLine:     w.End,
			Language:    f.Language,
			Preview:     Preview(text, types.PreviewChars),
			Identifiers: ids,
		})
	}
	return out
}

// Preview returns at most n characters of text, never splitting a rune
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
