package types

import "time"

// FileRecord describes one entry of the file manifest
type FileRecord struct {
	Path     string    `json:"path"`     // Absolute, symlinks resolved
	RelPath  string    `json:"rel_path"` // Relative to project root, slash separated
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mtime"`
	IsText   bool      `json:"is_text"`
	Language string    `json:"lang"`
	Lines    *int      `json:"lines"` // Nil when the file could not be read
}

// LineCount returns the line count or 0 when it is unknown
func (f *FileRecord) LineCount() int {
	if f.Lines == nil {
		return 0
	}
	return *f.Lines
}
