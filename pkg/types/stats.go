package types

import "time"

// Stats summarizes the most recent index build
type Stats struct {
	Root            string    `json:"root"`
	Scope           string    `json:"scope,omitempty"`
	Files           int       `json:"files"`
	Symbols         int       `json:"symbols"`
	Chunks          int       `json:"chunks"`
	Endpoints       int       `json:"endpoints"`
	ChunkLines      int       `json:"chunk_lines"`
	ChunkOverlap    int       `json:"chunk_overlap"`
	SymbolExtractor string    `json:"symbol_extractor"`
	BuiltAt         time.Time `json:"built_at"`
}
