package types

// Common symbol kinds. Extractors may emit other language specific kinds;
// the symbol index stores whatever tag the extractor reports.
const (
	KindFunction  = "function"
	KindMethod    = "method"
	KindClass     = "class"
	KindStruct    = "struct"
	KindInterface = "interface"
	KindType      = "type"
	KindConst     = "constant"
	KindVar       = "variable"
	KindField     = "field"
)

// SymbolRecord is one declaration in the flat symbol table
type SymbolRecord struct {
	Path     string `json:"path"`
	RelPath  string `json:"rel_path"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Line     int    `json:"line"`
	Language string `json:"lang"`
}

// Validate checks that the record identifies a declaration
func (s *SymbolRecord) Validate() error {
	if s.Path == "" {
		return ErrMissingPath
	}
	if s.Name == "" {
		return ErrMissingName
	}
	if s.Line <= 0 {
		return ErrInvalidLineRange
	}
	return nil
}
