package types

// Hit sources used by the mixed search
const (
	SourceSymbol   = "symbol"
	SourceChunk    = "chunk"
	SourceFile     = "file"
	SourceEndpoint = "endpoint"
)

// Hit is a single ranked search result from any index
type Hit struct {
	Source  string  `json:"source"`
	Path    string  `json:"path"`
	RelPath string  `json:"rel_path"`
	Line    int     `json:"line,omitempty"` // Declaration line or chunk start line; 0 for file hits
	EndLine int     `json:"end_line,omitempty"`
	Score   float64 `json:"score"`

	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Language string `json:"lang,omitempty"`
	Preview  string `json:"preview,omitempty"`

	// Endpoint fields
	Method    string `json:"method,omitempty"`
	Route     string `json:"route,omitempty"`
	Framework string `json:"framework,omitempty"`
	Handler   string `json:"handler,omitempty"`

	Identifiers []string `json:"identifiers,omitempty"`
}

// SearchResponse is the well-formed result of every query operation
type SearchResponse struct {
	Hits    []Hit  `json:"hits"`
	Total   int    `json:"total"` // Matches before truncation to top-k
	Message string `json:"message,omitempty"`
}
