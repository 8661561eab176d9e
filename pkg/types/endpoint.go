package types

// MethodAny marks a route registered without an explicit HTTP method
const MethodAny = "ANY"

// EndpointRecord is one detected route declaration
type EndpointRecord struct {
	Path      string `json:"path"`
	RelPath   string `json:"rel_path"`
	Line      int    `json:"line"`
	Method    string `json:"method"`
	Route     string `json:"route"`
	Framework string `json:"framework"`
	Handler   string `json:"handler,omitempty"`
	Preview   string `json:"preview"`
}
