package symbols

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/dshills/reporecall/pkg/types"
)

// GrammarSpec pairs a tree-sitter grammar with a declaration query. Each
// pattern captures the declared identifier as @name and the declaration
// node under a capture named after its symbol kind.
type GrammarSpec struct {
	Language   *sitter.Language
	Query      string
	Extensions []string
}

// Registry maps file extensions to grammar specs
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*GrammarSpec // extension (without dot) → spec
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*GrammarSpec)}
}

// Register adds a grammar spec for its extensions
func (r *Registry) Register(spec *GrammarSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
	}
}

// Lookup returns the spec for a file path based on its extension, or nil
func (r *Registry) Lookup(path string) *GrammarSpec {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[ext]
}

// DefaultRegistry returns a registry with the built-in grammars
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&GrammarSpec{
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @function
			(method_declaration name: (field_identifier) @name) @method
			(type_spec name: (type_identifier) @name type: (struct_type)) @struct
			(type_spec name: (type_identifier) @name type: (interface_type)) @interface
			(type_spec name: (type_identifier) @name) @type
			(field_declaration name: (field_identifier) @name) @field
			(const_spec name: (identifier) @name) @constant
			(var_spec name: (identifier) @name) @variable
		`,
		Extensions: []string{"go"},
	})
	r.Register(&GrammarSpec{
		Language: python.GetLanguage(),
		Query: `
			(function_definition name: (identifier) @name) @function
			(class_definition name: (identifier) @name) @class
		`,
		Extensions: []string{"py", "pyi"},
	})
	r.Register(&GrammarSpec{
		Language: javascript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @function
			(class_declaration name: (identifier) @name) @class
			(method_definition name: (property_identifier) @name) @method
			(variable_declarator name: (identifier) @name value: (arrow_function)) @function
		`,
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
	})
	tsQuery := `
		(function_declaration name: (identifier) @name) @function
		(class_declaration name: (type_identifier) @name) @class
		(method_definition name: (property_identifier) @name) @method
		(variable_declarator name: (identifier) @name value: (arrow_function)) @function
		(interface_declaration name: (type_identifier) @name) @interface
		(type_alias_declaration name: (type_identifier) @name) @type
	`
	r.Register(&GrammarSpec{
		Language:   typescript.GetLanguage(),
		Query:      tsQuery,
		Extensions: []string{"ts"},
	})
	r.Register(&GrammarSpec{
		Language:   tsx.GetLanguage(),
		Query:      tsQuery,
		Extensions: []string{"tsx"},
	})
	return r
}

// TreeSitter extracts declarations in process for the registered grammars
type TreeSitter struct {
	registry *Registry
	logger   *slog.Logger
}

// NewTreeSitter creates an extractor backed by the default registry
func NewTreeSitter(logger *slog.Logger) *TreeSitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TreeSitter{registry: DefaultRegistry(), logger: logger}
}

// Name implements Extractor
func (t *TreeSitter) Name() string { return NameTreeSitter }

// Extract implements Extractor. Files without a registered grammar are
// ignored.
func (t *TreeSitter) Extract(ctx context.Context, req Request) ([]types.SymbolRecord, bool) {
	parser := sitter.NewParser()
	defer parser.Close()

	queries := make(map[*GrammarSpec]*sitter.Query)
	defer func() {
		for _, q := range queries {
			q.Close()
		}
	}()

	var records []types.SymbolRecord
	for i := range req.Files {
		if ctx.Err() != nil {
			break
		}
		f := &req.Files[i]
		if !f.IsText {
			continue
		}
		spec := t.registry.Lookup(f.Path)
		if spec == nil {
			continue
		}

		q, ok := queries[spec]
		if !ok {
			var err error
			q, err = sitter.NewQuery([]byte(spec.Query), spec.Language)
			if err != nil {
				t.logger.Warn("tree-sitter query failed to compile", "ext", filepath.Ext(f.Path), "error", err)
				continue
			}
			queries[spec] = q
		}

		syms, err := t.parseFile(ctx, parser, spec, q, f)
		if err != nil {
			t.logger.Debug("tree-sitter skipped file", "path", f.RelPath, "error", err)
			continue
		}
		records = append(records, syms...)
	}
	return records, true
}

type declKey struct {
	line int
	name string
}

func (t *TreeSitter) parseFile(ctx context.Context, parser *sitter.Parser, spec *GrammarSpec, q *sitter.Query, f *types.FileRecord) ([]types.SymbolRecord, error) {
	src, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.RelPath, err)
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	found := make(map[declKey]types.SymbolRecord)
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var declNode, nameNode *sitter.Node
		var kind string
		for _, c := range m.Captures {
			capName := q.CaptureNameForId(c.Index)
			if capName == "name" {
				nameNode = c.Node
				continue
			}
			declNode = c.Node
			kind = capName
		}
		if declNode == nil || nameNode == nil {
			continue
		}
		if kind == types.KindFunction && isPythonMethod(declNode) {
			kind = types.KindMethod
		}

		rec := types.SymbolRecord{
			Path:     f.Path,
			RelPath:  f.RelPath,
			Name:     nameNode.Content(src),
			Kind:     kind,
			Line:     int(nameNode.StartPoint().Row) + 1,
			Language: f.Language,
		}
		key := declKey{line: rec.Line, name: rec.Name}
		// A generic type pattern also matches struct and interface specs
		if prev, dup := found[key]; dup && prev.Kind != types.KindType {
			continue
		}
		found[key] = rec
	}

	out := make([]types.SymbolRecord, 0, len(found))
	for _, rec := range found {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// isPythonMethod reports whether a function definition sits directly in a
// class body, optionally behind decorators
func isPythonMethod(n *sitter.Node) bool {
	if n.Type() != "function_definition" {
		return false
	}
	p := n.Parent()
	if p != nil && p.Type() == "decorated_definition" {
		p = p.Parent()
	}
	if p == nil || p.Type() != "block" {
		return false
	}
	gp := p.Parent()
	return gp != nil && gp.Type() == "class_definition"
}
