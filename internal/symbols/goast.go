package symbols

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"

	"github.com/dshills/reporecall/pkg/types"
)

// GoAST extracts declarations from Go files with the standard parser
type GoAST struct {
	logger *slog.Logger
}

// NewGoAST creates a Go declaration extractor
func NewGoAST(logger *slog.Logger) *GoAST {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoAST{logger: logger}
}

// Name implements Extractor
func (g *GoAST) Name() string { return NameGo }

// Extract implements Extractor. It is always available; non-Go files are
// ignored and unreadable files are skipped.
func (g *GoAST) Extract(ctx context.Context, req Request) ([]types.SymbolRecord, bool) {
	var records []types.SymbolRecord
	for i := range req.Files {
		if ctx.Err() != nil {
			break
		}
		f := &req.Files[i]
		if !f.IsText || f.Language != "go" {
			continue
		}
		syms, err := g.ParseFile(f)
		if err != nil {
			g.logger.Debug("go parse skipped file", "path", f.RelPath, "error", err)
			continue
		}
		records = append(records, syms...)
	}
	return records, true
}

// ParseFile returns the declarations of one Go file. Syntax errors are
// non-fatal: declarations from the partial AST are still returned.
func (g *GoAST) ParseFile(f *types.FileRecord) ([]types.SymbolRecord, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, f.Path, content, parser.SkipObjectResolution)
	if file == nil {
		return nil, err
	}

	e := &declExtractor{fset: fset, file: f}
	ast.Inspect(file, e.visit)
	return e.records, nil
}

// declExtractor is a visitor for AST traversal that collects declarations
type declExtractor struct {
	fset    *token.FileSet
	file    *types.FileRecord
	records []types.SymbolRecord
}

func (e *declExtractor) visit(node ast.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.(type) {
	case *ast.FuncDecl:
		e.extractFunction(n)
		// Function bodies hold no package level declarations
		return false
	case *ast.GenDecl:
		e.extractGenDecl(n)
	}

	return true
}

func (e *declExtractor) extractFunction(funcDecl *ast.FuncDecl) {
	kind := types.KindFunction
	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		kind = types.KindMethod
	}
	e.add(funcDecl.Name, kind)
}

func (e *declExtractor) extractGenDecl(genDecl *ast.GenDecl) {
	for _, spec := range genDecl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			e.extractTypeSpec(s)
		case *ast.ValueSpec:
			kind := types.KindVar
			if genDecl.Tok == token.CONST {
				kind = types.KindConst
			}
			for _, name := range s.Names {
				if name.Name != "_" {
					e.add(name, kind)
				}
			}
		}
	}
}

func (e *declExtractor) extractTypeSpec(typeSpec *ast.TypeSpec) {
	switch t := typeSpec.Type.(type) {
	case *ast.StructType:
		e.add(typeSpec.Name, types.KindStruct)
		if t.Fields != nil {
			for _, field := range t.Fields.List {
				for _, name := range field.Names {
					e.add(name, types.KindField)
				}
			}
		}
	case *ast.InterfaceType:
		e.add(typeSpec.Name, types.KindInterface)
	default:
		e.add(typeSpec.Name, types.KindType)
	}
}

func (e *declExtractor) add(ident *ast.Ident, kind string) {
	if ident == nil || ident.Name == "" {
		return
	}
	e.records = append(e.records, types.SymbolRecord{
		Path:     e.file.Path,
		RelPath:  e.file.RelPath,
		Name:     ident.Name,
		Kind:     kind,
		Line:     e.fset.Position(ident.Pos()).Line,
		Language: e.file.Language,
	})
}
