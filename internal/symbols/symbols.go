package symbols

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/reporecall/internal/config"
	"github.com/dshills/reporecall/internal/scope"
	"github.com/dshills/reporecall/pkg/types"
)

// Extractor names accepted by New
const (
	NameCtags      = "ctags"
	NameGo         = "go"
	NameTreeSitter = "treesitter"
	NameAuto       = "auto"
	NameNone       = "none"
)

// Request describes one extraction over a manifest
type Request struct {
	Root     *scope.Root
	ScanRoot string
	Files    []types.FileRecord
}

// Extractor produces the flat declaration table for a scan root.
// available=false means the extractor could not run at all; callers treat
// that as an empty symbol index, never as an error.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, req Request) (records []types.SymbolRecord, available bool)
}

// New selects an extractor from configuration
func New(cfg config.SymbolsConfig, logger *slog.Logger) Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Extractor) {
	case NameNone:
		return Noop{}
	case NameGo:
		return NewGoAST(logger)
	case NameTreeSitter:
		return NewTreeSitter(logger)
	case NameAuto:
		return &Auto{
			primary:  newCtagsFromConfig(cfg, logger),
			fallback: NewTreeSitter(logger),
			logger:   logger,
		}
	default:
		return newCtagsFromConfig(cfg, logger)
	}
}

func newCtagsFromConfig(cfg config.SymbolsConfig, logger *slog.Logger) *Ctags {
	c := NewCtags(cfg.CtagsPath, logger)
	if cfg.TimeoutSeconds > 0 {
		c.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.WaitSeconds > 0 {
		c.Wait = time.Duration(cfg.WaitSeconds) * time.Second
	}
	return c
}

// Noop never produces symbols
type Noop struct{}

// Name implements Extractor
func (Noop) Name() string { return NameNone }

// Extract implements Extractor
func (Noop) Extract(context.Context, Request) ([]types.SymbolRecord, bool) {
	return nil, false
}

// Auto prefers the external tool and falls back to the in-process parser
type Auto struct {
	primary  Extractor
	fallback Extractor
	logger   *slog.Logger
}

// Name implements Extractor
func (a *Auto) Name() string { return NameAuto }

// Extract implements Extractor
func (a *Auto) Extract(ctx context.Context, req Request) ([]types.SymbolRecord, bool) {
	if records, ok := a.primary.Extract(ctx, req); ok {
		return records, true
	}
	a.logger.Debug("symbol extractor unavailable, falling back", "primary", a.primary.Name(), "fallback", a.fallback.Name())
	return a.fallback.Extract(ctx, req)
}

// textFiles returns the text records of a manifest keyed by relative path
func textFiles(files []types.FileRecord) map[string]*types.FileRecord {
	out := make(map[string]*types.FileRecord, len(files))
	for i := range files {
		if files[i].IsText {
			out[files[i].RelPath] = &files[i]
		}
	}
	return out
}

// kindAliases maps extractor specific kind names onto the common kinds
var kindAliases = map[string]string{
	"func":            types.KindFunction,
	"function":        types.KindFunction,
	"subroutine":      types.KindFunction,
	"procedure":       types.KindFunction,
	"method":          types.KindMethod,
	"methodspec":      types.KindMethod,
	"singletonmethod": types.KindMethod,
	"class":           types.KindClass,
	"struct":          types.KindStruct,
	"interface":       types.KindInterface,
	"type":            types.KindType,
	"typedef":         types.KindType,
	"alias":           types.KindType,
	"const":           types.KindConst,
	"constant":        types.KindConst,
	"var":             types.KindVar,
	"variable":        types.KindVar,
	"field":           types.KindField,
	"property":        types.KindField,
	"member":          types.KindField,
}

// NormalizeKind lower-cases a kind and maps well known aliases
func NormalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if mapped, ok := kindAliases[k]; ok {
		return mapped
	}
	return k
}
