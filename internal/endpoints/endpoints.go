// Package endpoints detects HTTP route declarations with per-language
// regular expressions. Detection is purely textual: it can miss
// non-idiomatic declarations and can match unrelated text of the same
// shape.
package endpoints

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dshills/reporecall/internal/chunker"
	"github.com/dshills/reporecall/internal/manifest"
	"github.com/dshills/reporecall/pkg/types"
)

const (
	// previewContext is the number of lines kept on each side of a match
	previewContext = 2

	defaultLookahead = 10
	javaLookahead    = 20
)

// declarationPatterns find the function or method a decorator or
// annotation applies to
var declarationPatterns = map[string][]*regexp.Regexp{
	"python":     {regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)},
	"go":         {regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*[\[(]`)},
	"ruby":       {regexp.MustCompile(`^\s*def\s+(?:self\.)?([A-Za-z_]\w*[?!]?)`)},
	"php":        {regexp.MustCompile(`\bfunction\s+([A-Za-z_]\w*)\s*\(`)},
	"kotlin":     {regexp.MustCompile(`\bfun\s+(?:<[^>]*>\s*)?(?:[\w.]+\.)?([A-Za-z_]\w*)\s*\(`)},
	"java":       {regexp.MustCompile(`^\s*(?:(?:public|protected|private|static|final|synchronized|abstract)\s+)*[\w<>\[\],.?]+(?:\s*<[^>]*>)?\s+([A-Za-z_]\w*)\s*\(`)},
	"javascript": jsDeclarations,
	"typescript": jsDeclarations,
}

var jsDeclarations = []*regexp.Regexp{
	regexp.MustCompile(`\bfunction\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`),
	regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|async|readonly)\s+)*([A-Za-z_$][\w$]*)\s*\(`),
}

// notHandlers are call-shaped keywords the declaration patterns can match
var notHandlers = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "function": true, "new": true, "super": true, "this": true,
}

// Detector scans text files for route declarations
type Detector struct {
	logger *slog.Logger
}

// New creates a Detector
func New(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Supports reports whether any route idiom is known for a language
func Supports(language string) bool {
	return len(patternsByLanguage[language]) > 0
}

// Build scans every text file of the manifest whose language has route
// idioms. Unreadable files are skipped.
func (d *Detector) Build(ctx context.Context, files []types.FileRecord) ([]types.EndpointRecord, error) {
	var out []types.EndpointRecord
	for i := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := &files[i]
		if !f.IsText || !Supports(f.Language) {
			continue
		}
		lines, err := manifest.ReadLines(f.Path)
		if err != nil {
			d.logger.Debug("endpoint scan skipped file", "path", f.RelPath, "error", err)
			continue
		}
		out = append(out, d.DetectLines(f, lines)...)
	}
	d.logger.Debug("endpoints detected", "endpoints", len(out))
	return out, nil
}

// DetectLines scans already-read lines of one file. A declaration bound to
// several methods yields one record per method at the same line.
func (d *Detector) DetectLines(f *types.FileRecord, lines []string) []types.EndpointRecord {
	patterns := patternsByLanguage[f.Language]
	if len(patterns) == 0 {
		return nil
	}

	var out []types.EndpointRecord
	for i, line := range lines {
		p, m, ok := firstMatch(patterns, line)
		if !ok {
			continue
		}

		route := m.route
		if route == "" {
			route = "/"
		}
		handler := m.handler
		if handler == "" {
			handler = findHandler(f.Language, lines, i+1)
		}
		preview := chunker.Preview(previewWindow(lines, i), types.PreviewChars)

		for _, method := range normalizeMethods(m.methods) {
			out = append(out, types.EndpointRecord{
				Path:      f.Path,
				RelPath:   f.RelPath,
				Line:      i + 1,
				Method:    method,
				Route:     route,
				Framework: p.framework,
				Handler:   handler,
				Preview:   preview,
			})
		}
	}
	return out
}

func firstMatch(patterns []*routePattern, line string) (*routePattern, match, bool) {
	for _, p := range patterns {
		sm := p.re.FindStringSubmatch(line)
		if sm == nil {
			continue
		}
		if m, ok := p.extract(sm); ok {
			return p, m, true
		}
	}
	return nil, match{}, false
}

// findHandler looks ahead a bounded number of lines for the next function
// or method declaration. Decorator and annotation lines are skipped.
func findHandler(language string, lines []string, start int) string {
	patterns := declarationPatterns[language]
	if len(patterns) == 0 {
		return ""
	}
	limit := defaultLookahead
	if language == "java" || language == "kotlin" {
		limit = javaLookahead
	}

	end := min(len(lines), start+limit)
	for j := start; j < end; j++ {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" || strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "#[") {
			continue
		}
		for _, re := range patterns {
			if m := re.FindStringSubmatch(lines[j]); m != nil && !notHandlers[m[1]] {
				return m[1]
			}
		}
	}
	return ""
}

// previewWindow returns the match line with previewContext lines on each side
func previewWindow(lines []string, idx int) string {
	start := max(0, idx-previewContext)
	end := min(len(lines), idx+previewContext+1)
	return strings.Join(lines[start:end], "\n")
}
