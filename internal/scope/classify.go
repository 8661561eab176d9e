package scope

import (
	"path/filepath"
	"strings"
)

// prunedDirs are never descended into
var prunedDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	".bzr":             true,
	"node_modules":     true,
	"bower_components": true,
	"vendor":           true,
	"dist":             true,
	"build":            true,
	"target":           true,
	"out":              true,
	".next":            true,
	".nuxt":            true,
	".gradle":          true,
	"__pycache__":      true,
	".venv":            true,
	"venv":             true,
	".tox":             true,
	".mypy_cache":      true,
	".pytest_cache":    true,
	".ruff_cache":      true,
	".cache":           true,
	".idea":            true,
	".vscode":          true,
	".terraform":       true,
	"coverage":         true,
	".reporecall":      true,
}

// extLanguages maps indexable extensions to language tags
var extLanguages = map[string]string{
	".go":      "go",
	".py":      "python",
	".pyi":     "python",
	".js":      "javascript",
	".jsx":     "javascript",
	".mjs":     "javascript",
	".cjs":     "javascript",
	".ts":      "typescript",
	".tsx":     "typescript",
	".java":    "java",
	".kt":      "kotlin",
	".kts":     "kotlin",
	".scala":   "scala",
	".rb":      "ruby",
	".php":     "php",
	".rs":      "rust",
	".c":       "c",
	".h":       "c",
	".cc":      "cpp",
	".cpp":     "cpp",
	".cxx":     "cpp",
	".hpp":     "cpp",
	".cs":      "csharp",
	".swift":   "swift",
	".m":       "objc",
	".lua":     "lua",
	".sh":      "shell",
	".bash":    "shell",
	".zsh":     "shell",
	".ps1":     "powershell",
	".sql":     "sql",
	".html":    "html",
	".htm":     "html",
	".css":     "css",
	".scss":    "css",
	".vue":     "vue",
	".svelte":  "svelte",
	".md":      "markdown",
	".rst":     "rst",
	".txt":     "text",
	".json":    "json",
	".yaml":    "yaml",
	".yml":     "yaml",
	".toml":    "toml",
	".ini":     "ini",
	".cfg":     "ini",
	".xml":     "xml",
	".proto":   "protobuf",
	".graphql": "graphql",
	".tf":      "terraform",
	".ex":      "elixir",
	".exs":     "elixir",
	".erl":     "erlang",
	".hs":      "haskell",
	".dart":    "dart",
	".r":       "r",
}

// nameLanguages maps extensionless file names to language tags
var nameLanguages = map[string]string{
	"Dockerfile":  "dockerfile",
	"Makefile":    "make",
	"makefile":    "make",
	"GNUmakefile": "make",
	"Gemfile":     "ruby",
	"Rakefile":    "ruby",
	"Jenkinsfile": "groovy",
}

// Classifier decides which entries are indexed
type Classifier struct {
	MaxFileSize int64
}

// NewClassifier creates a classifier with a size ceiling in megabytes.
// A non-positive value selects the 10 MB default.
func NewClassifier(maxFileSizeMB int) *Classifier {
	limit := int64(DefaultMaxFileSize)
	if maxFileSizeMB > 0 {
		limit = int64(maxFileSizeMB) << 20
	}
	return &Classifier{MaxFileSize: limit}
}

// PruneDir reports whether a directory name is on the deny-list
func (c *Classifier) PruneDir(name string) bool {
	return prunedDirs[name]
}

// TooLarge reports whether a file exceeds the size ceiling
func (c *Classifier) TooLarge(size int64) bool {
	return size > c.MaxFileSize
}

// IsText reports whether a file name is on the indexable text allow-list
func (c *Classifier) IsText(name string) bool {
	return DetectLanguage(name) != ""
}

// DetectLanguage returns the language tag for a file name, or "" when the
// file is not indexable text
func DetectLanguage(name string) string {
	base := filepath.Base(name)
	if lang, ok := nameLanguages[base]; ok {
		return lang
	}
	return extLanguages[strings.ToLower(filepath.Ext(base))]
}

// IsPrunedDir reports whether a directory name is on the deny-list
func IsPrunedDir(name string) bool {
	return prunedDirs[name]
}

// PrunedDirs returns the deny-list, for tools that need to exclude the same
// directories (for example the external symbol extractor)
func PrunedDirs() []string {
	dirs := make([]string, 0, len(prunedDirs))
	for d := range prunedDirs {
		dirs = append(dirs, d)
	}
	return dirs
}
