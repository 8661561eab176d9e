// Package config loads reporecall settings from an optional TOML file with
// environment variable overrides applied on top of built-in defaults.
//
// Configuration is resolved in this order (later wins):
//   - Built-in defaults (Default)
//   - <project>/.reporecall/config.toml, when present
//   - REPORECALL_* environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultStateDir is the project-scoped state directory name
const DefaultStateDir = ".reporecall"

// FileName is the config file name inside the state directory
const FileName = "config.toml"

// Config is the complete reporecall configuration
type Config struct {
	Index     IndexConfig     `toml:"index"`
	Symbols   SymbolsConfig   `toml:"symbols"`
	Memory    MemoryConfig    `toml:"memory"`
	Embedding EmbeddingConfig `toml:"embedding"`
}

// IndexConfig controls the code index build
type IndexConfig struct {
	// StateDir is relative to the project root unless absolute
	StateDir      string `toml:"state_dir"`
	MaxFileSizeMB int    `toml:"max_file_size_mb"`
	ChunkLines    int    `toml:"chunk_lines"`
	ChunkOverlap  int    `toml:"chunk_overlap"`
}

// SymbolsConfig selects and bounds the declaration extractor
type SymbolsConfig struct {
	// Extractor is one of: ctags, go, treesitter, auto, none
	Extractor      string `toml:"extractor"`
	CtagsPath      string `toml:"ctags_path"`
	WaitSeconds    int    `toml:"wait_seconds"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MemoryConfig holds the memory store heuristics
type MemoryConfig struct {
	CandidatesPerTurn  int     `toml:"candidates_per_turn"`
	SeedImportance     float64 `toml:"seed_importance"`
	ImportanceStep     float64 `toml:"importance_step"`
	VectorWeight       float64 `toml:"vector_weight"`
	ImportanceWeight   float64 `toml:"importance_weight"`
	RecencyWeight      float64 `toml:"recency_weight"`
	KeywordWeight      float64 `toml:"keyword_weight"`
	DuplicateThreshold float64 `toml:"duplicate_threshold"`
	Overfetch          int     `toml:"overfetch"`
}

// EmbeddingConfig selects the embedding backend used by the vector index
type EmbeddingConfig struct {
	// Provider is one of: local, ollama, openai, jina, none
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	OllamaURL string `toml:"ollama_url"`
	APIKey    string `toml:"api_key"`
	CacheSize int    `toml:"cache_size"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			StateDir:      DefaultStateDir,
			MaxFileSizeMB: 10,
			ChunkLines:    300,
			ChunkOverlap:  50,
		},
		Symbols: SymbolsConfig{
			Extractor:      "ctags",
			CtagsPath:      "ctags",
			WaitSeconds:    5,
			TimeoutSeconds: 120,
		},
		Memory: MemoryConfig{
			CandidatesPerTurn:  3,
			SeedImportance:     0.6,
			ImportanceStep:     0.05,
			VectorWeight:       0.6,
			ImportanceWeight:   0.25,
			RecencyWeight:      0.15,
			KeywordWeight:      0.2,
			DuplicateThreshold: 0.88,
			Overfetch:          20,
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			OllamaURL: "http://127.0.0.1:11434",
			CacheSize: 10000,
		},
	}
}

// Path returns the config file location for a project root
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, DefaultStateDir, FileName)
}

// Load reads the config file at path on top of the defaults. A missing file
// is not an error. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode TOML file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// StateDir resolves the state directory for a project root
func (c *Config) StateDir(projectRoot string) string {
	if filepath.IsAbs(c.Index.StateDir) {
		return c.Index.StateDir
	}
	return filepath.Join(projectRoot, c.Index.StateDir)
}

// SetDefaults fills zero values left by a partial config file
func (c *Config) SetDefaults() {
	d := Default()
	if c.Index.StateDir == "" {
		c.Index.StateDir = d.Index.StateDir
	}
	if c.Index.MaxFileSizeMB <= 0 {
		c.Index.MaxFileSizeMB = d.Index.MaxFileSizeMB
	}
	if c.Index.ChunkLines <= 0 {
		c.Index.ChunkLines = d.Index.ChunkLines
	}
	if c.Index.ChunkOverlap < 0 {
		c.Index.ChunkOverlap = d.Index.ChunkOverlap
	}
	if c.Symbols.Extractor == "" {
		c.Symbols.Extractor = d.Symbols.Extractor
	}
	if c.Symbols.CtagsPath == "" {
		c.Symbols.CtagsPath = d.Symbols.CtagsPath
	}
	if c.Symbols.WaitSeconds <= 0 {
		c.Symbols.WaitSeconds = d.Symbols.WaitSeconds
	}
	if c.Symbols.TimeoutSeconds <= 0 {
		c.Symbols.TimeoutSeconds = d.Symbols.TimeoutSeconds
	}
	if c.Memory.CandidatesPerTurn <= 0 {
		c.Memory.CandidatesPerTurn = d.Memory.CandidatesPerTurn
	}
	if c.Memory.SeedImportance <= 0 {
		c.Memory.SeedImportance = d.Memory.SeedImportance
	}
	if c.Memory.ImportanceStep <= 0 {
		c.Memory.ImportanceStep = d.Memory.ImportanceStep
	}
	if c.Memory.DuplicateThreshold <= 0 {
		c.Memory.DuplicateThreshold = d.Memory.DuplicateThreshold
	}
	if c.Memory.Overfetch <= 0 {
		c.Memory.Overfetch = d.Memory.Overfetch
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = d.Embedding.Provider
	}
	if c.Embedding.OllamaURL == "" {
		c.Embedding.OllamaURL = d.Embedding.OllamaURL
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = d.Embedding.CacheSize
	}
}

// ApplyEnvOverrides applies REPORECALL_* environment variables
func (c *Config) ApplyEnvOverrides() {
	if dir := os.Getenv("REPORECALL_STATE_DIR"); dir != "" {
		c.Index.StateDir = dir
	}
	if v := envInt("REPORECALL_MAX_FILE_SIZE_MB"); v > 0 {
		c.Index.MaxFileSizeMB = v
	}
	if v := envInt("REPORECALL_CHUNK_LINES"); v > 0 {
		c.Index.ChunkLines = v
	}
	if ext := os.Getenv("REPORECALL_SYMBOL_EXTRACTOR"); ext != "" {
		c.Symbols.Extractor = strings.ToLower(ext)
	}
	if path := os.Getenv("REPORECALL_CTAGS"); path != "" {
		c.Symbols.CtagsPath = path
	}
	if provider := os.Getenv("REPORECALL_EMBEDDING_PROVIDER"); provider != "" {
		c.Embedding.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv("REPORECALL_EMBEDDING_MODEL"); model != "" {
		c.Embedding.Model = model
	}
	if url := os.Getenv("REPORECALL_OLLAMA_URL"); url != "" {
		c.Embedding.OllamaURL = url
	}
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validExtractors = map[string]bool{"ctags": true, "go": true, "treesitter": true, "auto": true, "none": true}
	validProviders  = map[string]bool{"local": true, "ollama": true, "openai": true, "jina": true, "none": true}
)

// Validate checks the configuration for out-of-range values
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Index.ChunkOverlap >= c.Index.ChunkLines {
		errs = append(errs, ValidationError{
			Field:   "index.chunk_overlap",
			Message: fmt.Sprintf("overlap %d must be smaller than chunk_lines %d", c.Index.ChunkOverlap, c.Index.ChunkLines),
		})
	}
	if !validExtractors[strings.ToLower(c.Symbols.Extractor)] {
		errs = append(errs, ValidationError{
			Field:   "symbols.extractor",
			Message: fmt.Sprintf("invalid extractor '%s', must be one of: ctags, go, treesitter, auto, none", c.Symbols.Extractor),
		})
	}
	if !validProviders[strings.ToLower(c.Embedding.Provider)] {
		errs = append(errs, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: local, ollama, openai, jina, none", c.Embedding.Provider),
		})
	}
	if c.Memory.SeedImportance > 1 {
		errs = append(errs, ValidationError{Field: "memory.seed_importance", Message: "must be within [0,1]"})
	}
	if c.Memory.DuplicateThreshold > 1 {
		errs = append(errs, ValidationError{Field: "memory.duplicate_threshold", Message: "must be within [0,1]"})
	}
	for field, w := range map[string]float64{
		"memory.vector_weight":     c.Memory.VectorWeight,
		"memory.importance_weight": c.Memory.ImportanceWeight,
		"memory.recency_weight":    c.Memory.RecencyWeight,
		"memory.keyword_weight":    c.Memory.KeywordWeight,
	} {
		if w < 0 {
			errs = append(errs, ValidationError{Field: field, Message: "weight cannot be negative"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Save writes the configuration as TOML, creating parent directories
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return nil
}
