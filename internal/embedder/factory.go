package embedder

import (
	"fmt"
	"strings"

	"github.com/dshills/reporecall/internal/config"
)

// New creates the embedder selected by configuration. Provider "none"
// returns ErrNoProviderEnabled, which callers treat as "no vector backend".
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderLocal:
		return NewLocalProvider(cache), nil
	case ProviderOllama:
		return NewOllamaProvider(cfg.OllamaURL, cfg.Model, cache), nil
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		return p, nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		if cfg.Model != "" {
			p.model = cfg.Model
		}
		return p, nil
	case ProviderNone:
		return nil, ErrNoProviderEnabled
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
