package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
	ProviderNone   = "none"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOllamaURL   = "http://127.0.0.1:11434"

	// Dimensions of the default remote models
	JinaDimension   = 1024
	OpenAIDimension = 1536

	// MaxBatchSize bounds a single API request
	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// API key environment variables, used when the config has no key
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	jinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	openAIEndpoint = "https://api.openai.com/v1/embeddings"
)

// wireFormat selects the request/response shape of an embeddings API
type wireFormat int

const (
	// {"input": [...], "model": m} -> {"data": [{"embedding": [...], "index": i}]}
	formatOpenAI wireFormat = iota
	// {"model": m, "input": [...]} -> {"embeddings": [[...]]}
	formatOllama
)

// HTTPProvider calls a remote embeddings API
type HTTPProvider struct {
	name       string
	model      string
	endpoint   string
	apiKey     string
	format     wireFormat
	dimension  atomic.Int64
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewJinaProvider creates a Jina AI embedder
func NewJinaProvider(apiKey string, cache *Cache) (*HTTPProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	p := newHTTPProvider(ProviderJina, DefaultJinaModel, jinaEndpoint, formatOpenAI, 30*time.Second, cache)
	p.apiKey = apiKey
	p.dimension.Store(JinaDimension)
	return p, nil
}

// NewOpenAIProvider creates an OpenAI embedder
func NewOpenAIProvider(apiKey string, cache *Cache) (*HTTPProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	p := newHTTPProvider(ProviderOpenAI, DefaultOpenAIModel, openAIEndpoint, formatOpenAI, 30*time.Second, cache)
	p.apiKey = apiKey
	p.dimension.Store(OpenAIDimension)
	return p, nil
}

// NewOllamaProvider creates an embedder for a local Ollama server's
// /api/embed endpoint. The dimension is learned from the first response.
func NewOllamaProvider(baseURL, model string, cache *Cache) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/api/embed"
	return newHTTPProvider(ProviderOllama, model, endpoint, formatOllama, 120*time.Second, cache)
}

func newHTTPProvider(name, model, endpoint string, format wireFormat, timeout time.Duration, cache *Cache) *HTTPProvider {
	return &HTTPProvider{
		name:       name,
		model:      model,
		endpoint:   endpoint,
		format:     format,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		retry:      DefaultRetryConfig(),
	}
}

// GenerateEmbedding implements Embedder
func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, p, req)
}

// GenerateBatch implements Embedder
func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	embeddings, err := cachedBatch(ctx, p.cache, p.name, p.model, req.Texts, func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.callAPI(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, p.name, err)
		}
		return vectors, nil
	})
	if err != nil {
		return nil, err
	}

	if len(embeddings) > 0 {
		p.dimension.Store(int64(embeddings[0].Dimension))
	}
	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      p.model,
	}, nil
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode, body: string(bodyBytes)}
	}

	switch p.format {
	case formatOllama:
		var apiResp struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return apiResp.Embeddings, nil
	default:
		var apiResp struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		// The API may return items out of order
		vectors := make([][]float32, len(apiResp.Data))
		for i, d := range apiResp.Data {
			idx := d.Index
			if idx < 0 || idx >= len(vectors) {
				idx = i
			}
			vectors[idx] = d.Embedding
		}
		return vectors, nil
	}
}

// Dimension implements Embedder
func (p *HTTPProvider) Dimension() int {
	return int(p.dimension.Load())
}

// Provider implements Embedder
func (p *HTTPProvider) Provider() string {
	return p.name
}

// Model implements Embedder
func (p *HTTPProvider) Model() string {
	return p.model
}

// Close implements Embedder
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// statusError is a non-200 API response
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.code, e.body)
}
