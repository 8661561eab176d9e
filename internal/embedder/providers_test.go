package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/reporecall/internal/config"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestOllamaProvider(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			embeddings[i] = []float32{float32(i + 1), 0, 0, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL+"/", "test-model", NewCache(10))
	assert.Zero(t, p.Dimension(), "dimension is unknown before the first call")

	ctx := context.Background()
	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{1, 0, 0, 0}, resp.Embeddings[0].Vector)
	assert.Equal(t, []float32{1, 0, 0, 0}, resp.Embeddings[1].Vector, "vectors are normalized")
	assert.Equal(t, 4, p.Dimension())
	assert.Equal(t, ProviderOllama, resp.Provider)

	// Both texts are cached now
	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// Only the miss is sent
	resp, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "c"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIFormat_ReordersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": DefaultOpenAIModel,
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 1}},
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("test-key", nil)
	require.NoError(t, err)
	p.endpoint = server.URL

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"first", "second"}})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, resp.Embeddings[0].Vector)
	assert.Equal(t, []float32{0, 1}, resp.Embeddings[1].Vector)
}

func TestHTTPProvider_Retry(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 1}}})
		}))
		defer server.Close()

		p := NewOllamaProvider(server.URL, "m", nil)
		p.retry = fastRetry()

		_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are final", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
		}))
		defer server.Close()

		p := NewOllamaProvider(server.URL, "missing", nil)
		p.retry = fastRetry()

		_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Contains(t, err.Error(), "model not found")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("count mismatch is a provider failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
		}))
		defer server.Close()

		p := NewOllamaProvider(server.URL, "m", nil)
		_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
		assert.ErrorIs(t, err, ErrProviderFailed)
	})
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	_, err := retryWithBackoff(ctx, fastRetry(), func() (string, error) {
		calls++
		return "", errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 3, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	calls = 0
	_, err = retryWithBackoff(cancelled, fastRetry(), func() (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestHTTPProvider_BatchLimit(t *testing.T) {
	p := NewOllamaProvider("http://127.0.0.1:1", "m", nil)
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "t"
	}
	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestNew(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	tests := []struct {
		name     string
		cfg      config.EmbeddingConfig
		provider string
		wantErr  error
	}{
		{name: "default is local", cfg: config.EmbeddingConfig{}, provider: ProviderLocal},
		{name: "local", cfg: config.EmbeddingConfig{Provider: "LOCAL", CacheSize: 10}, provider: ProviderLocal},
		{name: "ollama", cfg: config.EmbeddingConfig{Provider: "ollama", Model: "mxbai-embed-large"}, provider: ProviderOllama},
		{name: "openai with key", cfg: config.EmbeddingConfig{Provider: "openai", APIKey: "k"}, provider: ProviderOpenAI},
		{name: "jina without key", cfg: config.EmbeddingConfig{Provider: "jina"}, wantErr: ErrNoProviderEnabled},
		{name: "none", cfg: config.EmbeddingConfig{Provider: "none"}, wantErr: ErrNoProviderEnabled},
		{name: "unknown", cfg: config.EmbeddingConfig{Provider: "word2vec"}, wantErr: ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, e.Provider())
			if tt.cfg.Model != "" {
				assert.Equal(t, tt.cfg.Model, e.Model())
			}
			assert.NoError(t, e.Close())
		})
	}
}

func TestNew_APIKeyFromEnv(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "env-key")

	e, err := New(config.EmbeddingConfig{Provider: "jina"})
	require.NoError(t, err)
	assert.Equal(t, ProviderJina, e.Provider())
	assert.Equal(t, JinaDimension, e.Dimension())
}
