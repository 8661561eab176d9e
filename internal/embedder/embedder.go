package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding is one unit-length vector with the model that produced it
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash, the cache key
}

// EmbeddingRequest asks for a single embedding
type EmbeddingRequest struct {
	Text string
}

// BatchEmbeddingRequest asks for one embedding per text, in order
type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse holds embeddings in request order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder encodes text into fixed-dimension normalized vectors
type Embedder interface {
	// GenerateEmbedding embeds a single text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch embeds several texts, preserving order
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the vector size, or 0 if not yet known
	Dimension() int

	Provider() string
	Model() string
	Close() error
}

// Cache provides in-memory LRU caching of embeddings by content hash
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates an embedding cache holding at most maxLen entries
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](10000)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of a cached embedding so callers cannot mutate the entry
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	cp := *emb
	cp.Vector = append([]float32(nil), emb.Vector...)
	return &cp, true
}

// Set stores an embedding
func (c *Cache) Set(hash string, emb *Embedding) {
	c.cache.Add(hash, emb)
}

// Size returns the number of cached embeddings
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes the SHA-256 cache key of a text
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest validates a batch embedding request
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// encodeFunc embeds uncached texts, returning raw vectors in input order
type encodeFunc func(ctx context.Context, texts []string) ([][]float32, error)

// cachedBatch embeds texts through the cache, calling encode only for misses.
// Returned vectors are normalized to unit length.
func cachedBatch(ctx context.Context, cache *Cache, provider, model string, texts []string, encode encodeFunc) ([]*Embedding, error) {
	out := make([]*Embedding, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		hash := ComputeHash(text)
		if cache != nil {
			if emb, ok := cache.Get(hash); ok {
				out[i] = emb
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := encode(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(missTexts), len(vectors))
	}

	for j, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrProviderFailed, missIdx[j])
		}
		emb := &Embedding{
			Vector:    NormalizeVector(vec),
			Dimension: len(vec),
			Provider:  provider,
			Model:     model,
			Hash:      ComputeHash(missTexts[j]),
		}
		if cache != nil {
			cache.Set(emb.Hash, emb)
		}
		cp := *emb
		cp.Vector = append([]float32(nil), emb.Vector...)
		out[missIdx[j]] = &cp
	}
	return out, nil
}

// single embeds one text through GenerateBatch
func single(ctx context.Context, e Embedder, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

// NormalizeVector scales a vector to unit length. Zero vectors are returned
// unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}
	return result
}
