package embedder

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/dshills/reporecall/internal/tokenize"
)

// LocalDimension is the size of the feature-hashing vectors
const LocalDimension = 384

const localModel = "hash-384"

// Feature weights of the hashing embedder
const (
	wordWeight    = 1.0
	bigramWeight  = 0.5
	trigramWeight = 0.25
)

// LocalProvider embeds text offline by hashing word, word-bigram and
// character-trigram features into a fixed number of signed buckets.
// Texts sharing vocabulary land close together under cosine similarity;
// it carries no semantics beyond that.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the offline embedder
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{cache: cache}
}

// GenerateEmbedding implements Embedder
func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, l, req)
}

// GenerateBatch implements Embedder
func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	embeddings, err := cachedBatch(ctx, l.cache, ProviderLocal, localModel, req.Texts, func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = hashFeatures(text)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("local embedding: %w", err)
	}
	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      localModel,
	}, nil
}

// hashFeatures builds the raw (unnormalized) feature vector of a text.
// Text without any word characters still gets a non-zero vector.
func hashFeatures(text string) []float32 {
	vec := make([]float32, LocalDimension)
	words := tokenize.Words(text)
	if len(words) == 0 {
		addFeature(vec, "\x00"+text, wordWeight)
		return vec
	}

	for i, w := range words {
		addFeature(vec, "w:"+w, wordWeight)
		if i > 0 {
			addFeature(vec, "b:"+words[i-1]+" "+w, bigramWeight)
		}
		runes := []rune("^" + w + "$")
		for j := 0; j+3 <= len(runes); j++ {
			addFeature(vec, "c:"+string(runes[j:j+3]), trigramWeight)
		}
	}
	return vec
}

// addFeature adds weight to the feature's bucket; one hash bit picks the sign
// so collisions tend to cancel instead of accumulate
func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(len(vec)))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

// Dimension implements Embedder
func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

// Provider implements Embedder
func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

// Model implements Embedder
func (l *LocalProvider) Model() string {
	return localModel
}

// Close implements Embedder
func (l *LocalProvider) Close() error {
	return nil
}
