// Package embedder encodes text into unit-length vectors for the memory
// vector index.
//
// Providers:
//   - local: offline feature hashing (words, word bigrams, character
//     trigrams) into 384 signed buckets. Deterministic, no network.
//   - ollama: a local Ollama server's /api/embed endpoint.
//   - openai, jina: hosted embedding APIs, keyed by config or the
//     OPENAI_API_KEY / JINA_API_KEY environment variables.
//
// Every provider normalizes its output, so inner product equals cosine
// similarity. Embeddings are cached in an LRU keyed by the SHA-256 of the
// text, and batches only send cache misses to the backend:
//
//	emb, err := embedder.New(cfg.Embedding)
//	if errors.Is(err, embedder.ErrNoProviderEnabled) {
//	    // run without a vector index
//	}
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
//
// Remote calls retry with exponential backoff on transport errors, 5xx,
// 408 and 429; other client errors fail immediately.
package embedder
