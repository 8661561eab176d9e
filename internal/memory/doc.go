// Package memory stores durable facts extracted from past interactions and
// ranks them for reuse.
//
// Items live in a JSON-lines log (memory.jsonl) in the state directory. Every
// write rewrites the log atomically. Retrieval fuses vector similarity,
// importance, recency and keyword overlap into one score; without a vector
// backend the similarity term is zero and ranking falls back to the other
// three signals.
package memory
