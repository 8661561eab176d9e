package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Metadata keys stored alongside the vectors
const (
	MetaModel     = "model"
	MetaDimension = "dimension"
)

// VectorResult is one nearest-neighbour hit
type VectorResult struct {
	Position int     // Zero-based insertion position
	Score    float64 // Cosine similarity
}

// VectorDB stores fixed-dimension vectors in a SQLite file. Positions are
// dense and assigned in insertion order.
type VectorDB struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// OpenVectorDB opens or creates the vector database at path
func OpenVectorDB(ctx context.Context, path string) (*VectorDB, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &VectorDB{db: db, path: path}, nil
}

// Path returns the database file location
func (v *VectorDB) Path() string {
	return v.path
}

// Close checkpoints the write-ahead log and closes the database
func (v *VectorDB) Close() error {
	_, _ = v.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return v.db.Close()
}

// GetMeta returns a metadata value, or "" when unset
func (v *VectorDB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := v.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (v *VectorDB) SetMeta(ctx context.Context, key, value string) error {
	_, err := v.db.ExecContext(ctx,
		"INSERT INTO index_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// Dimension returns the stored vector dimension, 0 when unset
func (v *VectorDB) Dimension(ctx context.Context) (int, error) {
	s, err := v.GetMeta(ctx, MetaDimension)
	if err != nil || s == "" {
		return 0, err
	}
	d, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid stored dimension %q: %w", s, err)
	}
	return d, nil
}

// Count returns the number of stored vectors
func (v *VectorDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// Append stores vectors at the next free positions and returns the first
// position used. All vectors must share the stored dimension.
func (v *VectorDB) Append(ctx context.Context, vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}

	dim, err := v.Dimension(ctx)
	if err != nil {
		return 0, err
	}
	for i, vec := range vectors {
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim || dim == 0 {
			return 0, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var first int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&first); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO vectors (position, vector) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, vec := range vectors {
		if _, err := stmt.ExecContext(ctx, first+i, serializeVector(vec)); err != nil {
			return 0, fmt.Errorf("failed to insert vector %d: %w", first+i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO index_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		MetaDimension, strconv.Itoa(dim)); err != nil {
		return 0, fmt.Errorf("failed to record dimension: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vectors: %w", err)
	}
	return first, nil
}

// Search returns the k stored vectors most similar to query, best first.
// Ties keep insertion order.
func (v *VectorDB) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	if k <= 0 || len(query) == 0 {
		return []VectorResult{}, nil
	}
	if VectorExtensionAvailable {
		return v.searchOptimized(ctx, query, k)
	}
	return v.searchFallback(ctx, query, k)
}

// searchOptimized lets sqlite-vec compute the distances
func (v *VectorDB) searchOptimized(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	rows, err := v.db.QueryContext(ctx, `
		SELECT position, 1.0 - vec_distance_cosine(vector, ?) AS similarity
		FROM vectors
		WHERE length(vector) = ?
		ORDER BY similarity DESC, position ASC
		LIMIT ?
	`, serializeVector(query), len(query)*4, k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, k)
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.Position, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchFallback computes cosine similarity in Go
func (v *VectorDB) searchFallback(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	rows, err := v.db.QueryContext(ctx, "SELECT position, vector FROM vectors ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]VectorResult, 0, 256)
	for rows.Next() {
		var pos int
		var blob []byte
		if err := rows.Scan(&pos, &blob); err != nil {
			return nil, err
		}
		vec := deserializeVector(blob)
		if len(vec) != len(query) {
			continue
		}
		candidates = append(candidates, VectorResult{Position: pos, Score: CosineSimilarity(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
