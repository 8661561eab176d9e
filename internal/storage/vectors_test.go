package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestVectorDB(t *testing.T) *VectorDB {
	t.Helper()
	db, err := OpenVectorDB(context.Background(), filepath.Join(t.TempDir(), "index.vec"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestVectorDB_AppendAndSearch(t *testing.T) {
	ctx := context.Background()
	db := openTestVectorDB(t)

	first, err := db.Append(ctx, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, first)

	first, err = db.Append(ctx, [][]float32{{0.9, 0.1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dim, err := db.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	hits, err := db.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Position)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Equal(t, 2, hits[1].Position)
}

func TestVectorDB_RejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	db := openTestVectorDB(t)

	_, err := db.Append(ctx, [][]float32{{1, 2, 3}})
	require.NoError(t, err)

	_, err = db.Append(ctx, [][]float32{{1, 2}})
	assert.Error(t, err)

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorDB_SearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	db := openTestVectorDB(t)

	hits, err := db.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = db.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorDB_Meta(t *testing.T) {
	ctx := context.Background()
	db := openTestVectorDB(t)

	v, err := db.GetMeta(ctx, MetaModel)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetMeta(ctx, MetaModel, "local"))
	require.NoError(t, db.SetMeta(ctx, MetaModel, "nomic-embed-text"))

	v, err = db.GetMeta(ctx, MetaModel)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", v)
}

func TestVectorDB_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.vec")

	db, err := OpenVectorDB(ctx, path)
	require.NoError(t, err)
	_, err = db.Append(ctx, [][]float32{{0.5, 0.5}})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenVectorDB(ctx, path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestSerializeVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	assert.Equal(t, in, deserializeVector(serializeVector(in)))
}
