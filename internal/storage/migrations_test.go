package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := openDatabase(filepath.Join(t.TempDir(), "index.vec"))
	require.NoError(t, err)
	defer db.Close()

	v, err := schemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	require.NoError(t, ApplyMigrations(ctx, db))
	v, err = schemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	// Applying again is a no-op
	require.NoError(t, ApplyMigrations(ctx, db))
	var applied int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&applied))
	assert.Equal(t, 1, applied)

	_, err = db.ExecContext(ctx, "INSERT INTO vectors (position, vector) VALUES (0, x'00')")
	assert.NoError(t, err)
}
