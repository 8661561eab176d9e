package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the vector database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration. Schemas only move
// forward; a rejected index is rebuilt into a fresh database instead.
type Migration struct {
	Version string
	Up      string
}

// AllMigrations contains all vector database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Key/value metadata: model name and dimension
CREATE TABLE IF NOT EXISTS index_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- position is the zero-based line number of the matching meta record
CREATE TABLE IF NOT EXISTS vectors (
    position INTEGER PRIMARY KEY,
    vector BLOB NOT NULL
);
`

// ApplyMigrations brings the database schema up to CurrentSchemaVersion
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !currentVersion.LessThan(migrationVersion) {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		currentVersion = migrationVersion
	}

	return nil
}

// schemaVersion returns the latest applied version, 0.0.0 for a fresh database
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	var versionStr string
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&versionStr)
	if errors.Is(err, sql.ErrNoRows) || versionStr == "" {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}

	v, err := semver.NewVersion(versionStr)
	if err != nil {
		return nil, fmt.Errorf("invalid current schema version %s: %w", versionStr, err)
	}
	return v, nil
}
