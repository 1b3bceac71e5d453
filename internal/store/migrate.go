package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// MigratePostgres applies the PostgreSQL schema to the database at url
// ("postgres://...") and returns the resulting schema version.
func MigratePostgres(url string) (uint, error) {
	return migrateUp(postgresMigrations, "migrations/postgres", url)
}

// MigrateSqlite applies the SQLite schema to the database file at path and
// returns the resulting schema version.
func MigrateSqlite(path string) (uint, error) {
	return migrateUp(sqliteMigrations, "migrations/sqlite", "sqlite3://"+path)
}

func migrateUp(fsys fs.FS, dir, databaseURL string) (uint, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to open migration source %s: %w", dir, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	if version != SchemaVersion {
		return version, fmt.Errorf("unexpected schema version %d, want %d", version, SchemaVersion)
	}
	return version, nil
}
