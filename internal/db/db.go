// Package db opens the spot database and manages its schema migrations.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// DB wraps the sqlite handle used by the spot store.
type DB struct {
	*sql.DB
}

// connPragmas are applied to every pooled connection through the DSN.
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// DSN returns the modernc sqlite DSN for path with the connection pragmas.
func DSN(path string) string {
	params := make([]string, len(connPragmas))
	for i, p := range connPragmas {
		params[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// OpenDB opens (creating if needed) the database at path without touching
// the schema. Run MigrateUp before using it with the spot store.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return &DB{sqlDB}, nil
}

// OpenMigrated opens the database at path and applies every pending
// migration from migrations.
func OpenMigrated(path string, migrations fs.FS) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(migrations); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// MigrationsFS returns the migrations compiled into the binary when dir is
// empty, or the migrations found in dir otherwise.
func MigrationsFS(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(embeddedMigrations, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations directory %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
