// Package journal provides SQLite-backed persistence for autorun runs.
//
// Each engine session appends one row to runs and one row per executed
// script to script_runs. The journal is written once at the end of a run
// and read back by the history command, so the schema favors simple
// append-and-scan access over update paths.
//
// Database configuration:
//
//   - WAL mode: readers (history) do not block the writer (engine)
//   - synchronous=NORMAL: adequate durability for a boot-time log
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: script_runs rows always belong to a run
package journal

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is the schema version this code expects.
// Increment when adding migrations.
const currentSchemaVersion = 1

// Journal records finished runs in a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at the given path. The parent
// directory is created if missing so the journal can live under the engine
// base directory before the first run sets it up.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}

	// Single connection: SQLite serializes writers anyway, and one
	// connection keeps pragma state consistent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// runMigrations upgrades the database schema via PRAGMA user_version.
// Version 0 is a fresh database; the embedded schema already matches
// currentSchemaVersion, so migrations only apply to databases created
// by older builds.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if version == currentSchemaVersion {
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return nil
}
