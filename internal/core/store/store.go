// Package store persists recipes to SQLite and hero images to disk.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS recipes (
	id          TEXT PRIMARY KEY,
	user_ref    TEXT NOT NULL,
	title       TEXT NOT NULL,
	safe_title  TEXT NOT NULL,
	cook_time   INTEGER NOT NULL DEFAULT 1,
	portions    INTEGER NOT NULL DEFAULT 1,
	image_path  TEXT NOT NULL DEFAULT '',
	notes       TEXT NOT NULL DEFAULT '',
	visibility  TEXT NOT NULL DEFAULT 'private',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ingredients (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	recipe_ref TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	category   TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	quantity   REAL,
	unit       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS instructions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	recipe_ref  TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	step_number INTEGER NOT NULL,
	description TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recipes_user ON recipes(user_ref);
CREATE INDEX IF NOT EXISTS idx_ingredients_recipe ON ingredients(recipe_ref);
CREATE INDEX IF NOT EXISTS idx_instructions_recipe ON instructions(recipe_ref);
`

// Store is the SQLite-backed recipe repository.
type Store struct {
	db       *sql.DB
	mediaDir string
}

// Open opens (creating if necessary) the recipe database and prepares the
// media directory for hero images.
func Open(cfg *config.Config) (*Store, error) {
	if dir := filepath.Dir(cfg.Storage.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.Storage.MediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}

	// Pragmas ride on the DSN so every pooled connection gets them; an Exec
	// would configure only the connection it happens to run on, and cascade
	// deletes depend on foreign_keys being on everywhere.
	dsn := "file:" + cfg.Storage.DatabasePath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	common.LogInfo("Recipe store opened",
		zap.String("path", cfg.Storage.DatabasePath),
	)
	return &Store{db: db, mediaDir: cfg.Storage.MediaDir}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
