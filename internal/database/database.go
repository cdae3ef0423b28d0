package database

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"questlog/internal/config"
	"questlog/internal/constants"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Pragmas applied to every new connection's database. WAL plus NORMAL
// synchronous is the standard single-writer web-service tuning.
var pragmas = []string{
	"journal_mode = WAL",
	"synchronous = NORMAL",
	"cache_size = -64000",
	"busy_timeout = 5000",
	"foreign_keys = ON",
	"temp_store = MEMORY",
	"mmap_size = 268435456", // 256MB memory map, https://sqlite.org/mmap.html
}

// New opens the sqlite database at the configured path, creating the parent
// directory if needed, tunes the pool, applies pragmas and runs pending
// migrations.
func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	path := cfg.Store.SQLitePath
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Info().Str("path", path).Msg("connecting to database")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	for _, p := range pragmas {
		if _, err := db.Exec("PRAGMA " + p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set PRAGMA %s: %w", p, err)
		}
		name, value, _ := strings.Cut(p, " = ")
		logger.Debug().Str("pragma", name).Str("value", value).Msg("sqlite pragma set")
	}

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database connection established")
	return db, nil
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	logger.Info().Msg("migrations completed")
	return nil
}
