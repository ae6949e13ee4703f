package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/pagelens/pagelens/internal/models"
)

// SQLiteStore is a TTL cache backed by a SQLite database, for deployments
// that restart frequently and want to keep the result cache warm. Storage
// errors are logged and surface to callers as cache misses.
type SQLiteStore struct {
	db       *sql.DB
	ttl      time.Duration
	logger   *slog.Logger
	isMemory bool
	now      func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite-backed cache at dbPath.
// Pass ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string, ttl time.Duration, logger *slog.Logger) (*SQLiteStore, error) {
	var connStr string
	isMemory := dbPath == ":memory:"

	if isMemory {
		connStr = "file::memory:?cache=shared&_timeout=5000&_busy_timeout=5000"
	} else {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
		connStr = dbPath + "?_journal=WAL&_timeout=5000&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:       db,
		ttl:      ttl,
		logger:   logger,
		isMemory: isMemory,
		now:      time.Now,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("SQLite result cache initialized", "path", dbPath, "ttl", ttl)
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		url TEXT PRIMARY KEY,
		data_json TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_expires_at ON results(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the cached result for a URL, if present and fresh.
func (s *SQLiteStore) Get(url string) (models.ProductData, bool) {
	var dataJSON string
	var expiresAt int64

	err := s.db.QueryRow(
		"SELECT data_json, expires_at FROM results WHERE url = ?", url,
	).Scan(&dataJSON, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.ProductData{}, false
	}
	if err != nil {
		s.logger.Warn("cache read failed", "url", url, "error", err)
		return models.ProductData{}, false
	}

	if s.now().Unix() > expiresAt {
		if _, err := s.db.Exec("DELETE FROM results WHERE url = ?", url); err != nil {
			s.logger.Warn("failed to delete expired entry", "url", url, "error", err)
		}
		return models.ProductData{}, false
	}

	var data models.ProductData
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		s.logger.Warn("failed to unmarshal cached result", "url", url, "error", err)
		return models.ProductData{}, false
	}
	return data, true
}

// Put stores a result for a URL, replacing any existing entry. Expired rows
// are swept on every write to keep the table small.
func (s *SQLiteStore) Put(url string, data models.ProductData) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("failed to marshal result for cache", "url", url, "error", err)
		return
	}

	now := s.now()
	if _, err := s.db.Exec("DELETE FROM results WHERE expires_at < ?", now.Unix()); err != nil {
		s.logger.Warn("failed to sweep expired entries", "error", err)
	}

	query := `
	INSERT INTO results (url, data_json, expires_at)
	VALUES (?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		data_json = excluded.data_json,
		expires_at = excluded.expires_at
	`
	if _, err := s.db.Exec(query, url, string(dataJSON), now.Add(s.ttl).Unix()); err != nil {
		s.logger.Warn("cache write failed", "url", url, "error", err)
	}
}

// Len returns the number of rows currently stored.
func (s *SQLiteStore) Len() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM results").Scan(&count); err != nil {
		return 0
	}
	return count
}

// Close closes the database connection, checkpointing the WAL first so all
// data lands in the main file.
func (s *SQLiteStore) Close() error {
	if !s.isMemory {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			s.logger.Warn("failed to checkpoint WAL before close", "error", err)
		}
	}
	return s.db.Close()
}
