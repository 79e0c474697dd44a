package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/semlaunch/pkg/types"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrEmptyPath is returned when an operation is given an empty path
	ErrEmptyPath = errors.New("empty path")
)

const (
	queryUpsertItem = `
		INSERT INTO items (path, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			state = MAX(items.state, excluded.state),
			updated_at = excluded.updated_at
		RETURNING id`
	queryIDByPath    = `SELECT id FROM items WHERE path = ?`
	queryPathByID    = `SELECT path FROM items WHERE id = ?`
	queryStateByPath = `SELECT state FROM items WHERE path = ?`
	queryItemByID    = `SELECT id, path, state FROM items WHERE id = ?`
	queryStateCounts = `SELECT state, COUNT(*) FROM items GROUP BY state`
)

// SQLiteStorage implements the Store interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// WAL lets the interactive reader and the background writer overlap
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// NewWithDB wraps an already opened and migrated database.
func NewWithDB(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// InsertOrUpdate upserts the row for path. The stored state never decreases.
func (s *SQLiteStorage) InsertOrUpdate(ctx context.Context, path string, state types.EmbeddingState) (types.ID, error) {
	if path == "" {
		return 0, ErrEmptyPath
	}

	var id int64
	err := s.db.QueryRowContext(ctx, queryUpsertItem, path, state.Code(), time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert item %s: %w", path, err)
	}
	return types.ID(id), nil
}

func (s *SQLiteStorage) GetIDByPath(ctx context.Context, path string) (types.ID, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, queryIDByPath, path).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get id for %s: %w", path, err)
	}
	return types.ID(id), nil
}

func (s *SQLiteStorage) GetPathByID(ctx context.Context, id types.ID) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx, queryPathByID, int64(id)).Scan(&path)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get path for id %d: %w", id, err)
	}
	return path, nil
}

func (s *SQLiteStorage) GetStateByPath(ctx context.Context, path string) (types.EmbeddingState, error) {
	var code int64
	err := s.db.QueryRowContext(ctx, queryStateByPath, path).Scan(&code)
	if err == sql.ErrNoRows {
		return types.StateNone(), ErrNotFound
	}
	if err != nil {
		return types.StateNone(), fmt.Errorf("failed to get state for %s: %w", path, err)
	}
	return types.StateFromCode(code)
}

func (s *SQLiteStorage) GetItemByID(ctx context.Context, id types.ID) (*Item, error) {
	var (
		item Item
		raw  int64
		code int64
	)
	err := s.db.QueryRowContext(ctx, queryItemByID, int64(id)).Scan(&raw, &item.Path, &code)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	item.ID = types.ID(raw)
	if item.State, err = types.StateFromCode(code); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetStatus counts rows per richness tier.
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	rows, err := s.db.QueryContext(ctx, queryStateCounts)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	status := &Status{}
	for rows.Next() {
		var code int64
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		status.Items += n
		switch {
		case code <= 0:
			status.None += n
		case code == 1:
			status.Name += n
		default:
			status.Paragraphs += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return status, nil
}
