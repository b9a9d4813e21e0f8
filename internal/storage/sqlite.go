package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DefaultSlot is the save slot used when none is configured.
const DefaultSlot = "default"

// SQLiteStore keeps records in a SQLite database, one row per save slot.
type SQLiteStore struct {
	conn *sqlx.DB
	slot string
}

type saveRow struct {
	Data     []byte `db:"data"`
	Previous []byte `db:"previous"`
	SavedAt  int64  `db:"saved_at"`
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path, slot string) (*SQLiteStore, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if slot == "" {
		slot = DefaultSlot
	}
	s := &SQLiteStore{conn: conn, slot: slot}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		slot TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		previous BLOB,
		saved_at INTEGER NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Save replaces the slot's record, keeping the previous one.
func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO saves (slot, data, previous, saved_at) VALUES (?, ?, NULL, ?)
		ON CONFLICT(slot) DO UPDATE SET
			previous = saves.data,
			data = excluded.data,
			saved_at = excluded.saved_at`,
		s.slot, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// Load returns the slot's record.
func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	row, err := s.row(ctx)
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

// LoadBackup returns the slot's previous record.
func (s *SQLiteStore) LoadBackup(ctx context.Context) ([]byte, error) {
	row, err := s.row(ctx)
	if err != nil {
		return nil, err
	}
	if len(row.Previous) == 0 {
		return nil, ErrNotFound
	}
	return row.Previous, nil
}

// SavedAt returns when the slot was last written, zero if never.
func (s *SQLiteStore) SavedAt(ctx context.Context) (time.Time, error) {
	row, err := s.row(ctx)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(row.SavedAt, 0), nil
}

func (s *SQLiteStore) row(ctx context.Context) (*saveRow, error) {
	var row saveRow
	err := s.conn.GetContext(ctx, &row, "SELECT data, previous, saved_at FROM saves WHERE slot = ?", s.slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
