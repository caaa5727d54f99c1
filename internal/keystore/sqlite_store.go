package keystore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/artvault/internal/events"
)

// SQLiteStore is the primary key-record tier.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite key store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_key_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the schema.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS api_keys (
        name TEXT PRIMARY KEY,
        cipher_text TEXT NOT NULL,
        salt TEXT NOT NULL,
        iv TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL,
        last_used_at TIMESTAMP NOT NULL,
        is_active INTEGER NOT NULL DEFAULT 1
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Put upserts the record for a name.
func (s *SQLiteStore) Put(name string, rec *Record) error {
	s.logger.WithField("name", name).Debug("Writing key record")

	_, err := s.db.Exec(`
        INSERT INTO api_keys (name, cipher_text, salt, iv, created_at, last_used_at, is_active)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            cipher_text = excluded.cipher_text,
            salt = excluded.salt,
            iv = excluded.iv,
            created_at = excluded.created_at,
            last_used_at = excluded.last_used_at,
            is_active = excluded.is_active
    `, name, rec.CipherText, rec.Salt, rec.IV, rec.CreatedAt, rec.LastUsedAt, rec.IsActive)

	if err != nil {
		return fmt.Errorf("upsert key record: %w", err)
	}

	return nil
}

// Get retrieves the record for a name.
func (s *SQLiteStore) Get(name string) (*Record, error) {
	var rec Record

	err := s.db.QueryRow(`
        SELECT cipher_text, salt, iv, created_at, last_used_at, is_active
        FROM api_keys
        WHERE name = ?
    `, name).Scan(&rec.CipherText, &rec.Salt, &rec.IV,
		&rec.CreatedAt, &rec.LastUsedAt, &rec.IsActive)

	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query key record: %w", err)
	}

	// A partial record does not exist as far as callers are concerned.
	if !rec.Complete() {
		return nil, ErrRecordNotFound
	}

	return &rec, nil
}

// Delete removes the record for a name. Absence is not an error.
func (s *SQLiteStore) Delete(name string) error {
	s.logger.WithField("name", name).Info("Deleting key record")

	if _, err := s.db.Exec("DELETE FROM api_keys WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete key record: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
