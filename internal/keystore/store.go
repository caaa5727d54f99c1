// Package keystore persists encrypted API-key records. Two implementations
// exist: a SQLite-backed primary tier and a single-file JSON fallback used
// when the primary store is unavailable.
package keystore

import (
	"errors"
	"time"
)

// Record is one stored encrypted secret. CipherText, Salt and IV are
// base64 text; a record missing any of the three is treated as absent.
type Record struct {
	CipherText string    `json:"cipher_text"`
	Salt       string    `json:"salt"`
	IV         string    `json:"iv"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	IsActive   bool      `json:"is_active"`
}

// Complete reports whether all crypto fields are present.
func (r *Record) Complete() bool {
	return r != nil && r.CipherText != "" && r.Salt != "" && r.IV != ""
}

// Store persists encrypted secret records keyed by logical name.
type Store interface {
	// Put writes or overwrites the record for a name.
	Put(name string, rec *Record) error

	// Get retrieves the record for a name. Incomplete records are
	// reported as ErrRecordNotFound.
	Get(name string) (*Record, error)

	// Delete removes the record for a name. Deleting an absent record
	// is not an error.
	Delete(name string) error

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrRecordNotFound = errors.New("key record not found")
)
