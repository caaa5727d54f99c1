package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/TheMichaelB/artvault/internal/events"
)

// FileStore is the degraded key-record tier: every record JSON-serialized
// into one file. It has none of the primary tier's durability properties
// beyond an atomic write, which is the point — it only needs to hold a
// single short record when SQLite is unavailable.
type FileStore struct {
	path   string
	logger *events.Logger

	mu sync.Mutex
}

// NewFileStore creates a file-backed key store.
func NewFileStore(path string, logger *events.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create keystore directory: %w", err)
	}

	return &FileStore{
		path:   path,
		logger: logger.WithField("component", "file_key_store"),
	}, nil
}

// Put writes the record for a name.
func (s *FileStore) Put(name string, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	records[name] = rec
	return s.save(records)
}

// Get retrieves the record for a name.
func (s *FileStore) Get(name string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	rec, ok := records[name]
	if !ok || !rec.Complete() {
		return nil, ErrRecordNotFound
	}

	return rec, nil
}

// Delete removes the record for a name. Absence is not an error.
func (s *FileStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := records[name]; !ok {
		return nil
	}

	delete(records, name)
	return s.save(records)
}

// Close is a no-op for the file tier.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() (map[string]*Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]*Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	records := make(map[string]*Record)
	if err := json.Unmarshal(data, &records); err != nil {
		// A corrupt fallback file is treated as empty; the record it held
		// was already unreadable.
		s.logger.WithError(err).Warn("Keystore file corrupt, treating as empty")
		return make(map[string]*Record), nil
	}

	return records, nil
}

func (s *FileStore) save(records map[string]*Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key records: %w", err)
	}

	// Write atomically
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename keystore file: %w", err)
	}

	return nil
}
