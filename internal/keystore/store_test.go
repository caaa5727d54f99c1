package keystore_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/artvault/internal/events"
	"github.com/TheMichaelB/artvault/internal/keystore"
)

func testRecord() *keystore.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &keystore.Record{
		CipherText: "Y2lwaGVydGV4dA==",
		Salt:       "c2FsdHNhbHRzYWx0",
		IV:         "aXZpdml2aXZpdg==",
		CreatedAt:  now,
		LastUsedAt: now,
		IsActive:   true,
	}
}

// Both tiers must satisfy the same contract.
func runStoreContract(t *testing.T, store keystore.Store) {
	t.Helper()

	t.Run("get before put reports not found", func(t *testing.T) {
		_, err := store.Get("gemini")
		assert.ErrorIs(t, err, keystore.ErrRecordNotFound)
	})

	t.Run("put then get round trips", func(t *testing.T) {
		rec := testRecord()
		require.NoError(t, store.Put("gemini", rec))

		got, err := store.Get("gemini")
		require.NoError(t, err)
		assert.Equal(t, rec.CipherText, got.CipherText)
		assert.Equal(t, rec.Salt, got.Salt)
		assert.Equal(t, rec.IV, got.IV)
		assert.True(t, got.IsActive)
		assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("put overwrites", func(t *testing.T) {
		rec := testRecord()
		rec.CipherText = "bmV3Y2lwaGVy"
		require.NoError(t, store.Put("gemini", rec))

		got, err := store.Get("gemini")
		require.NoError(t, err)
		assert.Equal(t, "bmV3Y2lwaGVy", got.CipherText)
	})

	t.Run("partial record treated as absent", func(t *testing.T) {
		rec := testRecord()
		rec.IV = ""
		require.NoError(t, store.Put("partial", rec))

		_, err := store.Get("partial")
		assert.ErrorIs(t, err, keystore.ErrRecordNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete("gemini"))
		require.NoError(t, store.Delete("gemini"))

		_, err := store.Get("gemini")
		assert.ErrorIs(t, err, keystore.ErrRecordNotFound)
	})
}

func TestSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	store, err := keystore.NewSQLiteStore(filepath.Join(dir, "keystore.db"), events.Discard())
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := keystore.NewFileStore(filepath.Join(dir, "keystore.json"), events.Discard())
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}

func TestFileStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keystore.json")

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := keystore.NewFileStore(path, events.Discard())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("gemini")
	assert.ErrorIs(t, err, keystore.ErrRecordNotFound)

	// Writes still work after corruption
	require.NoError(t, store.Put("gemini", testRecord()))
	_, err = store.Get("gemini")
	assert.NoError(t, err)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keystore.db")

	store, err := keystore.NewSQLiteStore(path, events.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Put("gemini", testRecord()))
	require.NoError(t, store.Close())

	reopened, err := keystore.NewSQLiteStore(path, events.Discard())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("gemini")
	require.NoError(t, err)
	assert.Equal(t, "Y2lwaGVydGV4dA==", got.CipherText)
}
