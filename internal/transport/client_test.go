package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/artvault/internal/config"
	"github.com/TheMichaelB/artvault/internal/events"
	"github.com/TheMichaelB/artvault/internal/transport"
)

func newTestClient(t *testing.T, serverURL string) *transport.GeminiClient {
	t.Helper()

	cfg := &config.APIConfig{
		BaseURL:    serverURL,
		Model:      "gemini-2.0-flash",
		Timeout:    5 * time.Second,
		UserAgent:  "artvault-test",
		MaxRetries: 2,
	}
	return transport.NewGeminiClient(cfg, events.Discard())
}

func TestValidateKey(t *testing.T) {
	t.Run("accepted key", func(t *testing.T) {
		var gotPath, gotKey string
		var gotBody map[string]interface{}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.URL.Query().Get("key")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &gotBody)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		valid, err := client.ValidateKey(context.Background(), "test-key-123")
		require.NoError(t, err)
		assert.True(t, valid)

		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", gotPath)
		assert.Equal(t, "test-key-123", gotKey)
		assert.Contains(t, gotBody, "contents")
	})

	t.Run("rejected statuses", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))

			client := newTestClient(t, server.URL)
			valid, err := client.ValidateKey(context.Background(), "bad-key")
			server.Close()

			require.NoError(t, err)
			assert.False(t, valid, "status %d", status)
		}
	})

	t.Run("quota errors still mean the key is valid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		valid, err := client.ValidateKey(context.Background(), "rate-limited-key")
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		valid, err := client.ValidateKey(context.Background(), "flaky-key")
		require.NoError(t, err)
		assert.True(t, valid)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("unreachable endpoint yields an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // refuse connections

		cfg := &config.APIConfig{
			BaseURL:   server.URL,
			Model:     "gemini-2.0-flash",
			Timeout:   time.Second,
			UserAgent: "artvault-test",
		}
		client := transport.NewGeminiClient(cfg, events.Discard())

		_, err := client.ValidateKey(context.Background(), "any-key")
		assert.Error(t, err)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		client := newTestClient(t, server.URL)
		_, err := client.ValidateKey(ctx, "slow-key")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
