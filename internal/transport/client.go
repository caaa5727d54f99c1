// Package transport talks to the generative API endpoint. The only
// traffic it carries is the minimal probe used to check that an API key
// is accepted upstream; transformation traffic itself never leaves the
// machine through this package.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/TheMichaelB/artvault/internal/config"
	"github.com/TheMichaelB/artvault/internal/events"
)

// KeyValidator checks an API key against the upstream service.
type KeyValidator interface {
	// ValidateKey reports whether the service accepts the key. A false
	// result with a nil error means the service answered and rejected
	// the key; a non-nil error means no verdict could be reached.
	ValidateKey(ctx context.Context, key string) (bool, error)
}

// GeminiClient probes the Gemini generateContent endpoint.
type GeminiClient struct {
	client    *http.Client
	baseURL   string
	model     string
	userAgent string
	logger    *events.Logger

	maxRetries int
	retryDelay time.Duration
}

// NewGeminiClient creates a validator against the configured endpoint.
func NewGeminiClient(cfg *config.APIConfig, logger *events.Logger) *GeminiClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &GeminiClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Second,
		logger:     logger.WithField("component", "gemini_client"),
	}
}

// probeRequest is the cheapest request the endpoint accepts; the reply
// content is irrelevant, only the auth verdict matters.
type probeRequest struct {
	Contents []probeContent `json:"contents"`
}

type probeContent struct {
	Parts []probePart `json:"parts"`
}

type probePart struct {
	Text string `json:"text"`
}

// ValidateKey sends a minimal generateContent request authenticated with
// the key. A 401 or 403 means the key is rejected; any other answer from
// the service means the key itself is accepted (quota and model errors
// included).
func (c *GeminiClient) ValidateKey(ctx context.Context, key string) (bool, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, c.model, url.QueryEscape(key))

	body, err := json.Marshal(probeRequest{
		Contents: []probeContent{{Parts: []probePart{{Text: "Hello"}}}},
	})
	if err != nil {
		return false, fmt.Errorf("marshal probe: %w", err)
	}

	c.logger.WithField("model", c.model).Debug("Probing API key")

	var status int
	err = c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)

		if c.isRetryable(resp.StatusCode) {
			return fmt.Errorf("server error %d", resp.StatusCode)
		}

		status = resp.StatusCode
		return nil
	})
	if err != nil {
		return false, err
	}

	valid := status != http.StatusUnauthorized && status != http.StatusForbidden

	c.logger.WithFields(map[string]interface{}{
		"status": status,
		"valid":  valid,
	}).Debug("Probe complete")

	return valid, nil
}

// retry executes fn with exponential backoff.
func (c *GeminiClient) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying probe")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

// isRetryable reports whether a status code warrants another attempt.
func (c *GeminiClient) isRetryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
