package transport

import (
	"context"
	"sync"
)

// MockValidator provides a configurable KeyValidator for tests.
type MockValidator struct {
	mu sync.Mutex

	// Verdict configuration
	Valid bool
	Err   error

	// Request tracking
	Calls []string
}

// NewMockValidator creates a validator that accepts every key.
func NewMockValidator() *MockValidator {
	return &MockValidator{Valid: true}
}

// ValidateKey records the call and returns the configured verdict.
func (m *MockValidator) ValidateKey(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, key)
	if m.Err != nil {
		return false, m.Err
	}
	return m.Valid, nil
}

// CallCount returns how many probes were issued.
func (m *MockValidator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
