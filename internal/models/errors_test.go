package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/artvault/internal/models"
)

func TestQuotaErrorUnwrapsToSentinel(t *testing.T) {
	err := &models.QuotaError{Used: 90, Requested: 20, Limit: 100}

	assert.ErrorIs(t, err, models.ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "90 used")
	assert.Contains(t, err.Error(), "100 limit")
}

func TestDecodeErrorUnwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &models.DecodeError{Format: "png", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "png")

	// Typed match survives wrapping.
	wrapped := fmt.Errorf("save project: %w", err)
	var decodeErr *models.DecodeError
	assert.True(t, errors.As(wrapped, &decodeErr))
}

func TestValidationErrorMessage(t *testing.T) {
	withField := &models.ValidationError{Field: "api_key", Reason: "bad format"}
	assert.Contains(t, withField.Error(), "api_key")

	withoutField := &models.ValidationError{Reason: "bad format"}
	assert.Contains(t, withoutField.Error(), "bad format")
}

func TestAPIErrorMessage(t *testing.T) {
	err := &models.APIError{StatusCode: 429, Message: "quota exhausted"}
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exhausted")
}
