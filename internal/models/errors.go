package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeDecryption  = "DECRYPTION_ERROR"
	ErrCodeStorage     = "STORAGE_ERROR"
	ErrCodeQuota       = "QUOTA_EXCEEDED"
	ErrCodeDecode      = "DECODE_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeConfig      = "CONFIG_ERROR"
	ErrCodeNetwork     = "NETWORK_ERROR"
)

// Sentinel errors for expected conditions. Callers branch with errors.Is;
// none of these indicate a programmer error.
var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrNoAPIKey           = errors.New("no API key configured")
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrQuotaExceeded      = errors.New("storage limit exceeded")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// ValidationError rejects bad input before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// DecodeError reports an unreadable image. It never aborts unrelated
// operations in a batch.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s image: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// QuotaError carries the accounting that caused a save to be refused.
type QuotaError struct {
	Used      int64
	Requested int64
	Limit     int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage limit exceeded: %d used + %d requested > %d limit",
		e.Used, e.Requested, e.Limit)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// APIError represents an error returned by the transformation API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}
