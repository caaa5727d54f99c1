// Package apikey manages the encrypted Gemini API key: format checks,
// device-bound encryption at rest, tiered persistence and upstream
// validation with short-lived verdict caching.
package apikey

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/TheMichaelB/artvault/internal/crypto"
	"github.com/TheMichaelB/artvault/internal/events"
	"github.com/TheMichaelB/artvault/internal/keystore"
	"github.com/TheMichaelB/artvault/internal/models"
	"github.com/TheMichaelB/artvault/internal/transport"
)

// keyName is the logical record name; the vault holds one Gemini key.
const keyName = "gemini"

// Verdict cache lifetimes. Rejections expire quickly so a key activated
// upstream moments ago is not reported invalid for long.
const (
	validCacheTTL   = 5 * time.Minute
	invalidCacheTTL = time.Minute
)

// keyPattern matches Google AI Studio keys: "AIza" plus 35 characters.
var keyPattern = regexp.MustCompile(`^AIza[A-Za-z0-9_-]{35}$`)

// Tier identifies which keystore backend is serving requests.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierDegraded Tier = "degraded"
)

// Status reports the state of the stored key without exposing it. IsValid
// is nil (null in JSON) until a validation verdict for the stored key is
// cached, so consumers can tell "never probed" from "rejected".
type Status struct {
	HasKey        bool      `json:"has_key"`
	Tier          Tier      `json:"tier"`
	IsValid       *bool     `json:"is_valid"`
	LastValidated time.Time `json:"last_validated,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	LastUsedAt    time.Time `json:"last_used_at,omitempty"`
	IsActive      bool      `json:"is_active"`
}

// Metadata is the record bookkeeping, available without decrypting.
type Metadata struct {
	HasKey     bool      `json:"has_key"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
	IsActive   bool      `json:"is_active"`
}

type verdict struct {
	valid     bool
	checkedAt time.Time
	expires   time.Time
}

// Service stores and validates the API key. Reads prefer the primary
// keystore; once a primary operation fails the service degrades to the
// fallback store and never moves back within the process.
type Service struct {
	mu sync.Mutex

	provider  crypto.Provider
	primary   keystore.Store
	fallback  keystore.Store
	validator transport.KeyValidator
	logger    *events.Logger

	tier      Tier
	plaintext string // decrypted key, cached after first successful read
	verdicts  map[string]verdict

	now func() time.Time
}

// NewService creates an API key service on the given stores.
func NewService(provider crypto.Provider, primary, fallback keystore.Store, validator transport.KeyValidator, logger *events.Logger) *Service {
	return &Service{
		provider:  provider,
		primary:   primary,
		fallback:  fallback,
		validator: validator,
		logger:    logger.WithField("service", "apikey"),
		tier:      TierPrimary,
		verdicts:  make(map[string]verdict),
		now:       time.Now,
	}
}

// Tier reports which keystore backend is currently serving requests.
func (s *Service) Tier() Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// Store encrypts the key against this device and persists it. The key
// must match the expected format; nothing is written otherwise.
func (s *Service) Store(ctx context.Context, key string) error {
	if !keyPattern.MatchString(key) {
		return &models.ValidationError{
			Field:  "api_key",
			Reason: "must start with AIza followed by 35 characters",
		}
	}

	salt, err := s.provider.NewSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	derived := s.provider.DeriveKey(crypto.Fingerprint(), salt)
	ciphertext, iv, err := s.provider.Encrypt([]byte(key), derived)
	if err != nil {
		return fmt.Errorf("encrypt key: %w", err)
	}

	now := s.now().UTC()
	rec := &keystore.Record{
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		IV:         base64.StdEncoding.EncodeToString(iv),
		CreatedAt:  now,
		LastUsedAt: now,
		IsActive:   true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.put(rec); err != nil {
		return err
	}

	s.plaintext = key
	delete(s.verdicts, key)

	s.logger.WithField("tier", s.tier).Info("API key stored")
	return nil
}

// Update replaces the stored key. Same behavior as Store.
func (s *Service) Update(ctx context.Context, key string) error {
	return s.Store(ctx, key)
}

// Retrieve decrypts and returns the stored key. Returns
// models.ErrNoAPIKey when none is stored and models.ErrDecryptionFailed
// when the record cannot be opened on this device.
func (s *Service) Retrieve(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plaintext != "" {
		return s.plaintext, nil
	}

	rec, err := s.get()
	if err != nil {
		return "", err
	}

	key, err := s.open(rec)
	if err != nil {
		return "", err
	}

	s.plaintext = key

	// Best effort; a failed timestamp write never blocks retrieval.
	rec.LastUsedAt = s.now().UTC()
	if err := s.put(rec); err != nil {
		s.logger.WithError(err).Warn("Failed to update last-used timestamp")
	}

	return key, nil
}

// Validate checks a key against the upstream service, serving recent
// verdicts from cache. Accepted keys are cached longer than rejected
// ones. An empty key validates the stored one.
func (s *Service) Validate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		stored, err := s.Retrieve(ctx)
		if err != nil {
			return false, err
		}
		key = stored
	}

	s.mu.Lock()
	if v, ok := s.verdicts[key]; ok && s.now().Before(v.expires) {
		s.mu.Unlock()
		return v.valid, nil
	}
	s.mu.Unlock()

	valid, err := s.validator.ValidateKey(ctx, key)
	if err != nil {
		// Cache the failure briefly so an unreachable endpoint is not
		// hammered on every call.
		s.cacheVerdict(key, false, invalidCacheTTL)
		return false, fmt.Errorf("validate key: %w", err)
	}

	ttl := validCacheTTL
	if !valid {
		ttl = invalidCacheTTL
	}
	s.cacheVerdict(key, valid, ttl)

	return valid, nil
}

// TestConnection probes the upstream service with the stored key,
// bypassing the verdict cache.
func (s *Service) TestConnection(ctx context.Context) (bool, error) {
	key, err := s.Retrieve(ctx)
	if err != nil {
		return false, err
	}

	valid, err := s.validator.ValidateKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("test connection: %w", err)
	}

	s.cacheVerdict(key, valid, validCacheTTL)
	return valid, nil
}

// GetStatus reports key presence and metadata without decrypting.
func (s *Service) GetStatus(ctx context.Context) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &Status{Tier: s.tier}

	rec, err := s.get()
	if err != nil {
		if err == models.ErrNoAPIKey {
			status.Tier = s.tier // get may have degraded the tier
			return status, nil
		}
		return nil, err
	}

	status.HasKey = true
	status.Tier = s.tier
	status.CreatedAt = rec.CreatedAt
	status.LastUsedAt = rec.LastUsedAt
	status.IsActive = rec.IsActive

	// A verdict can only be attributed to the stored key when its
	// plaintext is cached from a prior Store or Retrieve.
	if s.plaintext != "" {
		if v, ok := s.verdicts[s.plaintext]; ok {
			valid := v.valid
			status.IsValid = &valid
			status.LastValidated = v.checkedAt
		}
	}
	return status, nil
}

// GetMetadata reports the record bookkeeping without decrypting.
func (s *Service) GetMetadata(ctx context.Context) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.get()
	if err != nil {
		if err == models.ErrNoAPIKey {
			return &Metadata{}, nil
		}
		return nil, err
	}

	return &Metadata{
		HasKey:     true,
		CreatedAt:  rec.CreatedAt,
		LastUsedAt: rec.LastUsedAt,
		IsActive:   rec.IsActive,
	}, nil
}

// Delete removes the key from every tier and drops cached state.
// Deleting when no key is stored is not an error.
func (s *Service) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, store := range []keystore.Store{s.primary, s.fallback} {
		if err := store.Delete(keyName); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.plaintext = ""
	s.verdicts = make(map[string]verdict)

	if firstErr != nil {
		return fmt.Errorf("delete key: %w", firstErr)
	}

	s.logger.Info("API key deleted")
	return nil
}

// ClearCache drops the decrypted key and all validation verdicts.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plaintext = ""
	s.verdicts = make(map[string]verdict)
}

// put writes through the current tier, degrading once on primary
// failure. Callers hold the mutex.
func (s *Service) put(rec *keystore.Record) error {
	if s.tier == TierPrimary {
		err := s.primary.Put(keyName, rec)
		if err == nil {
			return nil
		}
		s.degrade(err)
	}

	if err := s.fallback.Put(keyName, rec); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return nil
}

// get reads from the current tier, degrading once on primary failure.
// A healthy primary with no record still consults the fallback: the key
// may have been written there during an earlier degraded session.
// Callers hold the mutex.
func (s *Service) get() (*keystore.Record, error) {
	if s.tier == TierPrimary {
		rec, err := s.primary.Get(keyName)
		if err == nil {
			return rec, nil
		}
		if err != keystore.ErrRecordNotFound {
			s.degrade(err)
		}
	}

	rec, err := s.fallback.Get(keyName)
	if err == keystore.ErrRecordNotFound {
		return nil, models.ErrNoAPIKey
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorageUnavailable, err)
	}
	return rec, nil
}

// open decrypts a record using this device's fingerprint.
func (s *Service) open(rec *keystore.Record) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(rec.CipherText)
	if err != nil {
		return "", models.ErrDecryptionFailed
	}
	salt, err := base64.StdEncoding.DecodeString(rec.Salt)
	if err != nil {
		return "", models.ErrDecryptionFailed
	}
	iv, err := base64.StdEncoding.DecodeString(rec.IV)
	if err != nil {
		return "", models.ErrDecryptionFailed
	}

	derived := s.provider.DeriveKey(crypto.Fingerprint(), salt)
	plaintext, err := s.provider.Decrypt(ciphertext, derived, iv)
	if err != nil {
		s.logger.WithError(err).Warn("Stored key cannot be decrypted on this device")
		return "", models.ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// degrade switches to the fallback tier. The transition is one-way for
// the life of the process.
func (s *Service) degrade(cause error) {
	s.tier = TierDegraded
	s.logger.WithError(cause).Warn("Primary keystore unavailable, degrading to fallback")
}

func (s *Service) cacheVerdict(key string, valid bool, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.verdicts[key] = verdict{valid: valid, checkedAt: now, expires: now.Add(ttl)}
}
