package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Key sizes
	KeySize = 32 // AES-256
	IVSize  = 12 // GCM standard
	TagSize = 16 // GCM tag

	// PBKDF2 parameters. The iteration count is deliberately high to slow
	// offline guessing even though the passphrase is a device fingerprint,
	// not a secret.
	Iterations = 100000
	SaltSize   = 16
)

// Errors
var (
	ErrInvalidKey        = errors.New("invalid key size")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Provider defines the interface for cryptographic operations.
type Provider interface {
	// DeriveKey derives a symmetric key from a passphrase and salt.
	DeriveKey(passphrase string, salt []byte) []byte

	// NewSalt returns a fresh random salt for key derivation.
	NewSalt() ([]byte, error)

	// Encrypt seals plaintext with AES-GCM under a fresh random IV.
	// The returned ciphertext includes the authentication tag; the IV is
	// returned separately so it can be stored next to the record.
	Encrypt(plaintext, key []byte) (ciphertext, iv []byte, err error)

	// Decrypt opens ciphertext and fails on any tag mismatch.
	Decrypt(ciphertext, key, iv []byte) ([]byte, error)
}

// DeviceCrypto implements Provider with PBKDF2-SHA256 and AES-256-GCM.
type DeviceCrypto struct {
	iterations int
}

// NewProvider creates a crypto provider.
func NewProvider() Provider {
	return &DeviceCrypto{iterations: Iterations}
}

// DeriveKey derives a 256-bit key. The same (passphrase, salt) pair always
// yields the same key; changing either yields a different key.
func (p *DeviceCrypto) DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, p.iterations, KeySize, sha256.New)
}

// NewSalt returns SaltSize random bytes.
func (p *DeviceCrypto) NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Encrypt seals plaintext using AES-GCM. The IV is never reused: every
// call draws a fresh one from crypto/rand.
func (p *DeviceCrypto) Encrypt(plaintext, key []byte) ([]byte, []byte, error) {
	if len(key) != KeySize {
		return nil, nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("create GCM: %w", err)
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("generate IV: %w", err)
	}

	ciphertext := aead.Seal(nil, iv, plaintext, nil)
	return ciphertext, iv, nil
}

// Decrypt opens ciphertext using AES-GCM. A failed tag check surfaces as
// ErrDecryptionFailed; corrupted data never comes back as plaintext.
func (p *DeviceCrypto) Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	// Minimum size: the tag alone
	if len(ciphertext) < TagSize || len(iv) != IVSize {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// ValidateKeySize checks if the key is the correct size.
func ValidateKeySize(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("invalid key size: expected %d, got %d", KeySize, len(key))
	}
	return nil
}
