package vaultdb

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the length of every derived or supplied symmetric key.
const KeySize = 32

// SaltSize is the default salt length produced by GenerateSalt.
const SaltSize = 32

// MinSaltSize is the shortest salt accepted for key derivation.
const MinSaltSize = 16

// HashFunc represents hash function types for PBKDF2
type HashFunc uint8

const (
	// SHA256 hash function
	SHA256 HashFunc = iota
	// SHA512 hash function
	SHA512
)

// PBKDF2Params contains parameters for PBKDF2 key derivation
type PBKDF2Params struct {
	Iterations int      // Number of iterations (minimum 100,000 recommended)
	HashFunc   HashFunc // Hash function to use
	SaltSize   int      // Salt size in bytes (default 32)
	KeySize    int      // Derived key size in bytes (default 32)
}

// Argon2idParams contains parameters for Argon2id key derivation
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB (e.g., 64*1024 for 64MB)
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
	SaltSize    int    // Salt size in bytes (default 32)
	KeySize     int    // Derived key size in bytes (default 32)
}

// defaultArgon2idParams are the fixed parameters of the vault format.
// They must not change within a format version: the key derived on reopen
// has to match the key derived at creation.
func defaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltSize:    SaltSize,
		KeySize:     KeySize,
	}
}

// KeyProvider is an interface for providing encryption keys
type KeyProvider interface {
	// DeriveKey derives an encryption key from the given salt
	DeriveKey(salt []byte) ([]byte, error)

	// GenerateSalt generates a new random salt
	GenerateSalt() ([]byte, error)
}

// PassphraseKeyProvider implements KeyProvider using password-based key derivation
type PassphraseKeyProvider struct {
	passphrase   []byte
	useArgon2id  bool
	pbkdf2Params PBKDF2Params
	argon2Params Argon2idParams
}

// NewPassphraseKeyProvider creates a passphrase-based key provider using
// Argon2id (recommended). Zero-value parameters are filled with defaults.
func NewPassphraseKeyProvider(passphrase string, params Argon2idParams) *PassphraseKeyProvider {
	// Set defaults
	if params.Memory == 0 {
		params.Memory = 64 * 1024 // 64 MB
	}
	if params.Iterations == 0 {
		params.Iterations = 3
	}
	if params.Parallelism == 0 {
		params.Parallelism = 4
	}
	if params.SaltSize == 0 {
		params.SaltSize = SaltSize
	}
	if params.KeySize == 0 {
		params.KeySize = KeySize
	}

	return &PassphraseKeyProvider{
		passphrase:   []byte(passphrase),
		useArgon2id:  true,
		argon2Params: params,
	}
}

// NewPassphraseKeyProviderPBKDF2 creates a passphrase-based key provider using PBKDF2
func NewPassphraseKeyProviderPBKDF2(passphrase string, params PBKDF2Params) *PassphraseKeyProvider {
	// Set defaults
	if params.Iterations == 0 {
		params.Iterations = 100000
	}
	if params.SaltSize == 0 {
		params.SaltSize = SaltSize
	}
	if params.KeySize == 0 {
		params.KeySize = KeySize
	}

	return &PassphraseKeyProvider{
		passphrase:   []byte(passphrase),
		useArgon2id:  false,
		pbkdf2Params: params,
	}
}

// DeriveKey derives an encryption key from the passphrase and salt.
// Derivation is deterministic: the same passphrase, salt, and parameters
// always yield the same key.
func (p *PassphraseKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	if len(p.passphrase) == 0 {
		return nil, NewValidationError("passphrase", nil, "passphrase must not be empty")
	}
	if err := validateSalt(salt); err != nil {
		return nil, err
	}

	if p.useArgon2id {
		key := argon2.IDKey(
			p.passphrase,
			salt,
			p.argon2Params.Iterations,
			p.argon2Params.Memory,
			p.argon2Params.Parallelism,
			uint32(p.argon2Params.KeySize),
		)
		return key, nil
	}

	var hashFunc func() hash.Hash
	switch p.pbkdf2Params.HashFunc {
	case SHA256:
		hashFunc = sha256.New
	case SHA512:
		hashFunc = sha512.New
	default:
		return nil, NewValidationError("hash_func", p.pbkdf2Params.HashFunc, "unsupported hash function")
	}

	key := pbkdf2.Key(
		p.passphrase,
		salt,
		p.pbkdf2Params.Iterations,
		p.pbkdf2Params.KeySize,
		hashFunc,
	)
	return key, nil
}

// GenerateSalt generates a new random salt
func (p *PassphraseKeyProvider) GenerateSalt() ([]byte, error) {
	saltSize := p.argon2Params.SaltSize
	if !p.useArgon2id {
		saltSize = p.pbkdf2Params.SaltSize
	}
	return generateSalt(saltSize)
}

// RawKeyProvider implements KeyProvider with a pre-derived key. The salt is
// ignored on derivation; it exists so a raw key can stand in wherever a
// passphrase-derived key is expected.
type RawKeyProvider struct {
	key []byte
}

// NewRawKeyProvider creates a key provider around an existing 32-byte key
func NewRawKeyProvider(key []byte) (*RawKeyProvider, error) {
	if len(key) != KeySize {
		return nil, NewValidationError("key", len(key), fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key)))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &RawKeyProvider{key: k}, nil
}

// DeriveKey returns a copy of the raw key; the salt is ignored
func (r *RawKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	k := make([]byte, KeySize)
	copy(k, r.key)
	return k, nil
}

// GenerateSalt generates a new random salt
func (r *RawKeyProvider) GenerateSalt() ([]byte, error) {
	return generateSalt(SaltSize)
}

// DeriveKey derives a 32-byte symmetric key from a passphrase and salt using
// Argon2id with the fixed vault-format parameters. Same inputs always yield
// the same key.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	return NewPassphraseKeyProvider(passphrase, defaultArgon2idParams()).DeriveKey(salt)
}

// GenerateSalt produces a fresh cryptographically random salt of SaltSize
// bytes. Every call returns a new value.
func GenerateSalt() ([]byte, error) {
	return generateSalt(SaltSize)
}

func generateSalt(size int) ([]byte, error) {
	if size < MinSaltSize {
		return nil, NewValidationError("salt_size", size, fmt.Sprintf("salt must be at least %d bytes", MinSaltSize))
	}
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func validateSalt(salt []byte) error {
	if salt == nil {
		return NewValidationError("salt", nil, "salt cannot be nil")
	}
	if len(salt) < MinSaltSize {
		return NewValidationError("salt", len(salt), fmt.Sprintf("salt too short: got %d bytes, need at least %d", len(salt), MinSaltSize))
	}
	return nil
}
