package vaultdb

import (
	"errors"
	"fmt"
)

// Error types represent the failure taxonomy of the store

// ValidationError reports a malformed caller argument: a nil document,
// filter or update, an empty passphrase, a negative count, or a path that
// does not follow the vault file-extension convention. It is raised before
// any I/O or cryptographic work; state is unchanged.
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DuplicateIDError reports an insert that collided with an existing
// document id. No mutation was performed.
type DuplicateIDError struct {
	ID string // The colliding document id
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id error: document with _id %q already exists", e.ID)
}

// StorageError reports an unreadable, unparseable, or unsupported vault
// file, or a failed atomic rewrite (the original file is preserved).
type StorageError struct {
	Operation string // "load", "write", "rename", etc.
	Path      string // Vault file path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("storage error: %s: %s", e.Operation, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CryptoError reports a key derivation, encryption, or decryption failure:
// wrong key, tampered ciphertext, missing ciphertext field, or malformed
// blob. Decryption always fails closed; partial plaintext is never returned.
type CryptoError struct {
	Operation string // "encrypt", "decrypt", "derive", or the vault op that failed
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *CryptoError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("crypto error: %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("crypto error: %s", e.Message)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// ProtectionError reports an attempt to overwrite or delete a read-only
// metadata field. The stored value is unchanged.
type ProtectionError struct {
	Key string // The protected metadata key
}

func (e *ProtectionError) Error() string {
	return fmt.Sprintf("protection error: metadata key %q is read-only", e.Key)
}

// Common sentinel errors
var (
	// ErrNotFound is returned by lookups when no document has the given id.
	ErrNotFound = errors.New("document not found")

	ErrAuthFailed        = errors.New("authentication failed - data may be corrupted or tampered")
	ErrInvalidKey        = errors.New("invalid encryption key")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrUnsupportedCipher = errors.New("unsupported cipher suite")
	ErrMissingSalt       = errors.New("vault metadata is missing salt")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewStorageError creates a new storage error
func NewStorageError(operation, path string, err error) error {
	return &StorageError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewCryptoError creates a new crypto error
func NewCryptoError(operation string, err error) error {
	return &CryptoError{
		Operation: operation,
		Message:   err.Error(),
		Err:       err,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsDuplicateIDError checks if an error is a duplicate id error
func IsDuplicateIDError(err error) bool {
	var de *DuplicateIDError
	return errors.As(err, &de)
}

// IsStorageError checks if an error is a storage error
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsCryptoError checks if an error is a crypto error
func IsCryptoError(err error) bool {
	var ce *CryptoError
	return errors.As(err, &ce)
}

// IsProtectionError checks if an error is a protection error
func IsProtectionError(err error) bool {
	var pe *ProtectionError
	return errors.As(err, &pe)
}
