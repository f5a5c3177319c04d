package vaultdb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a JSON-compatible mapping. Every stored document carries a
// unique string identifier under the IDField key.
type Document map[string]any

// IDField is the reserved document key holding the unique identifier.
const IDField = "_id"

// blobEncoding encodes ciphertext blobs. URL-safe base64 keeps blobs free of
// newlines and of the "." separator used by the salted blob format.
var blobEncoding = base64.URLEncoding

// sealDocument serializes a document to canonical JSON and produces an
// authenticated ciphertext blob under the given engine.
func sealDocument(engine CipherEngine, doc Document) (string, error) {
	if doc == nil {
		return "", NewValidationError("document", nil, "document must be a non-nil mapping")
	}

	plaintext, err := json.Marshal(doc)
	if err != nil {
		return "", NewCryptoError("encrypt", fmt.Errorf("failed to serialize document: %w", err))
	}

	nonce, err := GenerateNonce(engine)
	if err != nil {
		return "", NewCryptoError("encrypt", err)
	}

	ciphertext, err := engine.Encrypt(nonce, plaintext)
	if err != nil {
		return "", NewCryptoError("encrypt", err)
	}

	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blobEncoding.EncodeToString(blob), nil
}

// openDocument reverses sealDocument. It fails closed: any decode, length,
// authentication, or JSON failure is a *CryptoError and no partial result
// is ever returned.
func openDocument(engine CipherEngine, blob string) (Document, error) {
	raw, err := blobEncoding.DecodeString(blob)
	if err != nil {
		return nil, NewCryptoError("decrypt", fmt.Errorf("%w: not a valid blob", ErrInvalidCiphertext))
	}
	if len(raw) < engine.NonceSize()+engine.Overhead() {
		return nil, NewCryptoError("decrypt", fmt.Errorf("%w: blob too short", ErrInvalidCiphertext))
	}

	nonce := raw[:engine.NonceSize()]
	ciphertext := raw[engine.NonceSize():]

	plaintext, err := engine.Decrypt(nonce, ciphertext)
	if err != nil {
		return nil, NewCryptoError("decrypt", err)
	}

	var doc Document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, NewCryptoError("decrypt", fmt.Errorf("failed to deserialize document: %w", err))
	}
	return doc, nil
}

// EncryptDocument encrypts a document under a 32-byte key using the default
// cipher suite (AES-256-GCM). The blob is base64url(nonce || ciphertext).
func EncryptDocument(doc Document, key []byte) (string, error) {
	if doc == nil {
		return "", NewValidationError("document", nil, "document must be a non-nil mapping")
	}
	engine, err := NewCipherEngine(CipherAES256GCM, key)
	if err != nil {
		return "", NewCryptoError("encrypt", err)
	}
	return sealDocument(engine, doc)
}

// DecryptDocument decrypts a blob produced by EncryptDocument. Any
// corruption, wrong key, or non-ciphertext input yields a *CryptoError.
func DecryptDocument(blob string, key []byte) (Document, error) {
	engine, err := NewCipherEngine(CipherAES256GCM, key)
	if err != nil {
		return nil, NewCryptoError("decrypt", err)
	}
	return openDocument(engine, blob)
}

// EncryptWithSalt encrypts a document under a key derived from the
// passphrase and a freshly generated salt, bundling the salt with the
// ciphertext so the blob is self-describing:
//
//	base64url(salt) + "." + base64url(nonce || ciphertext)
func EncryptWithSalt(doc Document, passphrase string) (string, error) {
	if doc == nil {
		return "", NewValidationError("document", nil, "document must be a non-nil mapping")
	}
	if passphrase == "" {
		return "", NewValidationError("passphrase", nil, "passphrase must not be empty")
	}

	salt, err := GenerateSalt()
	if err != nil {
		return "", NewCryptoError("encrypt", err)
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", NewCryptoError("encrypt", err)
	}

	token, err := EncryptDocument(doc, key)
	if err != nil {
		return "", err
	}
	return blobEncoding.EncodeToString(salt) + "." + token, nil
}

// DecryptWithSalt reverses EncryptWithSalt. Tampering with either the salt
// half or the ciphertext half fails decryption.
func DecryptWithSalt(blob, passphrase string) (Document, error) {
	if passphrase == "" {
		return nil, NewValidationError("passphrase", nil, "passphrase must not be empty")
	}

	saltPart, token, found := strings.Cut(blob, ".")
	if !found {
		return nil, NewCryptoError("decrypt", fmt.Errorf("%w: missing salt separator", ErrInvalidCiphertext))
	}

	salt, err := blobEncoding.DecodeString(saltPart)
	if err != nil {
		return nil, NewCryptoError("decrypt", fmt.Errorf("%w: malformed salt", ErrInvalidCiphertext))
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return nil, NewCryptoError("decrypt", err)
	}
	return DecryptDocument(token, key)
}
