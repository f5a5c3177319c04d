package vaultdb

import (
	"encoding/json"
	"time"
)

// Version is the vault format version written into new vault files.
// It must be incremented for any change that breaks compatibility with the
// existing on-disk format.
const Version = "1.0.0"

// Reserved metadata keys. vault_version and created_at are fixed at vault
// creation and can never be rewritten through the metadata interface.
const (
	MetaVaultVersion = "vault_version"
	MetaCreatedAt    = "created_at"
	MetaAppName      = "app_name"
	MetaSalt         = "salt"
	MetaCipher       = "cipher"
)

var protectedMetaKeys = map[string]bool{
	MetaVaultVersion: true,
	MetaCreatedAt:    true,
}

// Metadata is the protected metadata block of a vault file: a mapping whose
// reserved keys (vault_version, created_at) are immutable after
// construction, while every other key is freely read, written, and deleted.
type Metadata struct {
	values map[string]any
}

// newMetadata initializes metadata for a fresh vault file.
func newMetadata(appName string, salt []byte) *Metadata {
	values := map[string]any{
		MetaVaultVersion: Version,
		MetaCreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if appName != "" {
		values[MetaAppName] = appName
	}
	if len(salt) > 0 {
		values[MetaSalt] = blobEncoding.EncodeToString(salt)
	}
	return &Metadata{values: values}
}

// Get returns the value stored under key and whether it is present.
func (m *Metadata) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores a value under key. Writing a protected key is a
// *ProtectionError and leaves the stored value unchanged.
func (m *Metadata) Set(key string, value any) error {
	if protectedMetaKeys[key] {
		return &ProtectionError{Key: key}
	}
	m.values[key] = value
	return nil
}

// Delete removes key. Deleting a protected key is a *ProtectionError.
func (m *Metadata) Delete(key string) error {
	if protectedMetaKeys[key] {
		return &ProtectionError{Key: key}
	}
	delete(m.values, key)
	return nil
}

// Keys returns all metadata keys in unspecified order.
func (m *Metadata) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

// VaultVersion returns the immutable vault format version.
func (m *Metadata) VaultVersion() string {
	s, _ := m.values[MetaVaultVersion].(string)
	return s
}

// CreatedAt returns the immutable creation timestamp (RFC 3339 UTC).
func (m *Metadata) CreatedAt() string {
	s, _ := m.values[MetaCreatedAt].(string)
	return s
}

// AppName returns the application name recorded at creation, if any.
func (m *Metadata) AppName() string {
	s, _ := m.values[MetaAppName].(string)
	return s
}

// Salt returns the decoded key-derivation salt, or ErrMissingSalt when the
// metadata carries none.
func (m *Metadata) Salt() ([]byte, error) {
	encoded, ok := m.values[MetaSalt].(string)
	if !ok || encoded == "" {
		return nil, ErrMissingSalt
	}
	salt, err := blobEncoding.DecodeString(encoded)
	if err != nil {
		return nil, NewCryptoError("derive", err)
	}
	return salt, nil
}

// setSalt records a new salt. Internal: only vault creation and rekeying
// rotate the salt.
func (m *Metadata) setSalt(salt []byte) {
	m.values[MetaSalt] = blobEncoding.EncodeToString(salt)
}

// MarshalJSON encodes the metadata as a flat JSON object.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.values)
}

// UnmarshalJSON decodes a flat JSON object. Protection applies to
// subsequent writes, not to the decoded snapshot itself.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	values := make(map[string]any)
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	m.values = values
	return nil
}
