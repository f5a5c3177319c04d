package vaultdb

import (
	"bytes"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}

	provider := NewPassphraseKeyProvider("correct horse battery staple", *lightKDF())
	k1, err := provider.DeriveKey(salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := provider.DeriveKey(salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("same passphrase and salt produced different keys")
	}
	if len(k1) != KeySize {
		t.Errorf("derived key is %d bytes, want %d", len(k1), KeySize)
	}
}

func TestDeriveKeySaltIsolation(t *testing.T) {
	s1, _ := GenerateSalt()
	s2, _ := GenerateSalt()
	if bytes.Equal(s1, s2) {
		t.Fatal("two generated salts collided")
	}

	provider := NewPassphraseKeyProvider("same-passphrase", *lightKDF())
	k1, err := provider.DeriveKey(s1)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := provider.DeriveKey(s2)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if bytes.Equal(k1, k2) {
		t.Error("different salts produced the same key")
	}
}

func TestGenerateSaltLength(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	if len(salt) != SaltSize {
		t.Errorf("salt is %d bytes, want %d", len(salt), SaltSize)
	}
}

func TestDeriveKeyValidation(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		salt       []byte
	}{
		{"empty passphrase", "", bytes.Repeat([]byte{1}, SaltSize)},
		{"nil salt", "ok", nil},
		{"short salt", "ok", []byte("too-short")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewPassphraseKeyProvider(tt.passphrase, *lightKDF())
			if _, err := provider.DeriveKey(tt.salt); !IsValidationError(err) {
				t.Errorf("DeriveKey() error = %v, want validation error", err)
			}
		})
	}
}

func TestPBKDF2Provider(t *testing.T) {
	salt, _ := GenerateSalt()
	provider := NewPassphraseKeyProviderPBKDF2("pbkdf2-pass", PBKDF2Params{Iterations: 1000})

	k1, err := provider.DeriveKey(salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := provider.DeriveKey(salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("PBKDF2 derivation is not deterministic")
	}
	if len(k1) != KeySize {
		t.Errorf("derived key is %d bytes, want %d", len(k1), KeySize)
	}
}

func TestRawKeyProvider(t *testing.T) {
	provider, err := NewRawKeyProvider(testKey)
	if err != nil {
		t.Fatalf("NewRawKeyProvider failed: %v", err)
	}

	key, err := provider.DeriveKey(nil)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if !bytes.Equal(key, testKey) {
		t.Error("raw provider did not return the supplied key")
	}

	if _, err := NewRawKeyProvider([]byte("short")); !IsValidationError(err) {
		t.Errorf("NewRawKeyProvider(short) error = %v, want validation error", err)
	}
}
