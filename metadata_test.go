package vaultdb

import (
	"bytes"
	"errors"
	"testing"
)

func TestMetadataProtectedKeys(t *testing.T) {
	meta := newMetadata("testapp", nil)
	version := meta.VaultVersion()
	created := meta.CreatedAt()

	for _, key := range []string{MetaVaultVersion, MetaCreatedAt} {
		if err := meta.Set(key, "overwritten"); !IsProtectionError(err) {
			t.Errorf("Set(%q) error = %v, want protection error", key, err)
		}
		if err := meta.Delete(key); !IsProtectionError(err) {
			t.Errorf("Delete(%q) error = %v, want protection error", key, err)
		}
	}

	if meta.VaultVersion() != version {
		t.Error("vault_version changed after rejected write")
	}
	if meta.CreatedAt() != created {
		t.Error("created_at changed after rejected write")
	}
}

func TestMetadataFreeKeys(t *testing.T) {
	meta := newMetadata("", nil)

	if err := meta.Set("environment", "staging"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok := meta.Get("environment")
	if !ok || v != "staging" {
		t.Errorf("Get(environment) = %v, %v; want staging, true", v, ok)
	}

	if err := meta.Delete("environment"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := meta.Get("environment"); ok {
		t.Error("deleted key still present")
	}
}

func TestMetadataSalt(t *testing.T) {
	salt, _ := GenerateSalt()
	meta := newMetadata("", salt)

	got, err := meta.Salt()
	if err != nil {
		t.Fatalf("Salt failed: %v", err)
	}
	if !bytes.Equal(got, salt) {
		t.Error("salt did not round trip through metadata")
	}

	bare := newMetadata("", nil)
	if _, err := bare.Salt(); !errors.Is(err, ErrMissingSalt) {
		t.Errorf("Salt() error = %v, want ErrMissingSalt", err)
	}
}

func TestMetadataInitialFields(t *testing.T) {
	meta := newMetadata("journal", nil)

	if meta.VaultVersion() != Version {
		t.Errorf("vault_version = %q, want %q", meta.VaultVersion(), Version)
	}
	if meta.CreatedAt() == "" {
		t.Error("created_at is empty")
	}
	if meta.AppName() != "journal" {
		t.Errorf("app_name = %q, want journal", meta.AppName())
	}
}
