package vaultdb

import (
	"encoding/json"
	"os"
	"strings"
)

// KeyExportExt is the file-extension convention for exported key material.
const KeyExportExt = ".vaultkey"

// KeyExport carries a vault's raw key material for out-of-band backup.
type KeyExport struct {
	Key          string `json:"key"`           // base64url raw key
	Salt         string `json:"salt"`          // base64url salt
	VaultVersion string `json:"vault_version"` // vault format version
}

// ExportKey returns the vault's raw key, its salt, and the vault format
// version. This is the only operation that exposes raw key material; anyone
// holding the export can decrypt the vault without the passphrase.
func (v *Vault) ExportKey() *KeyExport {
	return &KeyExport{
		Key:          blobEncoding.EncodeToString(v.key),
		Salt:         blobEncoding.EncodeToString(v.salt),
		VaultVersion: v.store.Meta().VaultVersion(),
	}
}

// ExportKeyToFile writes the key export as JSON to the given path,
// appending the .vaultkey extension when missing, and returns the path
// written. An explicit destination is required.
func (v *Vault) ExportKeyToFile(path string) (string, error) {
	if path == "" {
		return "", NewValidationError("path", nil, "key export requires an explicit destination path")
	}
	if !strings.HasSuffix(path, KeyExportExt) {
		path += KeyExportExt
	}

	content, err := json.MarshalIndent(v.ExportKey(), "", "  ")
	if err != nil {
		return "", NewStorageError("export", path, err)
	}

	f, err := v.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", NewStorageError("export", path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return "", NewStorageError("export", path, err)
	}
	if err := f.Close(); err != nil {
		return "", NewStorageError("export", path, err)
	}
	return path, nil
}
