package vaultdb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

// VaultExt is the required file-extension convention for vault files.
const VaultExt = ".vault"

// dataField is the stored-record key holding a document's ciphertext blob.
const dataField = "data"

// VaultConfig configures Open. The zero value (or nil) selects the default
// cipher suite and key-derivation parameters.
type VaultConfig struct {
	// Cipher selects the AEAD suite for new vaults. Existing vaults reopen
	// with the suite recorded in their metadata. Default: AES-256-GCM.
	Cipher CipherSuite

	// KDF overrides the Argon2id parameters. The same parameters must be
	// supplied on every open of the same vault or key derivation will not
	// reproduce the vault key.
	KDF *Argon2idParams

	// AppName is recorded in the metadata of new vault files.
	AppName string

	// AuditPath, when non-empty, enables the encrypted audit log at the
	// given path, keyed by the vault's derived key.
	AuditPath string

	// OnAuditError receives audit write failures. Optional; when nil,
	// failures are logged as warnings. Audit failures never propagate to
	// the vault operation they accompany.
	OnAuditError func(error)

	// Logger is used for the audit log's warning path. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Vault composes the document store, document cipher, and key derivation
// into the user-facing API: payloads are encrypted on write and decrypted
// on read, while document ids stay in plaintext for O(1) lookup.
type Vault struct {
	fs     absfs.FileSystem
	store  *DocumentStore
	engine CipherEngine
	suite  CipherSuite
	key    []byte
	salt   []byte
	kdf    Argon2idParams
	audit  *AuditLog
}

// Open opens the vault at path with the given passphrase, creating the
// vault file (with a fresh salt) when it does not exist. The path must use
// the .vault extension and the passphrase must be non-empty.
//
// An existing file must carry base64 salt metadata; its absence, a bad salt
// encoding, or an unparseable file is a fatal load error.
func Open(fs absfs.FileSystem, path, passphrase string, config *VaultConfig) (*Vault, error) {
	if passphrase == "" {
		return nil, NewValidationError("passphrase", nil, "passphrase must not be empty")
	}
	if filepath.Ext(path) != VaultExt {
		return nil, NewValidationError("path", path, fmt.Sprintf("vault path must use the %s extension", VaultExt))
	}
	if config == nil {
		config = &VaultConfig{}
	}

	kdf := defaultArgon2idParams()
	if config.KDF != nil {
		kdf = *config.KDF
	}
	provider := NewPassphraseKeyProvider(passphrase, kdf)

	exists := true
	if _, err := fs.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) && !os.IsNotExist(err) {
			return nil, NewStorageError("open", path, err)
		}
		exists = false
	}

	suite := config.Cipher
	if suite == CipherAuto {
		suite = CipherAES256GCM
	}

	var store *DocumentStore
	var salt []byte
	if exists {
		var err error
		store, err = OpenStore(fs, path, StoreOptions{AppName: config.AppName})
		if err != nil {
			return nil, err
		}
		salt, err = store.Meta().Salt()
		if err != nil {
			return nil, NewCryptoError("open", fmt.Errorf("vault failed to load %s: %w", path, err))
		}
		if name, ok := store.Meta().Get(MetaCipher); ok {
			s, ok := name.(string)
			if !ok {
				return nil, NewCryptoError("open", fmt.Errorf("vault failed to load %s: malformed cipher metadata", path))
			}
			suite, err = ParseCipherSuite(s)
			if err != nil {
				return nil, NewCryptoError("open", fmt.Errorf("vault failed to load %s: %w", path, err))
			}
		}
	} else {
		var err error
		salt, err = provider.GenerateSalt()
		if err != nil {
			return nil, NewCryptoError("open", err)
		}
		store, err = OpenStore(fs, path, StoreOptions{AppName: config.AppName, Salt: salt})
		if err != nil {
			return nil, err
		}
		if err := store.Meta().Set(MetaCipher, suite.String()); err != nil {
			return nil, err
		}
		// Persist immediately so the salt survives even if no document is
		// ever inserted.
		if err := store.Flush(); err != nil {
			return nil, err
		}
	}

	key, err := provider.DeriveKey(salt)
	if err != nil {
		return nil, NewCryptoError("open", err)
	}
	engine, err := NewCipherEngine(suite, key)
	if err != nil {
		return nil, NewCryptoError("open", err)
	}

	v := &Vault{
		fs:     fs,
		store:  store,
		engine: engine,
		suite:  suite,
		key:    key,
		salt:   salt,
		kdf:    kdf,
	}

	if config.AuditPath != "" {
		v.audit, err = NewAuditLog(fs, config.AuditPath, key, &AuditConfig{
			Cipher:  suite,
			OnError: config.OnAuditError,
			Logger:  config.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	return v, nil
}

// Insert encrypts the full document (including its id) and persists the
// record {_id, data}. A generated uuid is assigned when the document has no
// id. A colliding id is a *DuplicateIDError with no side effects; any other
// encryption or persistence failure is a *CryptoError naming the operation.
func (v *Vault) Insert(doc Document) (string, error) {
	if doc == nil {
		return "", NewValidationError("document", nil, "document must be a non-nil mapping")
	}

	id, err := recordID(doc)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	doc[IDField] = id

	blob, err := sealDocument(v.engine, doc)
	if err != nil {
		return "", err
	}

	if _, err := v.store.Insert(Document{IDField: id, dataField: blob}); err != nil {
		if IsDuplicateIDError(err) || IsValidationError(err) {
			return "", err
		}
		return "", NewCryptoError("insert", err)
	}

	v.logOp("insert", id)
	return id, nil
}

// Get returns the decrypted document with the given id, or ErrNotFound. A
// record missing its ciphertext field or failing authentication is a
// *CryptoError; partial data is never returned.
func (v *Vault) Get(id string) (Document, error) {
	doc, err := v.getDocument(id)
	if err != nil {
		return nil, err
	}
	v.logOp("get", id)
	return doc, nil
}

// getDocument looks up and decrypts one record without audit logging.
func (v *Vault) getDocument(id string) (Document, error) {
	raw, err := v.store.Get(id)
	if err != nil {
		return nil, err
	}

	blob, ok := raw[dataField].(string)
	if !ok {
		return nil, &CryptoError{Operation: "get", Message: fmt.Sprintf("record %q is missing its encrypted data field", id)}
	}
	doc, err := openDocument(v.engine, blob)
	if err != nil {
		return nil, NewCryptoError("get", err)
	}
	if gotID, _ := doc[IDField].(string); gotID != id {
		return nil, &CryptoError{Operation: "get", Message: fmt.Sprintf("decrypted document id %q does not match record id %q", gotID, id)}
	}
	return doc, nil
}

// Update decrypts the current document, shallow-merges partial into it,
// re-encrypts, and persists. Returns false (and no error) when the id does
// not exist.
func (v *Vault) Update(id string, partial Document) (bool, error) {
	if partial == nil {
		return false, NewValidationError("partial", nil, "update must be a non-nil mapping")
	}

	existing, err := v.getDocument(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	for k, val := range partial {
		existing[k] = val
	}
	existing[IDField] = id

	blob, err := sealDocument(v.engine, existing)
	if err != nil {
		return false, err
	}
	ok, err := v.store.Update(id, Document{dataField: blob})
	if err != nil {
		return false, NewCryptoError("update", err)
	}
	if ok {
		v.logOp("update", id)
	}
	return ok, nil
}

// Delete removes the record with the given id. The opaque record needs no
// decryption. Returns whether the id existed.
func (v *Vault) Delete(id string) (bool, error) {
	existed, err := v.store.Delete(id)
	if err != nil {
		return false, err
	}
	if existed {
		v.logOp("delete", id)
	}
	return existed, nil
}

// List decrypts every stored record. In strict mode any record missing its
// ciphertext field, or failing decryption, aborts the whole call with a
// *CryptoError. In non-strict mode such records are silently skipped: an
// intentional lossy-read mode for tolerating partial corruption.
func (v *Vault) List(strict bool) ([]Document, error) {
	records, err := v.store.List()
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(records))
	for _, raw := range records {
		blob, ok := raw[dataField].(string)
		if !ok {
			if strict {
				return nil, &CryptoError{Operation: "list", Message: "record is missing its encrypted data field"}
			}
			continue
		}
		doc, err := openDocument(v.engine, blob)
		if err != nil {
			if strict {
				return nil, NewCryptoError("list", err)
			}
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Find returns the documents where every filter key is present with an
// exactly-equal value (type-sensitive: a string never matches a number).
// An empty filter returns all documents; a nil filter is a validation
// error. Find always reads strictly.
func (v *Vault) Find(filter Document) ([]Document, error) {
	if filter == nil {
		return nil, NewValidationError("filter", nil, "filter must be a non-nil mapping")
	}

	docs, err := v.List(true)
	if err != nil {
		return nil, err
	}

	results := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if matchesFilter(doc, filter) {
			results = append(results, doc)
		}
	}
	return results, nil
}

func matchesFilter(doc, filter Document) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// Rekey re-encrypts every document under a key derived from newPassphrase
// and a fresh salt, then atomically persists the rewritten documents and
// the new salt. On any failure the previous vault state, durable and in
// memory, is fully intact.
//
// The audit log, if enabled, stays keyed by the key it was opened with;
// export it before rekeying if its history must remain readable under the
// new passphrase.
func (v *Vault) Rekey(newPassphrase string) error {
	if newPassphrase == "" {
		return NewValidationError("passphrase", nil, "passphrase must not be empty")
	}

	docs, err := v.List(true)
	if err != nil {
		return err
	}

	provider := NewPassphraseKeyProvider(newPassphrase, v.kdf)
	newSalt, err := provider.GenerateSalt()
	if err != nil {
		return NewCryptoError("rekey", err)
	}
	newKey, err := provider.DeriveKey(newSalt)
	if err != nil {
		return NewCryptoError("rekey", err)
	}
	newEngine, err := NewCipherEngine(v.suite, newKey)
	if err != nil {
		return NewCryptoError("rekey", err)
	}

	newDocs := make(map[string]Document, len(docs))
	for _, doc := range docs {
		id, _ := doc[IDField].(string)
		blob, err := sealDocument(newEngine, doc)
		if err != nil {
			return NewCryptoError("rekey", err)
		}
		newDocs[id] = Document{IDField: id, dataField: blob}
	}

	oldDocs, oldSalt := v.store.docs, v.salt
	v.store.docs = newDocs
	v.store.meta.setSalt(newSalt)
	if err := v.store.atomicWrite(); err != nil {
		v.store.docs = oldDocs
		v.store.meta.setSalt(oldSalt)
		return err
	}

	v.key = newKey
	v.salt = newSalt
	v.engine = newEngine
	v.logOp("rekey", "")
	return nil
}

// Meta returns the vault's protected metadata block.
func (v *Vault) Meta() *Metadata {
	return v.store.Meta()
}

// AuditLog returns the vault's audit log, or nil when auditing is disabled.
func (v *Vault) AuditLog() *AuditLog {
	return v.audit
}

// Path returns the vault file path.
func (v *Vault) Path() string {
	return v.store.Path()
}

// logOp issues a best-effort audit write after a primary operation has
// completed. It never affects the primary result.
func (v *Vault) logOp(op, id string) {
	if v.audit == nil {
		return
	}
	v.audit.Log(op, id, nil)
}
