package vaultdb

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

// StoreOptions configures a DocumentStore on first open of a nonexistent
// file. Both fields are ignored when the file already exists.
type StoreOptions struct {
	// AppName is recorded in the metadata block of new vault files.
	AppName string

	// Salt is recorded base64-encoded in the metadata block of new vault
	// files so a passphrase key can be re-derived on reopen.
	Salt []byte
}

// vaultFile is the on-disk shape of a vault: a protected metadata block and
// a mapping from document id to raw record.
type vaultFile struct {
	Meta      *Metadata           `json:"_meta"`
	Documents map[string]Document `json:"documents"`
}

// DocumentStore is a durable mapping from document id to an arbitrary
// JSON-serializable record, plus a protected metadata block, backed by
// exactly one file. Records pass through opaque: the store neither encrypts
// nor decrypts. Every mutation rewrites the whole file atomically
// (write-temp-then-rename), so a partially written vault is never
// observable.
//
// The store assumes a single writer; it performs no internal locking.
type DocumentStore struct {
	fs   absfs.FileSystem
	path string
	opts StoreOptions

	meta *Metadata
	docs map[string]Document
}

// OpenStore opens the vault file at path, creating the in-memory state for
// a fresh store when the file is missing or empty. A non-empty file that
// does not parse as the {_meta, documents} shape (including the legacy flat
// document map) is a *StorageError.
//
// A fresh store writes nothing to disk until its first mutation.
func OpenStore(fs absfs.FileSystem, path string, opts StoreOptions) (*DocumentStore, error) {
	if fs == nil {
		return nil, NewValidationError("fs", nil, "filesystem cannot be nil")
	}
	if path == "" {
		return nil, NewValidationError("path", nil, "path cannot be empty")
	}

	s := &DocumentStore{fs: fs, path: path, opts: opts}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the vault file into memory, initializing fresh state when the
// file is missing or empty.
func (s *DocumentStore) load() error {
	f, err := s.fs.OpenFile(s.path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || os.IsNotExist(err) {
			s.initFresh()
			return nil
		}
		return NewStorageError("load", s.path, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return NewStorageError("load", s.path, err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		s.initFresh()
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return NewStorageError("load", s.path, fmt.Errorf("failed to parse vault file: %w", err))
	}
	metaRaw, hasMeta := raw["_meta"]
	docsRaw, hasDocs := raw["documents"]
	if !hasMeta || !hasDocs {
		return NewStorageError("load", s.path,
			errors.New("vault file is not in supported format (missing _meta or documents)"))
	}

	meta := &Metadata{}
	if err := json.Unmarshal(metaRaw, meta); err != nil {
		return NewStorageError("load", s.path, fmt.Errorf("failed to parse vault metadata: %w", err))
	}
	docs := make(map[string]Document)
	if err := json.Unmarshal(docsRaw, &docs); err != nil {
		return NewStorageError("load", s.path, fmt.Errorf("failed to parse vault documents: %w", err))
	}

	s.meta = meta
	s.docs = docs
	return nil
}

func (s *DocumentStore) initFresh() {
	s.meta = newMetadata(s.opts.AppName, s.opts.Salt)
	s.docs = make(map[string]Document)
}

// atomicWrite serializes the full {_meta, documents} structure to a
// temporary file in the target's directory and renames it over the target.
// On failure the original file is untouched.
func (s *DocumentStore) atomicWrite() error {
	content, err := json.MarshalIndent(vaultFile{Meta: s.meta, Documents: s.docs}, "", "  ")
	if err != nil {
		return NewStorageError("write", s.path, err)
	}

	// Temp file must live in the same directory for the rename to be atomic.
	tmpID := uuid.New()
	suffix := hex.EncodeToString(tmpID[:8])
	tmpPath := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp-"+suffix)

	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return NewStorageError("write", s.path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return NewStorageError("write", s.path, err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return NewStorageError("write", s.path, err)
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath)
		return NewStorageError("rename", s.path, err)
	}
	return nil
}

// Insert adds a record, assigning a fresh random id when the record has
// none, and persists the store. A colliding id is a *DuplicateIDError and
// leaves the store unmutated. Returns the record's id.
func (s *DocumentStore) Insert(record Document) (string, error) {
	if record == nil {
		return "", NewValidationError("record", nil, "record must be a non-nil mapping")
	}

	id, err := recordID(record)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.docs[id]; exists {
		return "", &DuplicateIDError{ID: id}
	}

	record[IDField] = id
	s.docs[id] = record
	if err := s.atomicWrite(); err != nil {
		delete(s.docs, id)
		return "", err
	}
	return id, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *DocumentStore) Get(id string) (Document, error) {
	record, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// Update shallow-merges partial into the existing record and persists the
// store. Returns false (and no error) when the id does not exist.
func (s *DocumentStore) Update(id string, partial Document) (bool, error) {
	if partial == nil {
		return false, NewValidationError("partial", nil, "update must be a non-nil mapping")
	}
	existing, ok := s.docs[id]
	if !ok {
		return false, nil
	}

	merged := make(Document, len(existing)+len(partial))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}

	s.docs[id] = merged
	if err := s.atomicWrite(); err != nil {
		s.docs[id] = existing
		return false, err
	}
	return true, nil
}

// Delete removes the record with the given id and persists the store.
// Returns whether the id existed.
func (s *DocumentStore) Delete(id string) (bool, error) {
	existing, ok := s.docs[id]
	if !ok {
		return false, nil
	}

	delete(s.docs, id)
	if err := s.atomicWrite(); err != nil {
		s.docs[id] = existing
		return false, err
	}
	return true, nil
}

// List reloads the store from disk, so externally written changes become
// visible, and returns all records in unspecified order.
func (s *DocumentStore) List() ([]Document, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	records := make([]Document, 0, len(s.docs))
	for _, record := range s.docs {
		records = append(records, record)
	}
	return records, nil
}

// IDs returns the ids of all records currently in memory.
func (s *DocumentStore) IDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of records currently in memory.
func (s *DocumentStore) Count() int {
	return len(s.docs)
}

// Meta returns the protected metadata block. Mutations to unprotected keys
// become durable on the next Flush or mutating operation.
func (s *DocumentStore) Meta() *Metadata {
	return s.meta
}

// Flush persists the current in-memory state without mutating it. Used
// after metadata edits.
func (s *DocumentStore) Flush() error {
	return s.atomicWrite()
}

// Path returns the vault file path backing this store.
func (s *DocumentStore) Path() string {
	return s.path
}

// recordID extracts and validates the _id field of a record. An absent id
// returns "", a present non-string or empty one is a *ValidationError.
func recordID(record Document) (string, error) {
	v, ok := record[IDField]
	if !ok || v == nil {
		return "", nil
	}
	id, ok := v.(string)
	if !ok {
		return "", NewValidationError(IDField, v, "document id must be a string")
	}
	if id == "" {
		return "", NewValidationError(IDField, id, "document id must not be empty")
	}
	return id, nil
}
