package vaultdb

import (
	"bytes"
	"errors"
	"os"
	"sort"
	"testing"
)

func TestStoreFreshOpenWritesNothing(t *testing.T) {
	fs := setupMemFS(t)

	store, err := OpenStore(fs, "/fresh.vault", StoreOptions{AppName: "testapp"})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}

	if _, err := fs.Stat("/fresh.vault"); !errors.Is(err, os.ErrNotExist) && !os.IsNotExist(err) {
		t.Errorf("fresh open created a file before the first mutation: %v", err)
	}
	if store.Meta().AppName() != "testapp" {
		t.Error("fresh metadata is missing app_name")
	}
}

func TestStoreInsertGetUpdateDelete(t *testing.T) {
	fs := setupMemFS(t)
	store, err := OpenStore(fs, "/crud.vault", StoreOptions{})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}

	id, err := store.Insert(Document{"name": "Alice"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == "" {
		t.Fatal("Insert returned an empty id")
	}

	record, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record["name"] != "Alice" || record[IDField] != id {
		t.Errorf("Get returned %v", record)
	}

	ok, err := store.Update(id, Document{"role": "admin"})
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v; want true, nil", ok, err)
	}
	record, _ = store.Get(id)
	if record["role"] != "admin" || record["name"] != "Alice" {
		t.Errorf("merge lost fields: %v", record)
	}

	ok, err = store.Update("no-such-id", Document{"x": 1})
	if err != nil || ok {
		t.Errorf("Update(missing) = %v, %v; want false, nil", ok, err)
	}

	ok, err = store.Delete(id)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v; want true, nil", ok, err)
	}
	if _, err := store.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	ok, _ = store.Delete(id)
	if ok {
		t.Error("Delete(missing) returned true")
	}
}

func TestStoreInsertValidation(t *testing.T) {
	fs := setupMemFS(t)
	store, _ := OpenStore(fs, "/valid.vault", StoreOptions{})

	if _, err := store.Insert(nil); !IsValidationError(err) {
		t.Errorf("Insert(nil) error = %v, want validation error", err)
	}
	if _, err := store.Insert(Document{IDField: 42}); !IsValidationError(err) {
		t.Errorf("Insert(numeric id) error = %v, want validation error", err)
	}
	if _, err := store.Update("id", nil); !IsValidationError(err) {
		t.Errorf("Update(nil) error = %v, want validation error", err)
	}
}

func TestStoreDuplicateInsertLeavesStateUnchanged(t *testing.T) {
	fs := setupMemFS(t)
	store, _ := OpenStore(fs, "/dup.vault", StoreOptions{})

	if _, err := store.Insert(Document{IDField: "doc-1", "v": "original"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	before := readFileBytes(t, fs, "/dup.vault")

	_, err := store.Insert(Document{IDField: "doc-1", "v": "override"})
	if !IsDuplicateIDError(err) {
		t.Fatalf("duplicate Insert error = %v, want duplicate id error", err)
	}

	after := readFileBytes(t, fs, "/dup.vault")
	if !bytes.Equal(before, after) {
		t.Error("duplicate insert mutated the vault file")
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0]["v"] != "original" {
		t.Errorf("List = %v, want the single original record", records)
	}
}

func TestStoreRejectsUnsupportedFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"legacy flat map", `{"doc-1": {"_id": "doc-1", "data": "x"}}`},
		{"missing documents", `{"_meta": {"vault_version": "1.0.0"}}`},
		{"missing meta", `{"documents": {}}`},
		{"not json", "this is not json"},
		{"json array", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := setupMemFS(t)
			writeFileBytes(t, fs, "/bad.vault", []byte(tt.content))

			if _, err := OpenStore(fs, "/bad.vault", StoreOptions{}); !IsStorageError(err) {
				t.Errorf("OpenStore error = %v, want storage error", err)
			}
		})
	}
}

func TestStoreEmptyFileIsFresh(t *testing.T) {
	fs := setupMemFS(t)
	writeFileBytes(t, fs, "/empty.vault", []byte("  \n"))

	store, err := OpenStore(fs, "/empty.vault", StoreOptions{})
	if err != nil {
		t.Fatalf("OpenStore(empty file) failed: %v", err)
	}
	if store.Count() != 0 {
		t.Error("empty file produced documents")
	}
	if store.Meta().VaultVersion() != Version {
		t.Error("empty file did not initialize fresh metadata")
	}
}

func TestStoreAtomicWriteFailurePreservesFile(t *testing.T) {
	fs := setupMemFS(t)

	store, _ := OpenStore(fs, "/atomic.vault", StoreOptions{})
	if _, err := store.Insert(Document{IDField: "keep", "v": 1}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	before := readFileBytes(t, fs, "/atomic.vault")

	broken, err := OpenStore(&failRenameFS{FileSystem: fs}, "/atomic.vault", StoreOptions{})
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if _, err := broken.Insert(Document{IDField: "lost", "v": 2}); !IsStorageError(err) {
		t.Fatalf("Insert with broken rename error = %v, want storage error", err)
	}

	after := readFileBytes(t, fs, "/atomic.vault")
	if !bytes.Equal(before, after) {
		t.Error("failed mutation changed the durable file content")
	}
	if _, err := broken.Get("lost"); !errors.Is(err, ErrNotFound) {
		t.Error("failed insert left the record in memory")
	}
}

func TestStoreListReflectsExternalChanges(t *testing.T) {
	fs := setupMemFS(t)

	writer, _ := OpenStore(fs, "/shared.vault", StoreOptions{})
	reader, _ := OpenStore(fs, "/shared.vault", StoreOptions{})

	if _, err := writer.Insert(Document{IDField: "w1"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	records, err := reader.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0][IDField] != "w1" {
		t.Errorf("List after external write = %v, want the external record", records)
	}
}

func TestStoreIDsAndCount(t *testing.T) {
	fs := setupMemFS(t)
	store, _ := OpenStore(fs, "/ids.vault", StoreOptions{})

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Insert(Document{IDField: id}); err != nil {
			t.Fatalf("Insert(%s) failed: %v", id, err)
		}
	}

	ids := store.IDs()
	sort.Strings(ids)
	want := []string{"a", "b", "c"}
	if len(ids) != 3 || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Errorf("IDs = %v, want %v", ids, want)
	}
	if store.Count() != 3 {
		t.Errorf("Count = %d, want 3", store.Count())
	}
}

func TestStoreMetadataPersists(t *testing.T) {
	fs := setupMemFS(t)
	salt, _ := GenerateSalt()

	store, _ := OpenStore(fs, "/meta.vault", StoreOptions{AppName: "journal", Salt: salt})
	if err := store.Meta().Set("owner", "alice"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	reopened, err := OpenStore(fs, "/meta.vault", StoreOptions{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.Meta().AppName() != "journal" {
		t.Error("app_name did not persist")
	}
	if v, _ := reopened.Meta().Get("owner"); v != "alice" {
		t.Error("user metadata did not persist")
	}
	got, err := reopened.Meta().Salt()
	if err != nil {
		t.Fatalf("Salt failed: %v", err)
	}
	if !bytes.Equal(got, salt) {
		t.Error("salt did not persist")
	}
}
