package vaultdb

import (
	"encoding/json"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
)

// testKey is a fixed 32-byte key for cipher-level tests that do not need
// passphrase derivation.
var testKey = []byte("0123456789abcdef0123456789abcdef")

// lightKDF keeps Argon2id cheap in tests. The same parameters must be used
// for every open of the same test vault.
func lightKDF() *Argon2idParams {
	return &Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1}
}

func setupMemFS(t *testing.T) absfs.FileSystem {
	t.Helper()
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("failed to create memfs: %v", err)
	}
	return fs
}

func openTestVault(t *testing.T, fs absfs.FileSystem, path, passphrase string) *Vault {
	t.Helper()
	v, err := Open(fs, path, passphrase, &VaultConfig{KDF: lightKDF()})
	if err != nil {
		t.Fatalf("failed to open vault %s: %v", path, err)
	}
	return v
}

func readFileBytes(t *testing.T, fs absfs.FileSystem, path string) []byte {
	t.Helper()
	f, err := fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return content
}

func writeFileBytes(t *testing.T, fs absfs.FileSystem, path string, content []byte) {
	t.Helper()
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	if _, err := f.Write(content); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}
}

func readVaultFile(t *testing.T, fs absfs.FileSystem, path string) map[string]json.RawMessage {
	t.Helper()
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(readFileBytes(t, fs, path), &raw); err != nil {
		t.Fatalf("vault file %s is not valid JSON: %v", path, err)
	}
	return raw
}

// failRenameFS makes every rename fail, so atomic rewrites deterministically
// abort after the temp file is written.
type failRenameFS struct {
	absfs.FileSystem
}

func (f *failRenameFS) Rename(oldpath, newpath string) error {
	return errors.New("injected rename failure")
}

// failOpenFS fails OpenFile for one specific path, used to break audit log
// appends without disturbing the vault file.
type failOpenFS struct {
	absfs.FileSystem
	failPath string
}

func (f *failOpenFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	if name == f.failPath {
		return nil, errors.New("injected open failure")
	}
	return f.FileSystem.OpenFile(name, flag, perm)
}

// osTestFS is a minimal os-backed filesystem rooted at a temp directory,
// for tests that need real file permissions and renames.
type osTestFS struct {
	root string
	cwd  string
}

func setupOSFS(t *testing.T) *osTestFS {
	t.Helper()
	return &osTestFS{root: t.TempDir()}
}

func (fs *osTestFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	path := filepath.Join(fs.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, flag, perm)
}

func (fs *osTestFS) Open(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *osTestFS) Create(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (fs *osTestFS) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(filepath.Join(fs.root, name), perm)
}

func (fs *osTestFS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(filepath.Join(fs.root, name), perm)
}

func (fs *osTestFS) Remove(name string) error {
	return os.Remove(filepath.Join(fs.root, name))
}

func (fs *osTestFS) RemoveAll(path string) error {
	return os.RemoveAll(filepath.Join(fs.root, path))
}

func (fs *osTestFS) Rename(oldpath, newpath string) error {
	return os.Rename(filepath.Join(fs.root, oldpath), filepath.Join(fs.root, newpath))
}

func (fs *osTestFS) ReadDir(name string) ([]iofs.DirEntry, error) {
	return os.ReadDir(filepath.Join(fs.root, name))
}

func (fs *osTestFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(fs.root, name))
}

func (fs *osTestFS) Sub(dir string) (iofs.FS, error) {
	return os.DirFS(filepath.Join(fs.root, dir)), nil
}

func (fs *osTestFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(fs.root, name))
}

func (fs *osTestFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(filepath.Join(fs.root, name), mode)
}

func (fs *osTestFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(filepath.Join(fs.root, name), atime, mtime)
}

func (fs *osTestFS) Chown(name string, uid, gid int) error {
	return os.Chown(filepath.Join(fs.root, name), uid, gid)
}

func (fs *osTestFS) Truncate(name string, size int64) error {
	return os.Truncate(filepath.Join(fs.root, name), size)
}

func (fs *osTestFS) Separator() uint8 {
	return os.PathSeparator
}

func (fs *osTestFS) ListSeparator() uint8 {
	return os.PathListSeparator
}

func (fs *osTestFS) Chdir(dir string) error {
	fs.cwd = dir
	return nil
}

func (fs *osTestFS) Getwd() (string, error) {
	if fs.cwd == "" {
		return "/", nil
	}
	return fs.cwd, nil
}

func (fs *osTestFS) TempDir() string {
	return os.TempDir()
}
