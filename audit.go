package vaultdb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/absfs/absfs"
)

// AuditEntry is one decrypted audit log record.
type AuditEntry struct {
	Op   string         `json:"op"`   // "insert", "get", "update", "delete", ...
	ID   string         `json:"_id"`  // document id the operation touched
	At   string         `json:"at"`   // RFC 3339 timestamp with timezone
	Meta map[string]any `json:"meta"` // caller-supplied context, default empty
}

// AuditConfig configures an AuditLog. The zero value (or nil) selects the
// default cipher suite, no error hook, and slog.Default() for warnings.
type AuditConfig struct {
	// Cipher selects the AEAD suite for log entries. Default: AES-256-GCM.
	Cipher CipherSuite

	// OnError receives write failures. When nil, failures are logged as
	// warnings instead. Write failures never propagate to the caller.
	OnError func(error)

	// Logger receives the warning when no OnError hook is set.
	Logger *slog.Logger
}

// AuditLog is an append-only, encrypted, line-oriented operation log,
// independent of the main vault file. Each line is one authenticated
// ciphertext token; a line that fails authentication marks the log as
// tampered.
//
// Writes are best-effort: logging must never abort the primary vault
// operation it observes.
type AuditLog struct {
	fs      absfs.FileSystem
	path    string
	engine  CipherEngine
	onError func(error)
	logger  *slog.Logger
}

// NewAuditLog creates an audit log at path keyed by a 32-byte key. The file
// itself is created on first write, with owner-only permissions.
func NewAuditLog(fs absfs.FileSystem, path string, key []byte, config *AuditConfig) (*AuditLog, error) {
	if fs == nil {
		return nil, NewValidationError("fs", nil, "filesystem cannot be nil")
	}
	if path == "" {
		return nil, NewValidationError("path", nil, "path cannot be empty")
	}
	if config == nil {
		config = &AuditConfig{}
	}

	engine, err := NewCipherEngine(config.Cipher, key)
	if err != nil {
		return nil, NewCryptoError("audit", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuditLog{
		fs:      fs,
		path:    path,
		engine:  engine,
		onError: config.OnError,
		logger:  logger,
	}, nil
}

// Log appends one encrypted entry {op, _id, at, meta} to the log file,
// creating it with 0600 permissions on first write. A write failure is
// reported through the OnError hook when set, otherwise logged as a
// warning; it is never returned.
func (l *AuditLog) Log(op, id string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	entry := AuditEntry{
		Op:   op,
		ID:   id,
		At:   time.Now().UTC().Format(time.RFC3339Nano),
		Meta: meta,
	}
	if err := l.append(entry); err != nil {
		l.report(op, id, err)
	}
}

func (l *AuditLog) append(entry AuditEntry) error {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	nonce, err := GenerateNonce(l.engine)
	if err != nil {
		return err
	}
	ciphertext, err := l.engine.Encrypt(nonce, plaintext)
	if err != nil {
		return err
	}
	token := blobEncoding.EncodeToString(append(nonce, ciphertext...))

	f, err := l.fs.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte(token + "\n")); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (l *AuditLog) report(op, id string, err error) {
	if l.onError != nil {
		l.onError(fmt.Errorf("audit log failed to record %s %s: %w", op, id, err))
		return
	}
	l.logger.Warn("audit log failed to record operation",
		"op", op, "id", id, "path", l.path, "error", err)
}

// Entries reads and decrypts every log line in order. A missing log file
// yields an empty list. Any line that fails to decrypt (wrong key or
// tampering) is a *CryptoError for the whole call; there is no partial
// mode.
func (l *AuditLog) Entries() ([]AuditEntry, error) {
	f, err := l.fs.OpenFile(l.path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || os.IsNotExist(err) {
			return []AuditEntry{}, nil
		}
		return nil, NewStorageError("read", l.path, err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		entry, err := l.decryptLine(line)
		if err != nil {
			return nil, NewCryptoError("audit", fmt.Errorf("log line %d: %w", lineNo, err))
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, NewStorageError("read", l.path, err)
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}

func (l *AuditLog) decryptLine(line string) (AuditEntry, error) {
	var entry AuditEntry

	raw, err := blobEncoding.DecodeString(line)
	if err != nil {
		return entry, fmt.Errorf("%w: not a valid token", ErrInvalidCiphertext)
	}
	if len(raw) < l.engine.NonceSize()+l.engine.Overhead() {
		return entry, fmt.Errorf("%w: token too short", ErrInvalidCiphertext)
	}

	plaintext, err := l.engine.Decrypt(raw[:l.engine.NonceSize()], raw[l.engine.NonceSize():])
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(plaintext, &entry); err != nil {
		return entry, fmt.Errorf("failed to deserialize entry: %w", err)
	}
	return entry, nil
}

// Tail returns the last n decrypted entries in original order, or all of
// them when fewer than n exist. A negative n is a validation error.
func (l *AuditLog) Tail(n int) ([]AuditEntry, error) {
	if n < 0 {
		return nil, NewValidationError("n", n, "count must not be negative")
	}
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	if n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// ExportJSON writes the full decrypted entry list as a JSON array to the
// given path.
func (l *AuditLog) ExportJSON(path string) error {
	if path == "" {
		return NewValidationError("path", nil, "export requires an explicit destination path")
	}
	entries, err := l.Entries()
	if err != nil {
		return err
	}
	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return NewStorageError("export", path, err)
	}

	f, err := l.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return NewStorageError("export", path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return NewStorageError("export", path, err)
	}
	return f.Close()
}

// Path returns the log file path.
func (l *AuditLog) Path() string {
	return l.path
}
