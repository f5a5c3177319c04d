// Package vaultdb implements a local, passphrase-protected, encrypted
// document store. A single JSON file holds a collection of documents whose
// payloads are individually encrypted with authenticated encryption, plus an
// optional encrypted, append-only audit log with tamper detection.
//
// # Overview
//
// vaultdb persists documents through the absfs.FileSystem abstraction,
// allowing it to run against any AbsFs-compatible filesystem (the real OS,
// an in-memory filesystem for tests, or anything else).
//
// Three layers compose the engine:
//
//   - DocumentStore: durable, atomic key-value persistence of raw records
//     plus protected metadata, backed by exactly one JSON file.
//   - Document cipher: authenticated encryption of a single document under
//     a symmetric key derived from a passphrase and a per-vault salt.
//   - Vault: the user-facing API that encrypts on write, decrypts on read,
//     and exposes CRUD plus equality filtering over plaintext documents.
//
// # Supported Cipher Suites
//
// - AES-256-GCM: Advanced Encryption Standard with 256-bit keys and
//   Galois/Counter Mode for authenticated encryption
// - ChaCha20-Poly1305: Modern stream cipher with Poly1305 message
//   authentication
//
// Both cipher suites provide:
//   - Authenticated Encryption with Associated Data (AEAD)
//   - Protection against tampering and corruption
//   - 128-bit authentication tags
//
// # Basic Usage
//
//	base, _ := memfs.NewFS()
//
//	vault, err := vaultdb.Open(base, "/notes.vault", "my-secure-passphrase", nil)
//	if err != nil {
//	    panic(err)
//	}
//
//	id, _ := vault.Insert(vaultdb.Document{"name": "Alice"})
//	doc, _ := vault.Get(id)
//	vault.Update(id, vaultdb.Document{"role": "admin"})
//	matches, _ := vault.Find(vaultdb.Document{"name": "Alice"})
//	vault.Delete(id)
//
// # Key Derivation
//
// The package supports two key derivation functions:
//
// PBKDF2 (Password-Based Key Derivation Function 2):
//   - Widely supported and FIPS-approved
//   - CPU-intensive only (vulnerable to GPU attacks)
//
// Argon2id (Recommended, the vault default):
//   - Memory-hard function (resistant to GPU/ASIC attacks)
//   - Winner of Password Hashing Competition
//   - Configurable memory, time, and parallelism
//
// # Vault File Format
//
// A vault is a single UTF-8 JSON file:
//
//	{
//	  "_meta": {
//	    "vault_version": "1.0.0",
//	    "created_at": "2025-01-02T15:04:05Z",
//	    "salt": "<base64url>",
//	    "cipher": "aes-256-gcm"
//	  },
//	  "documents": {
//	    "<id>": {"_id": "<id>", "data": "<base64url nonce||ciphertext>"}
//	  }
//	}
//
// Document ids stay in plaintext so records can be located without
// decryption; everything else about a document is opaque ciphertext.
// Every mutation rewrites the whole structure to a temporary file and
// renames it over the target, so a partially written vault is never
// observable on disk.
//
// # Audit Log
//
// The audit log is a separate newline-delimited file. Each line is an
// independently authenticated ciphertext token that decrypts to
// {op, _id, at, meta}. Writes are best-effort: an audit failure is reported
// through an optional hook (or logged as a warning) and never aborts the
// vault operation it accompanies.
//
// # Security Considerations
//
// Protected Against:
//   - Unauthorized access to documents at rest
//   - Data tampering and corruption (authenticated encryption)
//   - Ciphertext transplanted between vaults (per-vault salts)
//   - Offline brute-force attacks (memory-hard key derivation)
//
// Not Protected Against:
//   - Memory dumps while documents are decrypted in memory
//   - Side-channel attacks (timing, cache)
//   - Compromised systems with keyloggers or malware
//   - Concurrent writers from multiple processes (single-writer model)
//   - Metadata leakage (document count, ids, file size)
package vaultdb
