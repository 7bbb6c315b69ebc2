// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/codec"
	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// keypairRecord is the on-disk representation of one registered
// keypair. One CBOR file per (keychain ID, key type) cell, so the
// hard-link commit makes the whole pair appear atomically.
type keypairRecord struct {
	KeyType    KeyType   `cbor:"key_type"`
	PublicKey  []byte    `cbor:"public_key"`
	PrivateKey []byte    `cbor:"private_key"`
	Protected  bool      `cbor:"protected,omitempty"`
	CreatedAt  time.Time `cbor:"created_at"`
}

// FilesystemConfig holds the parameters for opening a filesystem
// keystore. Root is required.
type FilesystemConfig struct {
	// Root is the directory holding keypair files. Created with mode
	// 0700 if it does not exist. For authentication media this is the
	// fixed keystore subdirectory (see lib/authmedia.KeystorePath).
	Root string

	// Passphrase, when non-nil, protects private keys at rest: the
	// private key bytes inside each keypair file are wrapped with age
	// scrypt encryption before writing and unwrapped on read. The
	// buffer is borrowed and NOT closed by the store.
	Passphrase *secret.Buffer

	// ScryptWorkFactor overrides the age scrypt work factor (log2 of
	// the iteration count) used when wrapping private keys. Zero
	// means the age default. Lower values weaken the passphrase
	// protection; use only in tests.
	ScryptWorkFactor int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// FilesystemStore is a Store backed by one CBOR file per keypair.
// Write-once is enforced by committing files with link(2), which
// fails when the target exists. Safe for concurrent use, including
// across processes sharing the same root directory.
type FilesystemStore struct {
	root             string
	passphrase       *secret.Buffer
	scryptWorkFactor int
	logger           *slog.Logger
}

// NewFilesystemStore opens a filesystem keystore rooted at cfg.Root,
// creating the directory if needed.
func NewFilesystemStore(cfg FilesystemConfig) (*FilesystemStore, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("keystore: Root is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: creating root %s: %w", cfg.Root, err)
	}

	return &FilesystemStore{
		root:             cfg.Root,
		passphrase:       cfg.Passphrase,
		scryptWorkFactor: cfg.ScryptWorkFactor,
		logger:           logger,
	}, nil
}

// pairPath returns the file path for a (keychain ID, key type) cell.
func (s *FilesystemStore) pairPath(keychainID uuid.UUID, keyType KeyType) string {
	return filepath.Join(s.root, fmt.Sprintf("%s_%s.keypair", keychainID, keyType))
}

// SetKeys implements Store. The record is written to a uniquely named
// temporary file, fsynced, and committed with os.Link, which fails
// when the target exists. That failure is the write-once gate: no
// read-check race, no partial files visible to readers.
func (s *FilesystemStore) SetKeys(ctx context.Context, keychainID uuid.UUID, keyType KeyType, publicKey, privateKey []byte) error {
	finalPath := s.pairPath(keychainID, keyType)

	// Fast path: scrypt wrapping below is deliberately slow, so skip
	// it when the cell is visibly occupied. The link commit remains
	// the authoritative gate.
	if _, err := os.Lstat(finalPath); err == nil {
		return ErrAlreadyExists
	}

	storedPrivate := privateKey
	protected := false
	if s.passphrase != nil {
		wrapped, err := s.wrapPrivateKey(privateKey)
		if err != nil {
			return fmt.Errorf("keystore: protecting private key: %w", err)
		}
		storedPrivate = wrapped
		protected = true
	}

	record := keypairRecord{
		KeyType:    keyType,
		PublicKey:  publicKey,
		PrivateKey: storedPrivate,
		Protected:  protected,
		CreatedAt:  time.Now().UTC(),
	}
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("keystore: encoding keypair record: %w", err)
	}

	temporary, err := os.CreateTemp(s.root, ".keypair-*")
	if err != nil {
		return fmt.Errorf("keystore: creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	if err := temporary.Chmod(0o600); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("keystore: restricting temporary file mode: %w", err)
	}

	// Write, sync, close — in that order, removing the temporary file
	// on any failure.
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("keystore: writing temporary file: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("keystore: syncing temporary file: %w", err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("keystore: closing temporary file: %w", err)
	}

	// link(2) fails with EEXIST when the target exists, so concurrent
	// registrations of the same cell produce exactly one winner.
	if err := os.Link(temporaryPath, finalPath); err != nil {
		os.Remove(temporaryPath)
		if errors.Is(err, fs.ErrExist) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("keystore: committing keypair file: %w", err)
	}
	os.Remove(temporaryPath)

	// Sync the directory so the new entry survives power loss.
	if directory, err := os.Open(s.root); err == nil {
		directory.Sync()
		directory.Close()
	}

	s.logger.Info("keypair registered",
		"keychain_id", keychainID,
		"key_type", keyType,
		"protected", protected,
	)
	return nil
}

// PublicKey implements Store.
func (s *FilesystemStore) PublicKey(ctx context.Context, keychainID uuid.UUID, keyType KeyType) ([]byte, error) {
	record, err := s.readRecord(keychainID, keyType)
	if err != nil {
		return nil, err
	}
	secret.Zero(record.PrivateKey)
	return record.PublicKey, nil
}

// PrivateKey implements Store.
func (s *FilesystemStore) PrivateKey(ctx context.Context, keychainID uuid.UUID, keyType KeyType) (*secret.Buffer, error) {
	record, err := s.readRecord(keychainID, keyType)
	if err != nil {
		return nil, err
	}

	if !record.Protected {
		return secret.NewFromBytes(record.PrivateKey)
	}

	if s.passphrase == nil {
		return nil, fmt.Errorf("keystore: private key %s/%s is passphrase-protected and no passphrase is configured", keychainID, keyType)
	}
	plain, err := s.unwrapPrivateKey(record.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("keystore: unprotecting private key %s/%s: %w", keychainID, keyType, err)
	}
	return secret.NewFromBytes(plain)
}

// readRecord loads and decodes a keypair file, mapping absence to
// ErrNotFound.
func (s *FilesystemStore) readRecord(keychainID uuid.UUID, keyType KeyType) (keypairRecord, error) {
	data, err := os.ReadFile(s.pairPath(keychainID, keyType))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return keypairRecord{}, ErrNotFound
		}
		return keypairRecord{}, fmt.Errorf("keystore: reading keypair file: %w", err)
	}

	var record keypairRecord
	if err := codec.Unmarshal(data, &record); err != nil {
		return keypairRecord{}, fmt.Errorf("keystore: decoding keypair file for %s/%s: %w", keychainID, keyType, err)
	}
	return record, nil
}

// wrapPrivateKey encrypts private key bytes to the configured
// passphrase using age scrypt.
func (s *FilesystemStore) wrapPrivateKey(plain []byte) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(s.passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if s.scryptWorkFactor > 0 {
		recipient.SetWorkFactor(s.scryptWorkFactor)
	}

	var wrapped bytes.Buffer
	writer, err := age.Encrypt(&wrapped, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plain); err != nil {
		return nil, fmt.Errorf("writing private key to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return wrapped.Bytes(), nil
}

// unwrapPrivateKey reverses wrapPrivateKey.
func (s *FilesystemStore) unwrapPrivateKey(wrapped []byte) ([]byte, error) {
	identity, err := age.NewScryptIdentity(s.passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(wrapped), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plain, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted private key: %w", err)
	}
	return plain, nil
}
