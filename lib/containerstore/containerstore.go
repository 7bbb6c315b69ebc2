// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package containerstore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/cascade"
)

// File extensions. The container document and its offloaded payload
// live side by side in the keychain directory.
const (
	containerExtension = ".crypt"
	payloadExtension   = ".payload"
)

// ErrNotFound is returned by Get when no container exists under the
// given name.
var ErrNotFound = errors.New("containerstore: container not found")

// Config holds the parameters for opening a container store. Root is
// required.
type Config struct {
	// Root is the directory holding one subdirectory per keychain.
	// Created with mode 0700 if it does not exist.
	Root string

	// OffloadThreshold, when positive, stores payloads larger than
	// this many bytes in a separate file, leaving only a reference in
	// the container document. Zero keeps every payload inline.
	OffloadThreshold int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store persists container documents on the filesystem, one
// subdirectory per keychain. Names sort lexicographically by creation
// time. Writes are atomic (temp file + fsync + rename), so a reader
// never observes a partial container. Safe for concurrent use.
type Store struct {
	root             string
	offloadThreshold int
	logger           *slog.Logger
}

// Open opens a container store rooted at cfg.Root, creating the
// directory if needed.
func Open(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("containerstore: Root is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, fmt.Errorf("containerstore: creating root %s: %w", cfg.Root, err)
	}
	return &Store{
		root:             cfg.Root,
		offloadThreshold: cfg.OffloadThreshold,
		logger:           logger,
	}, nil
}

// Put persists a container and returns its store name. The name
// embeds the creation timestamp and a random suffix:
// "20260301T080000Z-1a2b3c4d". Payloads above the offload threshold
// are written to a sibling payload file referenced from the
// container document.
func (s *Store) Put(container *cascade.Container) (string, error) {
	if container.KeychainID == uuid.Nil {
		return "", fmt.Errorf("containerstore: container has no keychain ID")
	}

	keychainDir := filepath.Join(s.root, container.KeychainID.String())
	if err := os.MkdirAll(keychainDir, 0o700); err != nil {
		return "", fmt.Errorf("containerstore: creating keychain directory: %w", err)
	}

	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("containerstore: generating name suffix: %w", err)
	}
	name := fmt.Sprintf("%s-%s",
		container.CreatedAt.UTC().Format("20060102T150405Z"),
		hex.EncodeToString(suffix[:]),
	)

	toWrite := container
	if s.offloadThreshold > 0 && container.Inline() && len(container.Payload) > s.offloadThreshold {
		offloaded, payload, err := container.Offload(name + payloadExtension)
		if err != nil {
			return "", fmt.Errorf("containerstore: offloading payload: %w", err)
		}
		payloadPath := filepath.Join(keychainDir, name+payloadExtension)
		if err := writeAtomic(payloadPath, payload); err != nil {
			return "", fmt.Errorf("containerstore: writing payload: %w", err)
		}
		toWrite = offloaded
		s.logger.Debug("payload offloaded",
			"keychain_id", container.KeychainID,
			"name", name,
			"payload_bytes", len(payload),
		)
	}

	encoded, err := toWrite.Marshal()
	if err != nil {
		return "", err
	}
	containerPath := filepath.Join(keychainDir, name+containerExtension)
	if err := writeAtomic(containerPath, encoded); err != nil {
		return "", fmt.Errorf("containerstore: writing container: %w", err)
	}

	s.logger.Info("container stored",
		"keychain_id", container.KeychainID,
		"name", name,
		"bytes", len(encoded),
	)
	return name, nil
}

// Get loads a container by store name. Offloaded payloads are
// fetched and reattached, so the returned container is always ready
// to decrypt. A payload that fails its digest check surfaces as
// cascade.ErrCiphertextIntegrityFailed.
func (s *Store) Get(keychainID uuid.UUID, name string) (*cascade.Container, error) {
	keychainDir := filepath.Join(s.root, keychainID.String())
	encoded, err := os.ReadFile(filepath.Join(keychainDir, name+containerExtension))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, keychainID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("containerstore: reading container %s: %w", name, err)
	}

	container, err := cascade.UnmarshalContainer(encoded)
	if err != nil {
		return nil, err
	}
	if container.Inline() {
		return container, nil
	}

	payload, err := os.ReadFile(filepath.Join(keychainDir, filepath.Base(container.PayloadRef)))
	if err != nil {
		return nil, fmt.Errorf("containerstore: reading offloaded payload %q: %w", container.PayloadRef, err)
	}
	rehydrated, err := container.WithPayload(payload)
	if err != nil {
		return nil, err
	}
	return rehydrated, nil
}

// List returns the store names of every container under a keychain,
// sorted lexicographically (oldest first, given the timestamp
// prefix). A keychain with no directory yet lists empty.
func (s *Store) List(keychainID uuid.UUID) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, keychainID.String()))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("containerstore: listing keychain %s: %w", keychainID, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), containerExtension) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), containerExtension))
	}
	sort.Strings(names)
	return names, nil
}

// writeAtomic writes data to path via a uniquely named temporary file
// in the same directory, fsynced before rename, so readers never see
// partial content.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tempPath := temp.Name()
	defer os.Remove(tempPath)

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return fmt.Errorf("writing %s: %w", tempPath, err)
	}
	if err := temp.Sync(); err != nil {
		temp.Close()
		return fmt.Errorf("syncing %s: %w", tempPath, err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("committing %s: %w", path, err)
	}
	return nil
}
