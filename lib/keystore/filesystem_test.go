// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package keystore_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/keystore"
	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// testWorkFactor keeps scrypt cheap in tests. Production stores use
// the age default.
const testWorkFactor = 10

func passphraseBuffer(t *testing.T, passphrase string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(passphrase))
	if err != nil {
		t.Fatalf("creating passphrase buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestFilesystemPassphraseProtection(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "keys")
	keychainID := uuid.New()

	protected, err := keystore.NewFilesystemStore(keystore.FilesystemConfig{
		Root:             root,
		Passphrase:       passphraseBuffer(t, "correct horse"),
		ScryptWorkFactor: testWorkFactor,
	})
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	if err := protected.SetKeys(ctx, keychainID, keystore.KeyTypeRSA, []byte("pub"), []byte("priv")); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}

	// The configured store unwraps the private key transparently.
	privateKey, err := protected.PrivateKey(ctx, keychainID, keystore.KeyTypeRSA)
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	defer privateKey.Close()
	if !privateKey.Equal([]byte("priv")) {
		t.Error("unwrapped private key does not match original")
	}
}

func TestFilesystemProtectedKeyRequiresPassphrase(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "keys")
	keychainID := uuid.New()

	protected, err := keystore.NewFilesystemStore(keystore.FilesystemConfig{
		Root:             root,
		Passphrase:       passphraseBuffer(t, "correct horse"),
		ScryptWorkFactor: testWorkFactor,
	})
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	if err := protected.SetKeys(ctx, keychainID, keystore.KeyTypeRSA, []byte("pub"), []byte("priv")); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}

	// A store over the same root with no passphrase can read the
	// public key but must refuse the private key.
	bare, err := keystore.NewFilesystemStore(keystore.FilesystemConfig{Root: root})
	if err != nil {
		t.Fatalf("NewFilesystemStore (bare): %v", err)
	}
	if _, err := bare.PublicKey(ctx, keychainID, keystore.KeyTypeRSA); err != nil {
		t.Errorf("PublicKey without passphrase: %v", err)
	}
	_, err = bare.PrivateKey(ctx, keychainID, keystore.KeyTypeRSA)
	if err == nil {
		t.Fatal("PrivateKey without passphrase should fail")
	}
	if !strings.Contains(err.Error(), "passphrase-protected") {
		t.Errorf("error %q does not name the passphrase protection", err)
	}

	// A wrong passphrase fails at unwrap, not with garbage output.
	wrong, err := keystore.NewFilesystemStore(keystore.FilesystemConfig{
		Root:             root,
		Passphrase:       passphraseBuffer(t, "incorrect donkey"),
		ScryptWorkFactor: testWorkFactor,
	})
	if err != nil {
		t.Fatalf("NewFilesystemStore (wrong): %v", err)
	}
	if _, err := wrong.PrivateKey(ctx, keychainID, keystore.KeyTypeRSA); err == nil {
		t.Error("PrivateKey with wrong passphrase should fail")
	}
}

func TestFilesystemStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "keys")
	keychainID := uuid.New()

	first, err := keystore.NewFilesystemStore(keystore.FilesystemConfig{Root: root})
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	if err := first.SetKeys(ctx, keychainID, keystore.KeyTypeEd25519, []byte("pub"), []byte("priv")); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}

	second, err := keystore.NewFilesystemStore(keystore.FilesystemConfig{Root: root})
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}

	// The reopened store sees the registration and still enforces
	// write-once.
	if _, err := second.PublicKey(ctx, keychainID, keystore.KeyTypeEd25519); err != nil {
		t.Errorf("PublicKey after reopen: %v", err)
	}
	if err := second.SetKeys(ctx, keychainID, keystore.KeyTypeEd25519, []byte("pub2"), []byte("priv2")); err == nil {
		t.Error("SetKeys after reopen should be rejected")
	}
}

func TestFilesystemLeavesNoTemporaryFiles(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "keys")

	store, err := keystore.NewFilesystemStore(keystore.FilesystemConfig{Root: root})
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}

	keychainID := uuid.New()
	if err := store.SetKeys(ctx, keychainID, keystore.KeyTypeRSA, []byte("pub"), []byte("priv")); err != nil {
		t.Fatalf("SetKeys: %v", err)
	}
	// A rejected registration must also clean up after itself.
	if err := store.SetKeys(ctx, keychainID, keystore.KeyTypeRSA, []byte("pub"), []byte("priv")); err == nil {
		t.Fatal("second SetKeys should fail")
	}

	entries, err := filepath.Glob(filepath.Join(root, ".keypair-*"))
	if err != nil {
		t.Fatalf("globbing temporary files: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}
