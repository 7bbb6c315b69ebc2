// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package containerstore_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/cascade"
	"github.com/strongroom-foundation/strongroom/lib/containerstore"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

func newTestEngine(t *testing.T) *cascade.Engine {
	t.Helper()
	service, err := escrow.NewLocalService(escrow.Config{Store: keystore.NewMemoryStore()})
	if err != nil {
		t.Fatalf("NewLocalService: %v", err)
	}
	engine, err := cascade.NewEngine(cascade.EngineConfig{
		Resolver: cascade.NewStaticResolver(service, nil),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func encryptTestContainer(t *testing.T, engine *cascade.Engine, keychainID uuid.UUID, plaintext []byte) *cascade.Container {
	t.Helper()
	policy := cascade.Policy{Strata: []cascade.Stratum{{
		DataAlgorithm: cascade.SymmetricAES256GCM,
		KeyLayers: []cascade.KeyEncryptionLayer{
			{Algorithm: escrow.WrapAgeX25519, Escrow: cascade.LocalEscrow()},
		},
	}}}
	container, err := engine.Encrypt(context.Background(), keychainID, policy, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return container
}

func TestPutGetRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	keychainID := uuid.New()
	plaintext := []byte("stored and retrieved")

	store, err := containerstore.Open(containerstore.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	container := encryptTestContainer(t, engine, keychainID, plaintext)
	name, err := store.Put(container)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	loaded, err := store.Get(keychainID, name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	recovered, err := engine.Decrypt(context.Background(), loaded)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Error("stored container did not round trip")
	}
}

func TestGetUnknownName(t *testing.T) {
	store, err := containerstore.Open(containerstore.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err = store.Get(uuid.New(), "20260101T000000Z-deadbeef")
	if !errors.Is(err, containerstore.ErrNotFound) {
		t.Errorf("Get of unknown name = %v, want ErrNotFound", err)
	}
}

func TestPayloadOffloading(t *testing.T) {
	engine := newTestEngine(t)
	keychainID := uuid.New()
	plaintext := bytes.Repeat([]byte("offload-me-"), 1024)

	root := t.TempDir()
	store, err := containerstore.Open(containerstore.Config{
		Root:             root,
		OffloadThreshold: 1024,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	container := encryptTestContainer(t, engine, keychainID, plaintext)
	name, err := store.Put(container)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The payload landed in its own file and the container document
	// shrank to a reference.
	keychainDir := filepath.Join(root, keychainID.String())
	if _, err := os.Stat(filepath.Join(keychainDir, name+".payload")); err != nil {
		t.Errorf("offloaded payload file missing: %v", err)
	}
	document, err := os.ReadFile(filepath.Join(keychainDir, name+".crypt"))
	if err != nil {
		t.Fatalf("reading container document: %v", err)
	}
	if len(document) >= len(container.Payload) {
		t.Errorf("container document is %d bytes, not smaller than the %d-byte payload",
			len(document), len(container.Payload))
	}

	// Get reattaches transparently.
	loaded, err := store.Get(keychainID, name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !loaded.Inline() {
		t.Fatal("Get returned a container without its payload")
	}
	recovered, err := engine.Decrypt(context.Background(), loaded)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Error("offloaded container did not round trip")
	}
}

func TestZeroThresholdKeepsPayloadsInline(t *testing.T) {
	engine := newTestEngine(t)
	keychainID := uuid.New()
	plaintext := bytes.Repeat([]byte("stay-inline-"), 1024)

	root := t.TempDir()
	store, err := containerstore.Open(containerstore.Config{Root: root})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	container := encryptTestContainer(t, engine, keychainID, plaintext)
	name, err := store.Put(container)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	keychainDir := filepath.Join(root, keychainID.String())
	if _, err := os.Stat(filepath.Join(keychainDir, name+".payload")); err == nil {
		t.Error("payload file exists; zero threshold must not offload")
	}
	loaded, err := store.Get(keychainID, name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !loaded.Inline() {
		t.Error("stored container is not inline")
	}
}

func TestOffloadedPayloadTamperDetected(t *testing.T) {
	engine := newTestEngine(t)
	keychainID := uuid.New()

	root := t.TempDir()
	store, err := containerstore.Open(containerstore.Config{Root: root, OffloadThreshold: 16})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	container := encryptTestContainer(t, engine, keychainID, bytes.Repeat([]byte("x"), 4096))
	name, err := store.Put(container)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	payloadPath := filepath.Join(root, keychainID.String(), name+".payload")
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		t.Fatalf("reading payload file: %v", err)
	}
	payload[len(payload)/2] ^= 0x01
	if err := os.WriteFile(payloadPath, payload, 0o600); err != nil {
		t.Fatalf("writing tampered payload: %v", err)
	}

	if _, err := store.Get(keychainID, name); !errors.Is(err, cascade.ErrCiphertextIntegrityFailed) {
		t.Errorf("Get with tampered payload = %v, want ErrCiphertextIntegrityFailed", err)
	}
}

func TestListSortsAndScopesByKeychain(t *testing.T) {
	engine := newTestEngine(t)
	store, err := containerstore.Open(containerstore.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := uuid.New()
	second := uuid.New()
	var firstNames []string
	for n := 0; n < 3; n++ {
		name, err := store.Put(encryptTestContainer(t, engine, first, []byte("a")))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		firstNames = append(firstNames, name)
	}
	if _, err := store.Put(encryptTestContainer(t, engine, second, []byte("b"))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	listed, err := store.List(first)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("List returned %d names, want 3", len(listed))
	}
	if !sort.StringsAreSorted(listed) {
		t.Error("List output is not sorted")
	}
	sort.Strings(firstNames)
	for i, name := range listed {
		if name != firstNames[i] {
			t.Errorf("List[%d] = %q, want %q", i, name, firstNames[i])
		}
	}

	empty, err := store.List(uuid.New())
	if err != nil {
		t.Fatalf("List of unknown keychain: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown keychain listed %d names", len(empty))
	}
}
