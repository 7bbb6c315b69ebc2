// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// MemoryStore is a map-backed Store for tests and ephemeral escrows.
// Key material lives on the ordinary Go heap, so this backend offers
// no at-rest or swap protection. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	pairs map[cellKey]cellPair
}

type cellKey struct {
	keychainID uuid.UUID
	keyType    KeyType
}

type cellPair struct {
	publicKey  []byte
	privateKey []byte
}

// NewMemoryStore returns an empty in-memory keystore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pairs: make(map[cellKey]cellPair)}
}

// SetKeys implements Store. The mutex makes check-then-insert atomic.
func (s *MemoryStore) SetKeys(ctx context.Context, keychainID uuid.UUID, keyType KeyType, publicKey, privateKey []byte) error {
	cell := cellKey{keychainID: keychainID, keyType: keyType}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, occupied := s.pairs[cell]; occupied {
		return ErrAlreadyExists
	}

	s.pairs[cell] = cellPair{
		publicKey:  append([]byte(nil), publicKey...),
		privateKey: append([]byte(nil), privateKey...),
	}
	return nil
}

// PublicKey implements Store.
func (s *MemoryStore) PublicKey(ctx context.Context, keychainID uuid.UUID, keyType KeyType) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, occupied := s.pairs[cellKey{keychainID: keychainID, keyType: keyType}]
	if !occupied {
		return nil, ErrNotFound
	}
	return append([]byte(nil), pair.publicKey...), nil
}

// PrivateKey implements Store.
func (s *MemoryStore) PrivateKey(ctx context.Context, keychainID uuid.UUID, keyType KeyType) (*secret.Buffer, error) {
	s.mu.Lock()
	pair, occupied := s.pairs[cellKey{keychainID: keychainID, keyType: keyType}]
	s.mu.Unlock()

	if !occupied {
		return nil, ErrNotFound
	}

	// NewFromBytes zeros its source, so hand it a throwaway copy and
	// keep the stored original intact for subsequent reads.
	return secret.NewFromBytes(append([]byte(nil), pair.privateKey...))
}
