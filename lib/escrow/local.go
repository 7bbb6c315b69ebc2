// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/clock"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// Config holds the parameters for a local escrow service. Store is
// required.
type Config struct {
	// Store is the backing keystore. Its write-once contract is what
	// makes cross-process provisioning races safe.
	Store keystore.Store

	// Authorizer gates decryption and signing. Nil permits
	// everything.
	Authorizer Authorizer

	// Clock provides signing timestamps. Nil means the real clock.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// LocalService is an escrow Service holding its keys in a keystore on
// this machine. Safe for concurrent use.
type LocalService struct {
	store      keystore.Store
	authorizer Authorizer
	clock      clock.Clock
	logger     *slog.Logger

	// provisioning serializes keypair generation per (keychain ID,
	// key type) so concurrent first uses of a cell generate once.
	mu           sync.Mutex
	provisioning map[provisionKey]*sync.Mutex
}

type provisionKey struct {
	keychainID uuid.UUID
	keyType    keystore.KeyType
}

// NewLocalService creates a local escrow service over store.
func NewLocalService(cfg Config) (*LocalService, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("escrow: Store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	serviceClock := cfg.Clock
	if serviceClock == nil {
		serviceClock = clock.Real()
	}

	return &LocalService{
		store:        cfg.Store,
		authorizer:   cfg.Authorizer,
		clock:        serviceClock,
		logger:       logger,
		provisioning: make(map[provisionKey]*sync.Mutex),
	}, nil
}

// PublicKey implements Service.
func (s *LocalService) PublicKey(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) ([]byte, error) {
	if err := s.ensureKeypair(ctx, keychainID, keyType); err != nil {
		return nil, err
	}
	publicKey, err := s.store.PublicKey(ctx, keychainID, keyType)
	if err != nil {
		return nil, fmt.Errorf("escrow: loading public key %s/%s: %w", keychainID, keyType, err)
	}
	return publicKey, nil
}

// Sign implements Service.
func (s *LocalService) Sign(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType, algorithm SignatureAlgorithm, message []byte) (Signature, error) {
	if !supportsSignature(keyType, algorithm) {
		return Signature{}, fmt.Errorf("%w: sign %s with %s key", ErrUnsupportedAlgorithm, algorithm, keyType)
	}
	if s.authorizer != nil {
		if err := s.authorizer.AuthorizeSignature(ctx, keychainID, keyType); err != nil {
			return Signature{}, fmt.Errorf("%w: %s/%s: %v", ErrSignatureRefused, keychainID, keyType, err)
		}
	}
	if err := s.ensureKeypair(ctx, keychainID, keyType); err != nil {
		return Signature{}, err
	}

	publicKey, err := s.store.PublicKey(ctx, keychainID, keyType)
	if err != nil {
		return Signature{}, fmt.Errorf("escrow: loading public key %s/%s: %w", keychainID, keyType, err)
	}
	privateKey, err := s.store.PrivateKey(ctx, keychainID, keyType)
	if err != nil {
		return Signature{}, fmt.Errorf("escrow: loading private key %s/%s: %w", keychainID, keyType, err)
	}
	defer privateKey.Close()

	signature, err := signMessage(keyType, algorithm, publicKey, privateKey.Bytes(), message, s.clock.Now())
	if err != nil {
		return Signature{}, err
	}
	return signature, nil
}

// DecryptWithPrivateKey implements Service.
func (s *LocalService) DecryptWithPrivateKey(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType, algorithm WrapAlgorithm, ciphertext []byte) ([]byte, error) {
	if !supportsWrap(keyType, algorithm) {
		return nil, fmt.Errorf("%w: unwrap %s with %s key", ErrUnsupportedAlgorithm, algorithm, keyType)
	}
	if s.authorizer != nil {
		if err := s.authorizer.AuthorizeDecryption(ctx, keychainID, keyType); err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %v", ErrDecryptionRefused, keychainID, keyType, err)
		}
	}
	if err := s.ensureKeypair(ctx, keychainID, keyType); err != nil {
		return nil, err
	}

	privateKey, err := s.store.PrivateKey(ctx, keychainID, keyType)
	if err != nil {
		return nil, fmt.Errorf("escrow: loading private key %s/%s: %w", keychainID, keyType, err)
	}
	defer privateKey.Close()

	switch algorithm {
	case WrapRSAOAEP:
		parsed, err := parseRSAPrivateKey(privateKey.Bytes())
		if err != nil {
			return nil, err
		}
		return unwrapRSAOAEP(parsed, ciphertext)
	case WrapAgeX25519:
		return unwrapAge(privateKey.Bytes(), ciphertext)
	default:
		return nil, fmt.Errorf("%w: unwrap %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

// ensureKeypair provisions the (keychainID, keyType) cell if absent.
// In-process contenders serialize on a per-cell mutex; cross-process
// contenders race on the keystore's write-once registration, and the
// loser adopts the winner's pair by re-reading.
func (s *LocalService) ensureKeypair(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) error {
	// Fast path: already registered.
	_, err := s.store.PublicKey(ctx, keychainID, keyType)
	if err == nil {
		return nil
	}
	if !errors.Is(err, keystore.ErrNotFound) {
		return fmt.Errorf("escrow: probing keypair %s/%s: %w", keychainID, keyType, err)
	}

	cellMutex := s.cellMutex(keychainID, keyType)
	cellMutex.Lock()
	defer cellMutex.Unlock()

	// Re-check under the lock: another goroutine may have provisioned
	// while we waited.
	_, err = s.store.PublicKey(ctx, keychainID, keyType)
	if err == nil {
		return nil
	}
	if !errors.Is(err, keystore.ErrNotFound) {
		return fmt.Errorf("escrow: probing keypair %s/%s: %w", keychainID, keyType, err)
	}

	publicKey, privateKey, err := generateKeypair(keyType)
	if err != nil {
		return err
	}
	defer secret.Zero(privateKey)

	err = s.store.SetKeys(ctx, keychainID, keyType, publicKey, privateKey)
	if errors.Is(err, keystore.ErrAlreadyExists) {
		// Lost a cross-process race. The winner's pair is now
		// authoritative; our candidate is discarded.
		s.logger.Debug("keypair registration lost race",
			"keychain_id", keychainID,
			"key_type", keyType,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("escrow: registering keypair %s/%s: %w", keychainID, keyType, err)
	}

	s.logger.Info("keypair provisioned",
		"keychain_id", keychainID,
		"key_type", keyType,
	)
	return nil
}

// cellMutex returns the provisioning mutex for a cell, creating it on
// first use.
func (s *LocalService) cellMutex(keychainID uuid.UUID, keyType keystore.KeyType) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	cell := provisionKey{keychainID: keychainID, keyType: keyType}
	mutex, ok := s.provisioning[cell]
	if !ok {
		mutex = &sync.Mutex{}
		s.provisioning[cell] = mutex
	}
	return mutex
}
