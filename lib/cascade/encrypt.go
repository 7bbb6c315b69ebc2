// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/clock"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// EngineConfig holds the parameters for a cascade engine. Resolver is
// required.
type EngineConfig struct {
	// Resolver maps escrow references to services for both the
	// encryption and decryption paths.
	Resolver Resolver

	// Clock provides container timestamps. Nil means the real clock.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger is
	// used. Plaintext and key material are never logged.
	Logger *slog.Logger
}

// Engine runs the cascade in both directions: Encrypt applies a
// policy's strata in order, Decrypt undoes them in reverse. The
// engine holds no mutable state between calls and is safe for
// concurrent use.
type Engine struct {
	resolver Resolver
	clock    clock.Clock
	logger   *slog.Logger
}

// NewEngine creates a cascade engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("cascade: Resolver is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	engineClock := cfg.Clock
	if engineClock == nil {
		engineClock = clock.Real()
	}
	return &Engine{
		resolver: cfg.Resolver,
		clock:    engineClock,
		logger:   logger,
	}, nil
}

// Encrypt applies every stratum of policy to plaintext, in order, and
// returns the container. Each stratum gets a fresh random symmetric
// key, wrapped through the stratum's key-encryption chain; declared
// signatures are collected over the stratum's pre-encryption input.
// The first stratum failure aborts the remaining strata.
func (e *Engine) Encrypt(ctx context.Context, keychainID uuid.UUID, policy Policy, plaintext []byte) (*Container, error) {
	if keychainID == uuid.Nil {
		return nil, fmt.Errorf("cascade: keychain ID is unset")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("cascade: invalid policy: %w", err)
	}

	started := time.Now()
	container := &Container{
		FormatVersion: ContainerFormatVersion,
		KeychainID:    keychainID,
		CreatedAt:     e.clock.Now().UTC().Truncate(time.Second),
		Strata:        make([]StratumRecord, 0, len(policy.Strata)),
	}

	running := plaintext
	for i, stratum := range policy.Strata {
		record, sealed, err := e.encryptStratum(ctx, keychainID, i, stratum, running)
		if err != nil {
			return nil, err
		}
		container.Strata = append(container.Strata, record)
		running = sealed
	}

	container.Payload = running
	container.PayloadDigest = PayloadDigest(running)

	e.logger.Info("container encrypted",
		"keychain_id", keychainID,
		"strata", len(policy.Strata),
		"plaintext_bytes", len(plaintext),
		"payload_bytes", len(running),
		"elapsed", time.Since(started),
	)
	return container, nil
}

// encryptStratum runs one stratum: seal the running input under a
// fresh key, wrap the key through the layer chain, collect
// signatures over the pre-encryption input.
func (e *Engine) encryptStratum(ctx context.Context, keychainID uuid.UUID, index int, stratum Stratum, input []byte) (StratumRecord, []byte, error) {
	key, err := newStratumKey()
	if err != nil {
		return StratumRecord{}, nil, &StratumError{KeychainID: keychainID, Stratum: index, Op: "encrypt", Err: err}
	}
	defer key.Close()

	sealed, err := sealStratum(stratum.DataAlgorithm, key, index, keychainID, input)
	if err != nil {
		return StratumRecord{}, nil, &StratumError{KeychainID: keychainID, Stratum: index, Op: "encrypt", Err: err}
	}

	wrappedKey, err := e.wrapKey(ctx, keychainID, stratum.KeyLayers, key)
	if err != nil {
		return StratumRecord{}, nil, &StratumError{KeychainID: keychainID, Stratum: index, Op: "wrap-key", Err: err}
	}

	var signatures []escrow.Signature
	for j, spec := range stratum.Signatures {
		service, err := e.resolver.Resolve(ctx, spec.Escrow)
		if err != nil {
			return StratumRecord{}, nil, &StratumError{
				KeychainID: keychainID, Stratum: index, Op: "sign",
				Err: fmt.Errorf("resolving escrow for signature %d: %w", j, err),
			}
		}
		signature, err := service.Sign(ctx, keychainID, spec.KeyType(), spec.Algorithm, input)
		if err != nil {
			return StratumRecord{}, nil, &StratumError{
				KeychainID: keychainID, Stratum: index, Op: "sign",
				Err: fmt.Errorf("signature %d (%s): %w", j, spec.Algorithm, markUnavailable(err)),
			}
		}
		signatures = append(signatures, signature)
	}

	record := StratumRecord{
		DataAlgorithm: stratum.DataAlgorithm,
		KeyLayers:     stratum.KeyLayers,
		WrappedKey:    wrappedKey,
		Signatures:    signatures,
	}
	return record, sealed, nil
}

// wrapKey runs the sequential key-encryption chain: the stratum key
// is wrapped under the first layer's escrow public key, and each
// layer's output feeds the next layer. The chain is inherently
// sequential and never parallelized. The key is borrowed and not
// closed.
func (e *Engine) wrapKey(ctx context.Context, keychainID uuid.UUID, layers []KeyEncryptionLayer, key *secret.Buffer) ([]byte, error) {
	material := append([]byte(nil), key.Bytes()...)
	defer secret.Zero(material)

	for j, layer := range layers {
		service, err := e.resolver.Resolve(ctx, layer.Escrow)
		if err != nil {
			return nil, fmt.Errorf("resolving escrow for layer %d: %w", j, err)
		}
		publicKey, err := service.PublicKey(ctx, keychainID, layer.KeyType())
		if err != nil {
			return nil, fmt.Errorf("fetching public key for layer %d: %w", j, markUnavailable(err))
		}
		wrapped, err := escrow.WrapKey(layer.KeyType(), layer.Algorithm, publicKey, material)
		if err != nil {
			return nil, fmt.Errorf("wrapping under layer %d (%s): %w", j, layer.Algorithm, err)
		}
		// The first iteration zeroes the raw key copy via the
		// deferred Zero; intermediate wrap outputs are ciphertext and
		// need no zeroing beyond that.
		if j > 0 {
			secret.Zero(material)
		}
		material = wrapped
	}
	return material, nil
}

// markUnavailable maps escrow call failures to ErrEscrowUnavailable
// unless they already carry a more specific classification
// (unsupported algorithm, authorization refusal).
func markUnavailable(err error) error {
	if errors.Is(err, escrow.ErrUnsupportedAlgorithm) ||
		errors.Is(err, escrow.ErrDecryptionRefused) ||
		errors.Is(err, escrow.ErrSignatureRefused) ||
		errors.Is(err, ErrEscrowUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrEscrowUnavailable, err)
}
