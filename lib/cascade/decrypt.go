// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// Decrypt reverses the cascade and returns the original plaintext.
// Strata are undone in reverse policy order; within each stratum the
// key-encryption chain is unwrapped last-applied-first, the AEAD is
// opened, and declared signatures are verified against the recovered
// plaintext. The operation is atomic from the caller's perspective:
// the first failure aborts everything and no partial plaintext
// escapes.
//
// The container must carry its payload inline; rehydrate an offloaded
// payload with [Container.WithPayload] first.
func (e *Engine) Decrypt(ctx context.Context, container *Container) ([]byte, error) {
	if container.FormatVersion != ContainerFormatVersion {
		return nil, fmt.Errorf("cascade: container format version %d is not supported (expected %d)",
			container.FormatVersion, ContainerFormatVersion)
	}
	if !container.Inline() {
		return nil, fmt.Errorf("%w: ref %q", ErrPayloadOffloaded, container.PayloadRef)
	}
	if len(container.Strata) == 0 {
		return nil, fmt.Errorf("cascade: container has no strata")
	}

	keychainID := container.KeychainID
	if !bytes.Equal(PayloadDigest(container.Payload), container.PayloadDigest) {
		return nil, &StratumError{
			KeychainID: keychainID, Stratum: len(container.Strata) - 1, Op: "decrypt",
			Err: fmt.Errorf("%w: payload digest mismatch", ErrCiphertextIntegrityFailed),
		}
	}

	started := time.Now()
	running := container.Payload
	for i := len(container.Strata) - 1; i >= 0; i-- {
		record := container.Strata[i]

		key, err := e.unwrapKey(ctx, keychainID, i, record)
		if err != nil {
			return nil, err
		}

		plaintext, err := openStratum(record.DataAlgorithm, key, i, keychainID, running)
		key.Close()
		if err != nil {
			return nil, &StratumError{
				KeychainID: keychainID, Stratum: i, Op: "decrypt",
				Err: fmt.Errorf("%w: %v", ErrCiphertextIntegrityFailed, err),
			}
		}

		for j, signature := range record.Signatures {
			if err := escrow.VerifySignature(plaintext, signature); err != nil {
				return nil, &StratumError{
					KeychainID: keychainID, Stratum: i, Op: "verify-signature",
					Err: fmt.Errorf("%w: signature %d (%s): %v", ErrSignatureInvalid, j, signature.Algorithm, err),
				}
			}
		}

		running = plaintext
	}

	e.logger.Info("container decrypted",
		"keychain_id", keychainID,
		"strata", len(container.Strata),
		"plaintext_bytes", len(running),
		"elapsed", time.Since(started),
	)
	return running, nil
}

// unwrapKey undoes the stratum's key-encryption chain in reverse
// order, each step requiring that layer's escrow to decrypt with its
// private key. Recovery is all-or-nothing: any failure discards the
// partially unwrapped material and reports ErrKeyRecoveryFailed for
// the stratum.
func (e *Engine) unwrapKey(ctx context.Context, keychainID uuid.UUID, index int, record StratumRecord) (*secret.Buffer, error) {
	// Both sentinels stay reachable through errors.Is: a resolution
	// failure is ErrKeyRecoveryFailed for the stratum and still
	// ErrEscrowUnavailable for retry decisions.
	fail := func(err error) (*secret.Buffer, error) {
		return nil, &StratumError{
			KeychainID: keychainID, Stratum: index, Op: "unwrap-key",
			Err: fmt.Errorf("%w: %w", ErrKeyRecoveryFailed, err),
		}
	}

	material := record.WrappedKey
	for j := len(record.KeyLayers) - 1; j >= 0; j-- {
		layer := record.KeyLayers[j]

		service, err := e.resolver.Resolve(ctx, layer.Escrow)
		if err != nil {
			return fail(fmt.Errorf("resolving escrow for layer %d: %w", j, err))
		}
		// Unlike the encrypt path, escrow decrypt errors are NOT
		// marked ErrEscrowUnavailable: a failed unwrap is tamper
		// evidence, not a retryable outage. Transport failures reach
		// here already tagged by the resolver or the remote client.
		unwrapped, err := service.DecryptWithPrivateKey(ctx, keychainID, layer.KeyType(), layer.Algorithm, material)
		if err != nil {
			return fail(fmt.Errorf("unwrapping layer %d (%s): %w", j, layer.Algorithm, err))
		}
		if j > 0 {
			material = unwrapped
			continue
		}

		if len(unwrapped) != stratumKeySize {
			secret.Zero(unwrapped)
			return fail(fmt.Errorf("recovered key is %d bytes, expected %d", len(unwrapped), stratumKeySize))
		}
		// NewFromBytes copies into guarded memory and zeroes the heap
		// slice.
		key, err := secret.NewFromBytes(unwrapped)
		if err != nil {
			secret.Zero(unwrapped)
			return fail(fmt.Errorf("guarding recovered key: %w", err))
		}
		return key, nil
	}

	return fail(fmt.Errorf("stratum has no key-encryption layers"))
}
