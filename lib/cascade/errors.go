// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors. Test with errors.Is; extract the failing stratum
// with errors.As on *StratumError.
var (
	// ErrEscrowUnavailable is returned when an escrow reference
	// cannot be resolved or the resolved service cannot be reached
	// (including context deadline expiry). Retryable by the caller;
	// the core retries nothing.
	ErrEscrowUnavailable = errors.New("cascade: escrow unavailable")

	// ErrKeyRecoveryFailed is returned when unwrapping a stratum's
	// key material fails at any layer. Key recovery is all-or-nothing
	// per stratum: no partially unwrapped material is exposed.
	ErrKeyRecoveryFailed = errors.New("cascade: key recovery failed")

	// ErrCiphertextIntegrityFailed is returned when a stratum's AEAD
	// authentication fails or its ciphertext is structurally
	// malformed. Treated as tamper evidence.
	ErrCiphertextIntegrityFailed = errors.New("cascade: ciphertext integrity check failed")

	// ErrSignatureInvalid is returned when a declared stratum
	// signature does not verify against the recovered plaintext.
	// Treated as tamper evidence, never a warning.
	ErrSignatureInvalid = errors.New("cascade: signature invalid")

	// ErrPayloadOffloaded is returned by Decrypt when the container
	// carries only a payload reference. The caller must fetch the
	// offloaded ciphertext and reattach it first.
	ErrPayloadOffloaded = errors.New("cascade: container payload is offloaded")
)

// StratumError wraps a failure with the position in the cascade where
// it occurred. Every engine failure on a specific stratum is one of
// these; errors.Is reaches through to the sentinel.
type StratumError struct {
	// KeychainID is the container's keychain.
	KeychainID uuid.UUID

	// Stratum is the zero-based policy index of the failing stratum.
	Stratum int

	// Op names the failing step: "wrap-key", "unwrap-key", "encrypt",
	// "decrypt", "sign", or "verify-signature".
	Op string

	// Err is the underlying failure.
	Err error
}

func (e *StratumError) Error() string {
	return fmt.Sprintf("stratum %d (%s, keychain %s): %v", e.Stratum, e.Op, e.KeychainID, e.Err)
}

func (e *StratumError) Unwrap() error {
	return e.Err
}
