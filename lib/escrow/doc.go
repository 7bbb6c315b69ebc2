// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package escrow provides the key-holding trust boundary of a
// strongroom. An escrow [Service] owns keypairs addressed by
// (keychain ID, key type) and exposes exactly three operations:
// publish the public key, sign a message, and decrypt material that
// was wrapped to the public key. Private keys never cross the Service
// boundary in either direction.
//
// [LocalService] implements Service over a lib/keystore Store with
// lazy provisioning: any operation that touches an absent keypair
// generates and registers it first. Provisioning is serialized per
// (keychain ID, key type) in-process, and the keystore's write-once
// contract resolves races with other processes — the loser of a
// registration race discards its candidate and re-reads the winner's
// pair, so every caller observes the same keypair forever after.
//
// Encryption-side key wrapping does not need the Service: callers
// fetch the public key and wrap locally with [WrapKey]. Unwrapping is
// [Service.DecryptWithPrivateKey], because only the escrow may touch
// the private key. Signature verification is [VerifySignature],
// public-key only.
//
// The algorithm matrix is closed: rsa-oaep wraps and rsa-pss signs
// for RSA keypairs, age-x25519 wraps for age identities, ed25519
// signs for Ed25519 keypairs. Any other (key type, algorithm) pairing
// fails with [ErrUnsupportedAlgorithm] before key material is
// touched.
//
// An [Authorizer] gates decryption and signing. The zero configuration
// permits everything; deployments that need operator approval or
// time-window policies supply their own gate, and refusals surface as
// [ErrDecryptionRefused] or [ErrSignatureRefused].
package escrow
