// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package cascade implements the layered container encryption engine.
//
// A [Policy] is an ordered list of strata. Encrypting applies each
// stratum in order — a fresh random symmetric key per stratum, AEAD
// encryption of the previous stratum's output, the key wrapped
// through a chain of escrow public keys — and produces an immutable
// [Container]. Decrypting undoes the strata in reverse, which
// requires every escrow in every key-encryption chain to cooperate
// via its private key. Algorithm diversity across strata means a
// future break of one cipher still leaves the remaining layers
// intact.
//
// Escrow references ([EscrowRef]) are resolved to services through a
// [Resolver] independently at encryption and decryption time. The
// engine holds no private keys itself; all private-key work happens
// behind the escrow.Service boundary.
//
// Failure classification is strict. Key-unwrap failures are
// [ErrKeyRecoveryFailed] (all-or-nothing per stratum), AEAD
// authentication failures are [ErrCiphertextIntegrityFailed], and
// signature mismatches are [ErrSignatureInvalid] — the latter two are
// tamper evidence, never warnings. Each failure carries its stratum
// position in a [StratumError].
package cascade
