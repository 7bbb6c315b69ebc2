// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package keystore provides write-once storage for escrow keypairs.
//
// A keystore maps (keychain ID, key type) to exactly one keypair for
// the lifetime of the store. [Store.SetKeys] registers a pair
// atomically and fails with [ErrAlreadyExists] when the cell is
// occupied, even if the new material is byte-identical to the old.
// Reads of absent cells fail with [ErrNotFound]; absence is never
// signaled with nil data. This write-once contract is what makes
// escrow key provisioning race-safe: concurrent provisioners race to
// SetKeys, exactly one wins, and the losers recover by re-reading.
//
// The keystore holds bytes and enforces the write-once rule. It does
// not generate keys, interpret key material, or decide who may read
// private keys — that is lib/escrow's job.
//
// Three backends implement [Store]:
//
//   - [MemoryStore] -- map-backed, for tests and ephemeral escrows
//   - [FilesystemStore] -- one CBOR file per keypair, atomic
//     create-exclusive writes, optional passphrase protection for
//     private keys at rest (age scrypt)
//   - [SQLiteStore] -- table-backed via lib/sqlitepool, write-once
//     enforced by the primary key constraint
//
// Private keys are returned as *secret.Buffer values (mmap-backed,
// locked against swap, zeroed on close). Callers own the returned
// buffer and must Close it.
package keystore
