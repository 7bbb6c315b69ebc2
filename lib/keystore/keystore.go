// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// KeyType identifies a key algorithm family. The value is stored
// alongside key material and appears in keystore file names and
// database rows — changing a value breaks existing stores.
type KeyType string

const (
	// KeyTypeRSA is an RSA-2048 keypair. Wraps stratum keys with
	// RSA-OAEP and signs with RSA-PSS.
	KeyTypeRSA KeyType = "rsa"

	// KeyTypeAgeX25519 is an age X25519 identity. Wraps stratum keys
	// with the age format. Does not sign.
	KeyTypeAgeX25519 KeyType = "age-x25519"

	// KeyTypeEd25519 is an Ed25519 keypair. Signs only; cannot wrap
	// stratum keys.
	KeyTypeEd25519 KeyType = "ed25519"
)

// ParseKeyType parses a key type from its string representation.
func ParseKeyType(name string) (KeyType, error) {
	switch KeyType(name) {
	case KeyTypeRSA:
		return KeyTypeRSA, nil
	case KeyTypeAgeX25519:
		return KeyTypeAgeX25519, nil
	case KeyTypeEd25519:
		return KeyTypeEd25519, nil
	default:
		return "", fmt.Errorf("unknown key type: %q", name)
	}
}

// Sentinel errors for the write-once contract. Test with errors.Is.
var (
	// ErrAlreadyExists is returned by SetKeys when the (keychain ID,
	// key type) cell is already occupied. Registration never
	// overwrites, even with identical material.
	ErrAlreadyExists = errors.New("keystore: keypair already exists")

	// ErrNotFound is returned by PublicKey and PrivateKey when no
	// keypair is registered under the (keychain ID, key type) cell.
	ErrNotFound = errors.New("keystore: keypair not found")
)

// Store is write-once keypair storage addressed by (keychain ID, key
// type). Implementations must be safe for concurrent use, and SetKeys
// must be atomic: under concurrent registration of the same cell,
// exactly one caller succeeds and every other caller gets
// ErrAlreadyExists with the store holding the winner's material.
type Store interface {
	// SetKeys registers a keypair under (keychainID, keyType).
	// Returns ErrAlreadyExists when the cell is occupied. Both slices
	// are copied; the caller retains ownership and should zero
	// privateKey once the call returns.
	SetKeys(ctx context.Context, keychainID uuid.UUID, keyType KeyType, publicKey, privateKey []byte) error

	// PublicKey returns the public key registered under (keychainID,
	// keyType), or ErrNotFound. The returned slice is a copy.
	PublicKey(ctx context.Context, keychainID uuid.UUID, keyType KeyType) ([]byte, error)

	// PrivateKey returns the private key registered under
	// (keychainID, keyType), or ErrNotFound. The caller owns the
	// returned buffer and must Close it.
	PrivateKey(ctx context.Context, keychainID uuid.UUID, keyType KeyType) (*secret.Buffer, error)
}
