// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// stratumKeySize is the symmetric key size for every supported AEAD.
const stratumKeySize = 32

// stratumBlobVersion is the version byte prepended to every stratum
// ciphertext blob. Authenticated as part of the AAD, so tampering
// with it fails the AEAD open.
const stratumBlobVersion byte = 0x01

// newAEAD constructs the AEAD for a stratum algorithm. The key is
// borrowed and not closed.
func newAEAD(algorithm SymmetricAlgorithm, key *secret.Buffer) (cipher.AEAD, error) {
	switch algorithm {
	case SymmetricAES256GCM:
		block, err := aes.NewCipher(key.Bytes())
		if err != nil {
			return nil, fmt.Errorf("cascade: creating AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("cascade: creating GCM mode: %w", err)
		}
		return aead, nil

	case SymmetricChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key.Bytes())
		if err != nil {
			return nil, fmt.Errorf("cascade: creating ChaCha20-Poly1305 cipher: %w", err)
		}
		return aead, nil

	case SymmetricXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key.Bytes())
		if err != nil {
			return nil, fmt.Errorf("cascade: creating XChaCha20-Poly1305 cipher: %w", err)
		}
		return aead, nil

	default:
		return nil, fmt.Errorf("cascade: unsupported symmetric algorithm %q", algorithm)
	}
}

// newStratumKey generates a fresh random 32-byte key in guarded
// memory. The caller must Close it on all paths.
func newStratumKey() (*secret.Buffer, error) {
	key, err := secret.New(stratumKeySize)
	if err != nil {
		return nil, fmt.Errorf("cascade: allocating stratum key: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, key.Bytes()); err != nil {
		key.Close()
		return nil, fmt.Errorf("cascade: generating stratum key: %w", err)
	}
	return key, nil
}

// stratumAAD builds the additional authenticated data binding a
// stratum blob to its position: blob version, stratum index, and the
// container's keychain. A blob cannot be transplanted to another
// stratum or another container lineage without failing the AEAD open.
func stratumAAD(stratumIndex int, keychainID uuid.UUID) []byte {
	aad := make([]byte, 2+len(keychainID))
	aad[0] = stratumBlobVersion
	aad[1] = byte(stratumIndex)
	copy(aad[2:], keychainID[:])
	return aad
}

// sealStratum encrypts plaintext for one stratum and returns the
// blob: [version byte][nonce][ciphertext+tag]. The key is borrowed
// and not closed.
func sealStratum(algorithm SymmetricAlgorithm, key *secret.Buffer, stratumIndex int, keychainID uuid.UUID, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cascade: generating nonce: %w", err)
	}

	blob := make([]byte, 1+len(nonce), 1+len(nonce)+len(plaintext)+aead.Overhead())
	blob[0] = stratumBlobVersion
	copy(blob[1:], nonce)

	return aead.Seal(blob, nonce, plaintext, stratumAAD(stratumIndex, keychainID)), nil
}

// openStratum decrypts a stratum blob produced by sealStratum.
// Structural problems (short blob, wrong version) and authentication
// failures are both integrity failures from the caller's point of
// view; openStratum reports them distinctly but the engine maps both
// to ErrCiphertextIntegrityFailed.
func openStratum(algorithm SymmetricAlgorithm, key *secret.Buffer, stratumIndex int, keychainID uuid.UUID, blob []byte) ([]byte, error) {
	aead, err := newAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}

	minLen := 1 + aead.NonceSize() + aead.Overhead()
	if len(blob) < minLen {
		return nil, fmt.Errorf("stratum blob is %d bytes, minimum is %d (version + nonce + tag)", len(blob), minLen)
	}
	if blob[0] != stratumBlobVersion {
		return nil, fmt.Errorf("stratum blob version %d is not supported (expected %d)", blob[0], stratumBlobVersion)
	}

	nonce := blob[1 : 1+aead.NonceSize()]
	ciphertext := blob[1+aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, stratumAAD(stratumIndex, keychainID))
	if err != nil {
		return nil, fmt.Errorf("AEAD authentication failed: %w", err)
	}
	return plaintext, nil
}
