// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

// WrapKey encrypts plaintext (typically a stratum key, possibly
// already wrapped by an inner layer) to the holder of publicKey. This
// runs on the encryption side with no escrow involvement beyond
// having fetched the public key.
func WrapKey(keyType keystore.KeyType, algorithm WrapAlgorithm, publicKey, plaintext []byte) ([]byte, error) {
	if !supportsWrap(keyType, algorithm) {
		return nil, fmt.Errorf("%w: wrap %s with %s key", ErrUnsupportedAlgorithm, algorithm, keyType)
	}

	switch algorithm {
	case WrapRSAOAEP:
		return wrapRSAOAEP(publicKey, plaintext)
	case WrapAgeX25519:
		return wrapAge(publicKey, plaintext)
	default:
		return nil, fmt.Errorf("%w: wrap %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

// wrapRSAOAEP encrypts plaintext with RSA-OAEP (SHA-256), splitting
// inputs longer than one OAEP payload into consecutive blocks. Each
// block produces exactly modulus-size bytes of ciphertext, so the
// output length is always a multiple of the block size — the property
// unwrapRSAOAEP validates before touching the private key.
func wrapRSAOAEP(publicKeyPEM, plaintext []byte) ([]byte, error) {
	publicKey, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	blockSize := publicKey.Size()
	maxPayload := blockSize - 2*sha256.Size - 2
	if maxPayload <= 0 {
		return nil, fmt.Errorf("escrow: RSA key too small for OAEP-SHA256")
	}

	var wrapped bytes.Buffer
	for offset := 0; offset < len(plaintext); offset += maxPayload {
		end := min(offset+maxPayload, len(plaintext))
		block, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, plaintext[offset:end], nil)
		if err != nil {
			return nil, fmt.Errorf("escrow: RSA-OAEP encrypting block at %d: %w", offset, err)
		}
		wrapped.Write(block)
	}

	if wrapped.Len() == 0 {
		// Empty plaintext still produces one block so the unwrap side
		// has something to authenticate against.
		block, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("escrow: RSA-OAEP encrypting empty block: %w", err)
		}
		wrapped.Write(block)
	}

	return wrapped.Bytes(), nil
}

// unwrapRSAOAEP decrypts the output of wrapRSAOAEP. The length check
// runs before any private key operation: a truncated or extended
// ciphertext fails loudly instead of producing garbage.
func unwrapRSAOAEP(privateKey *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	blockSize := privateKey.Size()
	if len(ciphertext) == 0 || len(ciphertext)%blockSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a positive multiple of the %d-byte RSA block size",
			ErrMalformedCiphertext, len(ciphertext), blockSize)
	}

	var plaintext bytes.Buffer
	for offset := 0; offset < len(ciphertext); offset += blockSize {
		block, err := rsa.DecryptOAEP(sha256.New(), nil, privateKey, ciphertext[offset:offset+blockSize], nil)
		if err != nil {
			return nil, fmt.Errorf("escrow: RSA-OAEP decrypting block at %d: %w", offset, err)
		}
		plaintext.Write(block)
	}
	return plaintext.Bytes(), nil
}

// wrapAge encrypts plaintext to an age X25519 recipient.
func wrapAge(publicKey, plaintext []byte) ([]byte, error) {
	recipient, err := age.ParseX25519Recipient(string(publicKey))
	if err != nil {
		return nil, fmt.Errorf("escrow: parsing age recipient: %w", err)
	}

	var wrapped bytes.Buffer
	writer, err := age.Encrypt(&wrapped, recipient)
	if err != nil {
		return nil, fmt.Errorf("escrow: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("escrow: writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("escrow: finalizing age encryption: %w", err)
	}
	return wrapped.Bytes(), nil
}

// unwrapAge decrypts the output of wrapAge with the identity parsed
// from privateKey.
func unwrapAge(privateKey []byte, ciphertext []byte) ([]byte, error) {
	identity, err := age.ParseX25519Identity(string(privateKey))
	if err != nil {
		return nil, fmt.Errorf("escrow: parsing age identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("escrow: age decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("escrow: reading age plaintext: %w", err)
	}
	return plaintext, nil
}
