// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

// timestampedDigest hashes the message together with the signing
// time, so a verified Signature vouches for both. SignedAt is reduced
// to unix seconds; the serialization layer carries no finer precision
// either, keeping the two representations in agreement.
func timestampedDigest(message []byte, signedAt time.Time) []byte {
	payload := sha256.Sum256(message)

	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(signedAt.Unix()))

	combined := sha256.New()
	combined.Write(payload[:])
	combined.Write(stamp[:])
	return combined.Sum(nil)
}

// signMessage produces a Signature over message with the given
// private key material. The private key bytes are borrowed, not
// zeroed here.
func signMessage(keyType keystore.KeyType, algorithm SignatureAlgorithm, publicKey, privateKey, message []byte, signedAt time.Time) (Signature, error) {
	signedAt = signedAt.UTC().Truncate(time.Second)
	digestInput := timestampedDigest(message, signedAt)

	var digest []byte
	switch algorithm {
	case SignRSAPSS:
		key, err := parseRSAPrivateKey(privateKey)
		if err != nil {
			return Signature{}, err
		}
		digest, err = rsa.SignPSS(rand.Reader, key, crypto.SHA256, digestInput, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
		if err != nil {
			return Signature{}, fmt.Errorf("escrow: RSA-PSS signing: %w", err)
		}

	case SignEd25519:
		key, err := parseEd25519PrivateKey(privateKey)
		if err != nil {
			return Signature{}, err
		}
		digest = ed25519.Sign(key, digestInput)

	default:
		return Signature{}, fmt.Errorf("%w: sign %s with %s key", ErrUnsupportedAlgorithm, algorithm, keyType)
	}

	return Signature{
		Algorithm: algorithm,
		PublicKey: publicKey,
		Digest:    digest,
		SignedAt:  signedAt,
	}, nil
}

// VerifySignature checks signature against message using only the
// public key embedded in the signature. Any alteration of the
// message, the digest, or the signing time fails verification.
func VerifySignature(message []byte, signature Signature) error {
	digestInput := timestampedDigest(message, signature.SignedAt.UTC().Truncate(time.Second))

	switch signature.Algorithm {
	case SignRSAPSS:
		publicKey, err := parseRSAPublicKey(signature.PublicKey)
		if err != nil {
			return err
		}
		err = rsa.VerifyPSS(publicKey, crypto.SHA256, digestInput, signature.Digest, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
		if err != nil {
			return fmt.Errorf("escrow: RSA-PSS verification failed: %w", err)
		}
		return nil

	case SignEd25519:
		publicKey, err := parseEd25519PublicKey(signature.PublicKey)
		if err != nil {
			return err
		}
		if !ed25519.Verify(publicKey, digestInput, signature.Digest) {
			return fmt.Errorf("escrow: Ed25519 verification failed")
		}
		return nil

	default:
		return fmt.Errorf("%w: verify %s", ErrUnsupportedAlgorithm, signature.Algorithm)
	}
}
