// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

// WrapAlgorithm identifies an asymmetric key-wrapping algorithm. The
// value appears in container documents — changing it breaks decryption
// of existing containers.
type WrapAlgorithm string

const (
	// WrapRSAOAEP wraps with RSA-OAEP (SHA-256), chunking inputs
	// longer than one OAEP block. Requires an "rsa" keypair.
	WrapRSAOAEP WrapAlgorithm = "rsa-oaep"

	// WrapAgeX25519 wraps with the age file format to an X25519
	// recipient. Requires an "age-x25519" keypair.
	WrapAgeX25519 WrapAlgorithm = "age-x25519"
)

// ParseWrapAlgorithm parses a wrap algorithm from its string
// representation.
func ParseWrapAlgorithm(name string) (WrapAlgorithm, error) {
	switch WrapAlgorithm(name) {
	case WrapRSAOAEP:
		return WrapRSAOAEP, nil
	case WrapAgeX25519:
		return WrapAgeX25519, nil
	default:
		return "", fmt.Errorf("unknown wrap algorithm: %q", name)
	}
}

// SignatureAlgorithm identifies a message signing algorithm. The
// value appears in container documents.
type SignatureAlgorithm string

const (
	// SignRSAPSS signs with RSA-PSS (SHA-256). Requires an "rsa"
	// keypair.
	SignRSAPSS SignatureAlgorithm = "rsa-pss"

	// SignEd25519 signs with Ed25519. Requires an "ed25519" keypair.
	SignEd25519 SignatureAlgorithm = "ed25519"
)

// ParseSignatureAlgorithm parses a signature algorithm from its
// string representation.
func ParseSignatureAlgorithm(name string) (SignatureAlgorithm, error) {
	switch SignatureAlgorithm(name) {
	case SignRSAPSS:
		return SignRSAPSS, nil
	case SignEd25519:
		return SignEd25519, nil
	default:
		return "", fmt.Errorf("unknown signature algorithm: %q", name)
	}
}

// Sentinel errors. Test with errors.Is.
var (
	// ErrUnsupportedAlgorithm is returned when an operation pairs a
	// key type with an algorithm outside the supported matrix. This
	// is a configuration error, never a data-dependent one.
	ErrUnsupportedAlgorithm = errors.New("escrow: unsupported algorithm for key type")

	// ErrDecryptionRefused is returned when the configured Authorizer
	// denies a decryption request.
	ErrDecryptionRefused = errors.New("escrow: decryption refused")

	// ErrSignatureRefused is returned when the configured Authorizer
	// denies a signing request.
	ErrSignatureRefused = errors.New("escrow: signature refused")

	// ErrMalformedCiphertext is returned by DecryptWithPrivateKey
	// when the ciphertext shape is wrong before any key material is
	// used, such as an RSA input whose length is not a multiple of
	// the block size.
	ErrMalformedCiphertext = errors.New("escrow: malformed ciphertext")
)

// Signature is a detached signature over a message. The digest covers
// the message and SignedAt together, so tampering with either is
// detected. PublicKey carries the signer's public key so verification
// needs no escrow round trip.
type Signature struct {
	Algorithm SignatureAlgorithm `json:"algorithm"`
	PublicKey []byte             `json:"public_key"`
	Digest    []byte             `json:"digest"`
	SignedAt  time.Time          `json:"signed_at"`
}

// Service is the escrow contract: the three operations a key holder
// exposes without ever surrendering a private key. Implementations
// provision absent keypairs on first use, so none of these operations
// fails merely because the pair does not exist yet.
//
// All operations honor ctx cancellation and deadlines. Remote
// implementations map transport failures to their own error types;
// the cascade engine treats any Service failure at encryption time as
// escrow unavailability.
type Service interface {
	// PublicKey returns the public key for (keychainID, keyType),
	// provisioning the keypair if absent.
	PublicKey(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) ([]byte, error)

	// Sign signs message with the private key for (keychainID,
	// keyType) using algorithm, provisioning the keypair if absent.
	Sign(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType, algorithm SignatureAlgorithm, message []byte) (Signature, error)

	// DecryptWithPrivateKey unwraps ciphertext that was wrapped to
	// this escrow's public key with algorithm. The private key is
	// loaded, used, and discarded inside the call.
	DecryptWithPrivateKey(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType, algorithm WrapAlgorithm, ciphertext []byte) ([]byte, error)
}

// Authorizer gates the operations that use private keys. Returning a
// non-nil error denies the operation; the error text is preserved in
// the refusal.
//
// Authorization is an extension point: the default (nil) authorizer
// permits everything, which is correct for the encryption side and
// for test escrows. Deployments holding recovery shares supply gates
// that require operator approval.
type Authorizer interface {
	// AuthorizeDecryption is consulted before each
	// DecryptWithPrivateKey call.
	AuthorizeDecryption(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) error

	// AuthorizeSignature is consulted before each Sign call.
	AuthorizeSignature(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) error
}

// supportsWrap reports whether keyType can serve algorithm.
func supportsWrap(keyType keystore.KeyType, algorithm WrapAlgorithm) bool {
	switch algorithm {
	case WrapRSAOAEP:
		return keyType == keystore.KeyTypeRSA
	case WrapAgeX25519:
		return keyType == keystore.KeyTypeAgeX25519
	default:
		return false
	}
}

// supportsSignature reports whether keyType can serve algorithm.
func supportsSignature(keyType keystore.KeyType, algorithm SignatureAlgorithm) bool {
	switch algorithm {
	case SignRSAPSS:
		return keyType == keystore.KeyTypeRSA
	case SignEd25519:
		return keyType == keystore.KeyTypeEd25519
	default:
		return false
	}
}
