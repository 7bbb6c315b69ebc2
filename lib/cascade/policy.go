// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"errors"
	"fmt"

	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

// SymmetricAlgorithm identifies the AEAD used for one stratum's data
// encryption. The value appears in container documents — changing it
// breaks decryption of existing containers.
type SymmetricAlgorithm string

const (
	// SymmetricAES256GCM is AES-256 in Galois/Counter Mode.
	SymmetricAES256GCM SymmetricAlgorithm = "aes256-gcm"

	// SymmetricChaCha20Poly1305 is ChaCha20-Poly1305 (RFC 8439).
	SymmetricChaCha20Poly1305 SymmetricAlgorithm = "chacha20-poly1305"

	// SymmetricXChaCha20Poly1305 is XChaCha20-Poly1305 with its
	// 24-byte nonce.
	SymmetricXChaCha20Poly1305 SymmetricAlgorithm = "xchacha20-poly1305"
)

// ParseSymmetricAlgorithm parses a symmetric algorithm from its
// string representation.
func ParseSymmetricAlgorithm(name string) (SymmetricAlgorithm, error) {
	switch SymmetricAlgorithm(name) {
	case SymmetricAES256GCM:
		return SymmetricAES256GCM, nil
	case SymmetricChaCha20Poly1305:
		return SymmetricChaCha20Poly1305, nil
	case SymmetricXChaCha20Poly1305:
		return SymmetricXChaCha20Poly1305, nil
	default:
		return "", fmt.Errorf("unknown symmetric algorithm: %q", name)
	}
}

// KeyEncryptionLayer is one wrap in a stratum's key-encryption chain:
// the named escrow's public key encrypts the key material flowing
// through the chain. The escrow's key type follows from the wrap
// algorithm.
type KeyEncryptionLayer struct {
	Algorithm escrow.WrapAlgorithm `cbor:"algorithm" json:"algorithm"`
	Escrow    EscrowRef            `cbor:"escrow" json:"escrow"`
}

// KeyType returns the escrow key type the layer's wrap algorithm
// requires.
func (l KeyEncryptionLayer) KeyType() keystore.KeyType {
	return wrapKeyType(l.Algorithm)
}

// SignatureSpec declares that a stratum's pre-encryption plaintext
// must be signed by the named escrow. The escrow's key type follows
// from the signature algorithm.
type SignatureSpec struct {
	Algorithm escrow.SignatureAlgorithm `cbor:"algorithm" json:"algorithm"`
	Escrow    EscrowRef                 `cbor:"escrow" json:"escrow"`
}

// KeyType returns the escrow key type the spec's signature algorithm
// requires.
func (s SignatureSpec) KeyType() keystore.KeyType {
	return signatureKeyType(s.Algorithm)
}

// Stratum is the policy for one layer of the cascade: which AEAD
// encrypts the data, how the fresh symmetric key is escrow-wrapped,
// and which signatures attest the plaintext.
//
// KeyLayers is a sequential chain: the symmetric key is wrapped under
// the first layer, that ciphertext is wrapped under the second, and
// so on. Unwrapping requires every layer's escrow, in reverse order.
// There is no threshold semantics — all layers are mandatory.
type Stratum struct {
	DataAlgorithm SymmetricAlgorithm   `cbor:"data_algorithm" json:"data_algorithm"`
	KeyLayers     []KeyEncryptionLayer `cbor:"key_layers" json:"key_layers"`
	Signatures    []SignatureSpec      `cbor:"signatures,omitempty" json:"signatures,omitempty"`
}

// maxStrata bounds a policy's cascade depth. The stratum index is a
// single byte in the AEAD associated data.
const maxStrata = 255

// Policy is an ordered cascade of strata. Stratum 0 encrypts the
// original plaintext; each later stratum encrypts the previous
// stratum's ciphertext, so the last stratum is the outermost.
// Decryption undoes the strata in reverse order.
type Policy struct {
	Strata []Stratum `cbor:"strata" json:"strata"`
}

// Validate checks the policy for structural errors: empty cascades,
// strata without key layers, unknown algorithm names, and
// unconstructed escrow references. All findings are reported, not
// just the first.
func (p Policy) Validate() error {
	var problems []error

	if len(p.Strata) == 0 {
		problems = append(problems, errors.New("policy has no strata"))
	}
	if len(p.Strata) > maxStrata {
		problems = append(problems, fmt.Errorf("policy has %d strata, maximum is %d", len(p.Strata), maxStrata))
	}

	for i, stratum := range p.Strata {
		if _, err := ParseSymmetricAlgorithm(string(stratum.DataAlgorithm)); err != nil {
			problems = append(problems, fmt.Errorf("stratum %d: %w", i, err))
		}
		if len(stratum.KeyLayers) == 0 {
			problems = append(problems, fmt.Errorf("stratum %d: no key-encryption layers", i))
		}
		for j, layer := range stratum.KeyLayers {
			if _, err := escrow.ParseWrapAlgorithm(string(layer.Algorithm)); err != nil {
				problems = append(problems, fmt.Errorf("stratum %d, key layer %d: %w", i, j, err))
			}
			if layer.Escrow.IsZero() {
				problems = append(problems, fmt.Errorf("stratum %d, key layer %d: escrow reference is unset", i, j))
			}
		}
		for j, spec := range stratum.Signatures {
			if _, err := escrow.ParseSignatureAlgorithm(string(spec.Algorithm)); err != nil {
				problems = append(problems, fmt.Errorf("stratum %d, signature %d: %w", i, j, err))
			}
			if spec.Escrow.IsZero() {
				problems = append(problems, fmt.Errorf("stratum %d, signature %d: escrow reference is unset", i, j))
			}
		}
	}

	return errors.Join(problems...)
}

// wrapKeyType maps a wrap algorithm to the key type that serves it.
func wrapKeyType(algorithm escrow.WrapAlgorithm) keystore.KeyType {
	switch algorithm {
	case escrow.WrapRSAOAEP:
		return keystore.KeyTypeRSA
	case escrow.WrapAgeX25519:
		return keystore.KeyTypeAgeX25519
	default:
		return ""
	}
}

// signatureKeyType maps a signature algorithm to the key type that
// serves it.
func signatureKeyType(algorithm escrow.SignatureAlgorithm) keystore.KeyType {
	switch algorithm {
	case escrow.SignRSAPSS:
		return keystore.KeyTypeRSA
	case escrow.SignEd25519:
		return keystore.KeyTypeEd25519
	default:
		return ""
	}
}
