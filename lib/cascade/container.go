// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/strongroom-foundation/strongroom/lib/codec"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
)

// ContainerFormatVersion is the version recorded in every container
// document. Version 1 is the initial format.
const ContainerFormatVersion = 1

// payloadDigestKey is the BLAKE3 keyed-hash domain for container
// payload digests: the ASCII domain name zero-padded to 32 bytes.
// A fixed protocol constant.
var payloadDigestKey = [32]byte{
	's', 't', 'r', 'o', 'n', 'g', 'r', 'o', 'o', 'm', '.', 'c', 'o', 'n', 't', 'a',
	'i', 'n', 'e', 'r', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0,
}

// StratumRecord is the per-stratum metadata a decryptor needs to
// undo one layer of the cascade: the policy that produced it, the
// escrow-wrapped symmetric key, and any signatures collected over
// the stratum's pre-encryption plaintext.
type StratumRecord struct {
	DataAlgorithm SymmetricAlgorithm   `cbor:"data_algorithm"`
	KeyLayers     []KeyEncryptionLayer `cbor:"key_layers"`
	WrappedKey    []byte               `cbor:"wrapped_key"`
	Signatures    []escrow.Signature   `cbor:"signatures,omitempty"`
}

// Container is the immutable encrypted artifact produced by one
// Encrypt call. It is self-describing: Strata carries everything a
// decryptor needs beyond escrow cooperation. Decrypting a container
// never mutates it.
//
// The payload is either inline (Payload set, PayloadRef empty) or
// offloaded (PayloadRef set, Payload nil) with the outermost
// ciphertext stored separately. PayloadDigest is the keyed BLAKE3
// digest of the outermost ciphertext in both cases, so a rehydrated
// payload is checked before any key recovery work.
type Container struct {
	FormatVersion int             `cbor:"format_version"`
	KeychainID    uuid.UUID       `cbor:"keychain_id"`
	CreatedAt     time.Time       `cbor:"created_at"`
	Strata        []StratumRecord `cbor:"strata"`
	Payload       []byte          `cbor:"payload,omitempty"`
	PayloadRef    string          `cbor:"payload_ref,omitempty"`
	PayloadDigest []byte          `cbor:"payload_digest"`
}

// Inline reports whether the container carries its payload inline.
func (c *Container) Inline() bool {
	return c.PayloadRef == ""
}

// Offload strips the inline payload, returning it alongside a copy of
// the container that carries only ref. The receiver is not mutated.
func (c *Container) Offload(ref string) (*Container, []byte, error) {
	if !c.Inline() {
		return nil, nil, fmt.Errorf("cascade: container payload is already offloaded to %q", c.PayloadRef)
	}
	if ref == "" {
		return nil, nil, fmt.Errorf("cascade: offload reference is empty")
	}
	stripped := *c
	stripped.Payload = nil
	stripped.PayloadRef = ref
	return &stripped, c.Payload, nil
}

// WithPayload reattaches an offloaded payload, returning a copy of
// the container with the ciphertext inline. The payload is checked
// against PayloadDigest; a mismatch is tamper evidence.
func (c *Container) WithPayload(payload []byte) (*Container, error) {
	if c.Inline() {
		return nil, fmt.Errorf("cascade: container payload is already inline")
	}
	if !bytes.Equal(PayloadDigest(payload), c.PayloadDigest) {
		return nil, fmt.Errorf("%w: offloaded payload digest mismatch for ref %q",
			ErrCiphertextIntegrityFailed, c.PayloadRef)
	}
	rehydrated := *c
	rehydrated.Payload = payload
	rehydrated.PayloadRef = ""
	return &rehydrated, nil
}

// Marshal encodes the container as deterministic CBOR.
func (c *Container) Marshal() ([]byte, error) {
	data, err := codec.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("cascade: encoding container: %w", err)
	}
	return data, nil
}

// UnmarshalContainer decodes a container document and rejects
// unsupported format versions.
func UnmarshalContainer(data []byte) (*Container, error) {
	var container Container
	if err := codec.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("cascade: decoding container: %w", err)
	}
	if container.FormatVersion != ContainerFormatVersion {
		return nil, fmt.Errorf("cascade: container format version %d is not supported (expected %d)",
			container.FormatVersion, ContainerFormatVersion)
	}
	return &container, nil
}

// PayloadDigest computes the keyed BLAKE3 digest of a container
// payload (the outermost stratum's ciphertext).
func PayloadDigest(payload []byte) []byte {
	hasher, err := blake3.NewKeyed(payloadDigestKey[:])
	if err != nil {
		panic("cascade: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	return hasher.Sum(nil)
}
