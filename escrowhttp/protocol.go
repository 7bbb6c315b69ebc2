// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrowhttp

import (
	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

// Endpoint paths. The adapter exposes exactly the three-operation
// escrow contract, nothing more.
const (
	publicKeyPath = "/v1/public-key"
	signPath      = "/v1/sign"
	decryptPath   = "/v1/decrypt"
)

// Error codes carried in error response bodies. The client maps them
// back to the escrow package's sentinel errors, so errors.Is works
// identically against a local or a remote escrow.
const (
	codeUnsupportedAlgorithm = "unsupported_algorithm"
	codeDecryptionRefused    = "decryption_refused"
	codeSignatureRefused     = "signature_refused"
	codeMalformedCiphertext  = "malformed_ciphertext"
	codeInternal             = "internal"
)

// errorBody is the JSON error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Request and response bodies. Byte slices traverse the wire as
// base64 strings per encoding/json.

type publicKeyRequest struct {
	KeychainID uuid.UUID        `json:"keychain_id"`
	KeyType    keystore.KeyType `json:"key_type"`
}

type publicKeyResponse struct {
	PublicKey []byte `json:"public_key"`
}

type signRequest struct {
	KeychainID uuid.UUID                 `json:"keychain_id"`
	KeyType    keystore.KeyType          `json:"key_type"`
	Algorithm  escrow.SignatureAlgorithm `json:"algorithm"`
	Message    []byte                    `json:"message"`
}

type signResponse struct {
	Signature escrow.Signature `json:"signature"`
}

type decryptRequest struct {
	KeychainID uuid.UUID            `json:"keychain_id"`
	KeyType    keystore.KeyType     `json:"key_type"`
	Algorithm  escrow.WrapAlgorithm `json:"algorithm"`
	Ciphertext []byte               `json:"ciphertext"`
}

type decryptResponse struct {
	Plaintext []byte `json:"plaintext"`
}
