// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package policydef parses encryption policy documents.
//
// Policies are authored on disk as JSONC files (JSON extended with //
// comments and trailing commas). A document enumerates the cascade's
// strata in order, each with its data algorithm, its key-encryption
// layer chain, and its signature specs; escrow fields hold the
// placeholder "local" or a remote escrow URL:
//
//	{
//	  // two-layer vault policy
//	  "keychain_id": "0b0df896-4d2e-4a26-9d87-12f07f1965bf",
//	  "strata": [
//	    {
//	      "data_algorithm": "aes256-gcm",
//	      "key_layers": [{"algorithm": "rsa-oaep", "escrow": "local"}],
//	      "signatures": [{"algorithm": "rsa-pss", "escrow": "local"}],
//	    },
//	    {
//	      "data_algorithm": "xchacha20-poly1305",
//	      "key_layers": [{"algorithm": "age-x25519", "escrow": "https://escrow.example.com"}],
//	    },
//	  ],
//	}
//
// Parse rejects unknown algorithm names and malformed escrow
// references at load time, so a bad document never reaches the
// engine.
package policydef

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/strongroom-foundation/strongroom/lib/cascade"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
)

// Document is a parsed policy file: the cascade policy plus an
// optional keychain binding.
type Document struct {
	// KeychainID is the keychain the policy applies to. Nil UUID when
	// the document leaves the keychain to the caller.
	KeychainID uuid.UUID

	// Policy is the validated cascade policy.
	Policy cascade.Policy
}

// Wire types for the JSONC document. Escrow references and algorithm
// names arrive as plain strings and are validated during conversion.
type (
	documentWire struct {
		KeychainID string        `json:"keychain_id"`
		Strata     []stratumWire `json:"strata"`
	}

	stratumWire struct {
		DataAlgorithm string          `json:"data_algorithm"`
		KeyLayers     []keyLayerWire  `json:"key_layers"`
		Signatures    []signatureWire `json:"signatures"`
	}

	keyLayerWire struct {
		Algorithm string `json:"algorithm"`
		Escrow    string `json:"escrow"`
	}

	signatureWire struct {
		Algorithm string `json:"algorithm"`
		Escrow    string `json:"escrow"`
	}
)

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals and validates the policy document.
func Parse(data []byte) (*Document, error) {
	stripped := jsonc.ToJSON(data)

	var wire documentWire
	if err := json.Unmarshal(stripped, &wire); err != nil {
		return nil, fmt.Errorf("policydef: parsing document: %w", err)
	}

	document := &Document{}
	if wire.KeychainID != "" {
		parsed, err := uuid.Parse(wire.KeychainID)
		if err != nil {
			return nil, fmt.Errorf("policydef: parsing keychain_id: %w", err)
		}
		document.KeychainID = parsed
	}

	for i, stratum := range wire.Strata {
		converted, err := convertStratum(stratum)
		if err != nil {
			return nil, fmt.Errorf("policydef: stratum %d: %w", i, err)
		}
		document.Policy.Strata = append(document.Policy.Strata, converted)
	}

	if err := document.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("policydef: invalid policy: %w", err)
	}
	return document, nil
}

// ReadFile reads and parses a JSONC policy file.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policydef: reading %s: %w", path, err)
	}
	document, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return document, nil
}

func convertStratum(wire stratumWire) (cascade.Stratum, error) {
	dataAlgorithm, err := cascade.ParseSymmetricAlgorithm(wire.DataAlgorithm)
	if err != nil {
		return cascade.Stratum{}, err
	}

	stratum := cascade.Stratum{DataAlgorithm: dataAlgorithm}
	for j, layer := range wire.KeyLayers {
		wrapAlgorithm, err := escrow.ParseWrapAlgorithm(layer.Algorithm)
		if err != nil {
			return cascade.Stratum{}, fmt.Errorf("key layer %d: %w", j, err)
		}
		ref, err := cascade.ParseEscrowRef(layer.Escrow)
		if err != nil {
			return cascade.Stratum{}, fmt.Errorf("key layer %d: %w", j, err)
		}
		stratum.KeyLayers = append(stratum.KeyLayers, cascade.KeyEncryptionLayer{
			Algorithm: wrapAlgorithm,
			Escrow:    ref,
		})
	}
	for j, signature := range wire.Signatures {
		signatureAlgorithm, err := escrow.ParseSignatureAlgorithm(signature.Algorithm)
		if err != nil {
			return cascade.Stratum{}, fmt.Errorf("signature %d: %w", j, err)
		}
		ref, err := cascade.ParseEscrowRef(signature.Escrow)
		if err != nil {
			return cascade.Stratum{}, fmt.Errorf("signature %d: %w", j, err)
		}
		stratum.Signatures = append(stratum.Signatures, cascade.SignatureSpec{
			Algorithm: signatureAlgorithm,
			Escrow:    ref,
		})
	}
	return stratum, nil
}
