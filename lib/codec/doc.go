// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Strongroom's standard CBOR encoding
// configuration.
//
// Strongroom uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the escrow HTTP API, policy
//     documents (JSONC), authentication media metadata, and CLI
//     output.
//   - CBOR for durable artifacts: container documents, archive
//     indexes, and keystore metadata. These are the bytes that get
//     signed, hashed, and carried on removable media, so encoding
//     must be deterministic.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Strongroom package encodes identically without
// duplicating configuration. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes.
//
// For buffer-oriented operations (container documents, indexes):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR. It will
//     never be marshaled to JSON or interact with CLI tooling.
//     Examples: archive index records, container stratum records.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor`
//     tags are absent, so a single `json` tag controls field naming
//     and omitempty for both formats. Examples: escrow HTTP API
//     types, types used in CLI --json output.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract — doubling up is noise that obscures
// whether a type participates in JSON serialization.
package codec
