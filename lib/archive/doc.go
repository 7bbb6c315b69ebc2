// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive serializes a batch of named, timestamped records
// into one byte blob for container encryption.
//
// The format is a fixed 8-byte magic, a length-prefixed CBOR index,
// and the entry data concatenated in index order. Each entry keeps
// its source name, file-extension tag, and covered time span, is
// compressed per entry (lz4, zstd, or raw — chosen from the extension
// unless overridden), and carries a keyed BLAKE3 checksum of its
// uncompressed bytes. The checksum is a consistency check for the
// pipeline between aggregation and encryption; tamper evidence for
// stored containers comes from the cascade's AEAD layers, not from
// here.
package archive
