// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package containerstore persists encrypted containers on the
// filesystem.
//
// Containers are CBOR documents stored one file per container under a
// per-keychain subdirectory, with names that sort by creation time.
// Large payloads can be offloaded to sibling files, leaving only a
// reference (and the payload digest) in the container document; Get
// reattaches and digest-checks the payload transparently, so callers
// always receive a decryptable container.
package containerstore
