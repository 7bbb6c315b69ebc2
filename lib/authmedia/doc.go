// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package authmedia detects and initializes removable authentication
// media — the USB keys that carry a user's escrow keystore.
//
// Detection lives behind the [Enumerator] capability interface so
// platform specifics never reach core code; [SysfsEnumerator] is the
// Linux adapter, reading /sys/block and the mount table. Each
// detected medium reports its mount path, device node, filesystem,
// size, and whether it has been initialized.
//
// [Initialize] claims a medium for a user: it writes an identity
// document (owner plus a fresh device UID) and creates the fixed
// keystore directory. [KeystorePath] returns that directory, which is
// handed to keystore.NewFilesystemStore to root the medium-backed
// keystore.
package authmedia
