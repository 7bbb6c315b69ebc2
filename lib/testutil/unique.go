// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now() when
// tests need unique identifiers for record sources, archive entry
// names, or keystore labels that must be distinguishable in output.
//
//	source := testutil.UniqueID("camera")  // "camera-1", "camera-2", ...
//	entry := testutil.UniqueID("segment")  // "segment-3", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
