// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package media

import (
	"fmt"
	"runtime"

	"github.com/strongroom-foundation/strongroom/lib/authmedia"
)

func newEnumerator() (authmedia.Enumerator, error) {
	return nil, fmt.Errorf("media detection is not supported on %s", runtime.GOOS)
}
