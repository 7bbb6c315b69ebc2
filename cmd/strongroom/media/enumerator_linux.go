// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package media

import "github.com/strongroom-foundation/strongroom/lib/authmedia"

func newEnumerator() (authmedia.Enumerator, error) {
	return authmedia.NewSysfsEnumerator(), nil
}
