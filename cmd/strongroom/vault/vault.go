// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault implements the container commands of the strongroom
// CLI: encrypt, decrypt, inspect, and list.
package vault

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/cascade"
	"github.com/strongroom-foundation/strongroom/lib/containerstore"
)

// resolveContainer loads a container either from a file path or from
// the container store by name. A positional argument naming an
// existing file wins; otherwise it is treated as a store name, which
// requires the keychain to locate the right subdirectory.
func resolveContainer(store *containerstore.Store, keychain string, arg string) (*cascade.Container, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, err
		}
		return cascade.UnmarshalContainer(data)
	}

	if keychain == "" {
		return nil, fmt.Errorf("%q is not a file; pass --keychain to look it up in the container store", arg)
	}
	keychainID, err := uuid.Parse(keychain)
	if err != nil {
		return nil, fmt.Errorf("invalid keychain UUID %q: %w", keychain, err)
	}
	return store.Get(keychainID, arg)
}

// writeOutput writes data to path, or to stdout when path is "-".
func writeOutput(path string, data []byte) error {
	if path == "-" || path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0600)
}
