// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete strongroom CLI command tree.
package commands

import (
	"fmt"

	"github.com/strongroom-foundation/strongroom/cmd/strongroom/cli"
	keygencmd "github.com/strongroom-foundation/strongroom/cmd/strongroom/keygen"
	mediacmd "github.com/strongroom-foundation/strongroom/cmd/strongroom/media"
	"github.com/strongroom-foundation/strongroom/cmd/strongroom/vault"
	"github.com/strongroom-foundation/strongroom/lib/version"
)

// Root builds and returns the complete strongroom CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "strongroom",
		Description: `Strongroom: tamper-evident, multi-party recoverable encrypted containers.

Encrypt payloads through a configurable cascade of encryption strata,
with per-stratum symmetric keys wrapped by chains of escrow holders.
Decryption requires every holder in every chain to cooperate.`,
		Subcommands: []*cli.Command{
			keygencmd.Command(),
			mediacmd.Command(),
			vault.EncryptCommand(),
			vault.DecryptCommand(),
			vault.InspectCommand(),
			vault.ListCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("strongroom %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Provision keypairs under a new keychain",
				Command:     "strongroom keygen",
			},
			{
				Description: "Encrypt a file under the configured default policy",
				Command:     "strongroom encrypt photos.tar",
			},
			{
				Description: "Decrypt a stored container",
				Command:     "strongroom decrypt 20260829T120000Z-a1b2c3d4 --keychain 0190f0a4-... --out photos.tar",
			},
			{
				Description: "Show a container's strata without decrypting",
				Command:     "strongroom inspect notes.crypt",
			},
			{
				Description: "List removable authentication media",
				Command:     "strongroom media list",
			},
			{
				Description: "Claim a removable medium for a user",
				Command:     "strongroom media init /media/usb0 --user alice",
			},
		},
	}
}
