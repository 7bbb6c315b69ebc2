// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/strongroom-foundation/strongroom/cmd/strongroom/cli"
)

type decryptParams struct {
	configPath string
	keychain   string
	outPath    string
}

// DecryptCommand returns the "decrypt" command.
func DecryptCommand() *cli.Command {
	var params decryptParams

	return &cli.Command{
		Name:    "decrypt",
		Summary: "Decrypt a container back to its payload",
		Description: `Decrypt a container through its strata in reverse order.

The argument is either a container file path or the name of a
container in the configured store (in which case --keychain selects
the keychain). Every key-encryption layer must be unwrappable with
the escrows reachable from this host; a single missing holder fails
the whole recovery.

The recovered payload is written to --out, or to stdout.`,
		Usage: "strongroom decrypt <name-or-file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("decrypt", pflag.ContinueOnError)
			flagSet.StringVar(&params.configPath, "config", "", "configuration file path")
			flagSet.StringVar(&params.keychain, "keychain", "", "keychain UUID for store lookup")
			flagSet.StringVar(&params.outPath, "out", "-", "output path ('-' for stdout)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one container argument")
			}
			return runDecrypt(args[0], params)
		},
		Examples: []cli.Example{
			{
				Description: "Decrypt a stored container to a file",
				Command:     "strongroom decrypt 20260829T120000Z-a1b2c3d4 --keychain 0190f0a4-... --out photos.tar",
			},
			{
				Description: "Decrypt a container file to stdout",
				Command:     "strongroom decrypt notes.crypt > notes.tar",
			},
		},
	}
}

func runDecrypt(arg string, params decryptParams) error {
	cfg, err := cli.LoadConfig(params.configPath)
	if err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "decrypt")

	containers, err := cli.OpenContainers(cfg, logger)
	if err != nil {
		return err
	}
	container, err := resolveContainer(containers, params.keychain, arg)
	if err != nil {
		return err
	}

	store, closeStore, err := cli.OpenKeystore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := cli.NewEngine(cfg, store, logger)
	if err != nil {
		return err
	}

	plaintext, err := engine.Decrypt(context.Background(), container)
	if err != nil {
		return err
	}

	return writeOutput(params.outPath, plaintext)
}
