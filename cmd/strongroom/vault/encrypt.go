// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/strongroom-foundation/strongroom/cmd/strongroom/cli"
	"github.com/strongroom-foundation/strongroom/lib/policydef"
)

type encryptParams struct {
	configPath string
	policyPath string
	keychain   string
	outPath    string
}

// EncryptCommand returns the "encrypt" command.
func EncryptCommand() *cli.Command {
	var params encryptParams

	return &cli.Command{
		Name:    "encrypt",
		Summary: "Encrypt a payload under a policy",
		Description: `Encrypt a file through the policy's cascade of strata.

The policy document names the strata, key-encryption layers, escrow
holders, and signatures. Without --out, the resulting container is
persisted in the configured container store and its name is printed;
with --out, the container document is written to the given path
instead.

The keychain UUID comes from the policy document's "keychain_id"
field, or from --keychain, which takes precedence.`,
		Usage: "strongroom encrypt <input-file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("encrypt", pflag.ContinueOnError)
			flagSet.StringVar(&params.configPath, "config", "", "configuration file path")
			flagSet.StringVar(&params.policyPath, "policy", "", "policy document path (default: configured policy)")
			flagSet.StringVar(&params.keychain, "keychain", "", "keychain UUID (overrides the policy document)")
			flagSet.StringVar(&params.outPath, "out", "", "write the container document here instead of the store")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one input file argument")
			}
			return runEncrypt(args[0], params)
		},
		Examples: []cli.Example{
			{
				Description: "Encrypt under the configured default policy",
				Command:     "strongroom encrypt photos.tar",
			},
			{
				Description: "Encrypt under an explicit policy to a file",
				Command:     "strongroom encrypt field-notes.tar --policy two-party.jsonc --out notes.crypt",
			},
		},
	}
}

func runEncrypt(inputPath string, params encryptParams) error {
	cfg, err := cli.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	policyPath := params.policyPath
	if policyPath == "" {
		policyPath = cfg.PolicyPath()
	}
	document, err := policydef.ReadFile(policyPath)
	if err != nil {
		return err
	}

	keychainID := document.KeychainID
	if params.keychain != "" {
		keychainID, err = uuid.Parse(params.keychain)
		if err != nil {
			return fmt.Errorf("invalid keychain UUID %q: %w", params.keychain, err)
		}
	}
	if keychainID == uuid.Nil {
		return fmt.Errorf("policy document %s has no keychain; pass --keychain", policyPath)
	}

	plaintext, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "encrypt", "keychain", keychainID)

	store, closeStore, err := cli.OpenKeystore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := cli.NewEngine(cfg, store, logger)
	if err != nil {
		return err
	}

	container, err := engine.Encrypt(context.Background(), keychainID, document.Policy, plaintext)
	if err != nil {
		return err
	}

	if params.outPath != "" {
		data, err := container.Marshal()
		if err != nil {
			return err
		}
		if err := os.WriteFile(params.outPath, data, 0600); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", params.outPath)
		return nil
	}

	containers, err := cli.OpenContainers(cfg, logger)
	if err != nil {
		return err
	}
	name, err := containers.Put(container)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", name)
	return nil
}
