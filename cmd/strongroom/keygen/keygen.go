// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package keygen implements "strongroom keygen": provisioning escrow
// keypairs into the configured keystore ahead of first use.
package keygen

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/strongroom-foundation/strongroom/cmd/strongroom/cli"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

type keygenParams struct {
	configPath string
	keychain   string
	keyTypes   []string
}

// Command returns the "keygen" command.
func Command() *cli.Command {
	var params keygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Provision escrow keypairs for a keychain",
		Description: `Generate escrow keypairs and register them in the configured keystore.

Keypairs are normally provisioned lazily on first use; keygen generates
them ahead of time so the public keys exist before any container is
encrypted. The keystore is write-once: running keygen twice for the
same keychain reuses the existing keypairs.

Without --keychain, a fresh keychain UUID is generated and printed.`,
		Usage: "strongroom keygen [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVar(&params.configPath, "config", "", "configuration file path")
			flagSet.StringVar(&params.keychain, "keychain", "", "keychain UUID (default: generate a new one)")
			flagSet.StringSliceVar(&params.keyTypes, "type", []string{"rsa", "ed25519"},
				"key types to provision (rsa, ed25519, age-x25519)")
			return flagSet
		},
		Run: func(args []string) error {
			return runKeygen(params)
		},
		Examples: []cli.Example{
			{
				Description: "Provision RSA and Ed25519 keypairs under a new keychain",
				Command:     "strongroom keygen",
			},
			{
				Description: "Add an age keypair to an existing keychain",
				Command:     "strongroom keygen --keychain 0190f0a4-... --type age-x25519",
			},
		},
	}
}

func runKeygen(params keygenParams) error {
	keychainID := uuid.New()
	if params.keychain != "" {
		parsed, err := uuid.Parse(params.keychain)
		if err != nil {
			return fmt.Errorf("invalid keychain UUID %q: %w", params.keychain, err)
		}
		keychainID = parsed
	}

	keyTypes := make([]keystore.KeyType, 0, len(params.keyTypes))
	for _, name := range params.keyTypes {
		keyType, err := keystore.ParseKeyType(name)
		if err != nil {
			return err
		}
		keyTypes = append(keyTypes, keyType)
	}
	if len(keyTypes) == 0 {
		return fmt.Errorf("no key types requested")
	}

	cfg, err := cli.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "keygen", "keychain", keychainID)

	store, closeStore, err := cli.OpenKeystore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	service, err := escrow.NewLocalService(escrow.Config{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	fmt.Printf("keychain: %s\n", keychainID)
	for _, keyType := range keyTypes {
		// PublicKey provisions the keypair when the cell is empty.
		publicKey, err := service.PublicKey(ctx, keychainID, keyType)
		if err != nil {
			return fmt.Errorf("provisioning %s keypair: %w", keyType, err)
		}
		fmt.Printf("\n%s public key:\n%s", keyType, formatPublicKey(publicKey))
	}

	return nil
}

// formatPublicKey ensures the printed key ends with exactly one
// newline. PEM keys already carry one; age recipients do not.
func formatPublicKey(publicKey []byte) string {
	s := string(publicKey)
	if len(s) == 0 || s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
