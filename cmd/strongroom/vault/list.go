// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/strongroom-foundation/strongroom/cmd/strongroom/cli"
)

type listParams struct {
	configPath string
	keychain   string
	outputJSON bool
}

// ListCommand returns the "list" command.
func ListCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List stored containers for a keychain",
		Usage:   "strongroom list --keychain <uuid> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.StringVar(&params.configPath, "config", "", "configuration file path")
			flagSet.StringVar(&params.keychain, "keychain", "", "keychain UUID (required)")
			flagSet.BoolVar(&params.outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			return runContainerList(params)
		},
	}
}

func runContainerList(params listParams) error {
	if params.keychain == "" {
		return fmt.Errorf("--keychain is required")
	}
	keychainID, err := uuid.Parse(params.keychain)
	if err != nil {
		return fmt.Errorf("invalid keychain UUID %q: %w", params.keychain, err)
	}

	cfg, err := cli.LoadConfig(params.configPath)
	if err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "list", "keychain", keychainID)

	containers, err := cli.OpenContainers(cfg, logger)
	if err != nil {
		return err
	}

	names, err := containers.List(keychainID)
	if err != nil {
		return err
	}

	if params.outputJSON {
		return cli.WriteJSON(names)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
