// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/strongroom-foundation/strongroom/cmd/strongroom/cli"
)

type inspectParams struct {
	configPath string
	keychain   string
	outputJSON bool
}

// InspectCommand returns the "inspect" command.
func InspectCommand() *cli.Command {
	var params inspectParams

	return &cli.Command{
		Name:    "inspect",
		Summary: "Show a container's structure without decrypting",
		Description: `Print a container's metadata: keychain, creation time, payload
placement, and the per-stratum algorithms, key-encryption layers,
and signature counts. No keys are touched and nothing is decrypted.`,
		Usage: "strongroom inspect <name-or-file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flagSet.StringVar(&params.configPath, "config", "", "configuration file path")
			flagSet.StringVar(&params.keychain, "keychain", "", "keychain UUID for store lookup")
			flagSet.BoolVar(&params.outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one container argument")
			}
			return runInspect(args[0], params)
		},
	}
}

// containerView is the JSON shape of an inspected container.
type containerView struct {
	FormatVersion int           `json:"format_version"`
	Keychain      string        `json:"keychain"`
	CreatedAt     time.Time     `json:"created_at"`
	PayloadBytes  int           `json:"payload_bytes,omitempty"`
	PayloadRef    string        `json:"payload_ref,omitempty"`
	PayloadDigest string        `json:"payload_digest"`
	Strata        []stratumView `json:"strata"`
}

type stratumView struct {
	DataAlgorithm string   `json:"data_algorithm"`
	KeyLayers     []string `json:"key_layers"`
	Signatures    []string `json:"signatures"`
}

func runInspect(arg string, params inspectParams) error {
	cfg, err := cli.LoadConfig(params.configPath)
	if err != nil {
		return err
	}

	logger := cli.NewCommandLogger().With("command", "inspect")

	containers, err := cli.OpenContainers(cfg, logger)
	if err != nil {
		return err
	}
	container, err := resolveContainer(containers, params.keychain, arg)
	if err != nil {
		return err
	}

	view := containerView{
		FormatVersion: container.FormatVersion,
		Keychain:      container.KeychainID.String(),
		CreatedAt:     container.CreatedAt,
		PayloadBytes:  len(container.Payload),
		PayloadRef:    container.PayloadRef,
		PayloadDigest: hex.EncodeToString(container.PayloadDigest),
	}
	for _, stratum := range container.Strata {
		sv := stratumView{
			DataAlgorithm: string(stratum.DataAlgorithm),
			KeyLayers:     make([]string, 0, len(stratum.KeyLayers)),
			Signatures:    make([]string, 0, len(stratum.Signatures)),
		}
		for _, layer := range stratum.KeyLayers {
			sv.KeyLayers = append(sv.KeyLayers, fmt.Sprintf("%s@%s", layer.Algorithm, layer.Escrow))
		}
		for _, signature := range stratum.Signatures {
			sv.Signatures = append(sv.Signatures, string(signature.Algorithm))
		}
		view.Strata = append(view.Strata, sv)
	}

	if params.outputJSON {
		return cli.WriteJSON(view)
	}

	fmt.Printf("format version: %d\n", view.FormatVersion)
	fmt.Printf("keychain:       %s\n", view.Keychain)
	fmt.Printf("created:        %s\n", view.CreatedAt.Format(time.RFC3339))
	if container.Inline() {
		fmt.Printf("payload:        inline, %d bytes\n", view.PayloadBytes)
	} else {
		fmt.Printf("payload:        offloaded to %s\n", view.PayloadRef)
	}
	fmt.Printf("digest:         %s\n", view.PayloadDigest)
	for i, sv := range view.Strata {
		fmt.Printf("stratum %d:      %s\n", i, sv.DataAlgorithm)
		for _, layer := range sv.KeyLayers {
			fmt.Printf("  key layer:    %s\n", layer)
		}
		for _, signature := range sv.Signatures {
			fmt.Printf("  signature:    %s\n", signature)
		}
	}
	return nil
}
