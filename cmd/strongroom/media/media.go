// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package media implements "strongroom media": detecting and claiming
// removable authentication media.
package media

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/strongroom-foundation/strongroom/cmd/strongroom/cli"
	"github.com/strongroom-foundation/strongroom/lib/authmedia"
)

// Command returns the "media" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "media",
		Summary: "Authentication media operations",
		Description: `Detect and claim removable authentication media.

An authentication medium is a removable storage device (USB stick,
SD card) carrying a strongroom identity document and a keystore.
Keys held on a medium participate in escrow like any other local
keys: the medium must be physically present for decryption.`,
		Subcommands: []*cli.Command{
			listCommand(),
			initCommand(),
		},
	}
}

type listParams struct {
	outputJSON bool
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List removable media",
		Description: `List removable storage devices with mounted filesystems.

Exits 1 when no media are attached, so scripts can poll for insertion.`,
		Usage: "strongroom media list [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.BoolVar(&params.outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			return runList(params)
		},
	}
}

// mediumView is the JSON shape of one listed medium.
type mediumView struct {
	Device      string `json:"device"`
	MountPath   string `json:"mount_path"`
	Label       string `json:"label,omitempty"`
	Filesystem  string `json:"filesystem"`
	SizeBytes   int64  `json:"size_bytes"`
	Initialized bool   `json:"initialized"`
	User        string `json:"user,omitempty"`
	DeviceUID   string `json:"device_uid,omitempty"`
}

func runList(params listParams) error {
	enumerator, err := newEnumerator()
	if err != nil {
		return err
	}

	media, err := enumerator.List(context.Background())
	if err != nil {
		return err
	}

	views := make([]mediumView, 0, len(media))
	for _, medium := range media {
		view := mediumView{
			Device:      medium.Device,
			MountPath:   medium.MountPath,
			Label:       medium.Label,
			Filesystem:  medium.Filesystem,
			SizeBytes:   medium.SizeBytes,
			Initialized: medium.IsInitialized,
		}
		if medium.Metadata != nil {
			view.User = medium.Metadata.User
			view.DeviceUID = medium.Metadata.DeviceUID.String()
		}
		views = append(views, view)
	}

	if params.outputJSON {
		if err := cli.WriteJSON(views); err != nil {
			return err
		}
	} else {
		if len(views) == 0 {
			fmt.Fprintln(os.Stderr, "no removable media attached")
		} else {
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "DEVICE\tMOUNT\tFS\tSIZE\tSTATE\tUSER")
			for _, view := range views {
				state := "blank"
				if view.Initialized {
					state = "initialized"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					view.Device, view.MountPath, view.Filesystem,
					formatSize(view.SizeBytes), state, view.User)
			}
			tw.Flush()
		}
	}

	if len(views) == 0 {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

type initParams struct {
	user string
}

func initCommand() *cli.Command {
	var params initParams

	return &cli.Command{
		Name:    "init",
		Summary: "Claim a removable medium for a user",
		Description: `Initialize a removable medium as an authentication medium.

Creates the strongroom directory tree on the medium and writes an
identity document with a fresh device UID. Refuses media that are
already initialized: re-initializing would orphan keys stored on
the medium.`,
		Usage: "strongroom media init <mount-path> --user <name>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("init", pflag.ContinueOnError)
			flagSet.StringVar(&params.user, "user", "", "human owner of the medium (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one mount path argument")
			}
			return runInit(args[0], params)
		},
		Examples: []cli.Example{
			{
				Description: "Claim the medium mounted at /media/usb0",
				Command:     "strongroom media init /media/usb0 --user alice",
			},
		},
	}
}

func runInit(mountPath string, params initParams) error {
	if params.user == "" {
		return fmt.Errorf("--user is required")
	}

	enumerator, err := newEnumerator()
	if err != nil {
		return err
	}
	media, err := enumerator.List(context.Background())
	if err != nil {
		return err
	}

	var target *authmedia.Medium
	for i := range media {
		if media[i].MountPath == mountPath {
			target = &media[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no removable medium mounted at %s", mountPath)
	}

	metadata, err := authmedia.Initialize(*target, params.user)
	if err != nil {
		return err
	}

	fmt.Printf("initialized %s for %s\n", mountPath, metadata.User)
	fmt.Printf("device uid: %s\n", metadata.DeviceUID)
	fmt.Printf("keystore: %s\n", authmedia.KeystorePath(*target))
	return nil
}

// formatSize renders a byte count with a binary unit suffix.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
