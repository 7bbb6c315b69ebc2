// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "strongroom",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(args []string) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "media",
				Run: func(args []string) error {
					called = "media"
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"media"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "media" {
		t.Errorf("dispatched to %q, want %q", called, "media")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "strongroom",
		Subcommands: []*Command{
			{
				Name: "media",
				Subcommands: []*Command{
					{
						Name: "init",
						Run: func(args []string) error {
							called = "media init"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"media", "init", "extra-arg"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "media init" {
		t.Errorf("dispatched to %q, want %q", called, "media init")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "extra-arg" {
		t.Errorf("args = %v, want [extra-arg]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var outPath string
	var target string

	command := &Command{
		Name: "decrypt",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("decrypt", pflag.ContinueOnError)
			flagSet.StringVar(&outPath, "out", "-", "output path")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				target = args[0]
			}
			return nil
		},
	}

	if err := command.Execute([]string{"--out", "/tmp/plain.tar", "20260829T120000Z-a1b2c3d4"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if outPath != "/tmp/plain.tar" {
		t.Errorf("outPath = %q, want %q", outPath, "/tmp/plain.tar")
	}
	if target != "20260829T120000Z-a1b2c3d4" {
		t.Errorf("target = %q, want %q", target, "20260829T120000Z-a1b2c3d4")
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "encrypt",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("encrypt", pflag.ContinueOnError)
			flagSet.Bool("store", false, "persist the container")
			flagSet.String("policy", "", "policy document path")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--polcy"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "did you mean --policy") {
		t.Errorf("error = %q, want suggestion for '--policy'", errStr)
	}
	// Suggestion should be on the same line as the error, not buried.
	if !strings.Contains(errStr, "polcy") {
		t.Errorf("error = %q, should mention the bad flag", errStr)
	}
	// Should include a pointer to --help.
	if !strings.Contains(errStr, "--help") {
		t.Errorf("error = %q, should point to --help", errStr)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "encrypt",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("encrypt", pflag.ContinueOnError)
			flagSet.Bool("store", false, "persist the container")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
	if !strings.Contains(err.Error(), "--help") {
		t.Errorf("error = %q, should point to --help", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "strongroom",
		Subcommands: []*Command{
			{Name: "encrypt"},
			{Name: "media"},
			{Name: "version"},
		},
	}

	err := root.Execute([]string{"meda"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), "did you mean \"media\"") {
		t.Errorf("error = %q, want suggestion for 'media'", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandNoSuggestion(t *testing.T) {
	root := &Command{
		Name: "strongroom",
		Subcommands: []*Command{
			{Name: "encrypt"},
			{Name: "media"},
		},
	}

	err := root.Execute([]string{"zzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not contain suggestion for distant input", err.Error())
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			root := &Command{
				Name:    "strongroom",
				Summary: "Tamper-evident encrypted containers",
				Subcommands: []*Command{
					{Name: "media", Summary: "Authentication media operations"},
				},
			}

			err := root.Execute([]string{helpArg})
			if err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
		})
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	root := &Command{
		Name: "strongroom",
		Subcommands: []*Command{
			{Name: "media", Summary: "Authentication media operations"},
		},
	}

	err := root.Execute([]string{})
	if err == nil {
		t.Fatal("Execute() = nil, want error for missing subcommand")
	}
	if !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %q, want 'subcommand required'", err.Error())
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "strongroom",
		Description: "Multi-party recoverable encrypted containers.",
		Subcommands: []*Command{
			{Name: "encrypt", Summary: "Encrypt a payload under a policy"},
			{Name: "media", Summary: "Authentication media operations"},
			{Name: "version", Summary: "Print version information"},
		},
		Examples: []Example{
			{
				Description: "Encrypt a file under the default policy",
				Command:     "strongroom encrypt photos.tar",
			},
			{
				Description: "Claim a removable medium for a user",
				Command:     "strongroom media init /media/usb0 --user alice",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	// Verify structural elements are present.
	for _, want := range []string{
		"Multi-party recoverable encrypted containers.",
		"Usage:",
		"strongroom <command> [flags]",
		"Commands:",
		"encrypt",
		"Encrypt a payload under a policy",
		"media",
		"Authentication media operations",
		"Examples:",
		"strongroom encrypt photos.tar",
		"strongroom media init",
		"Run 'strongroom <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_PrintHelp_WithFlags(t *testing.T) {
	command := &Command{
		Name:    "decrypt",
		Summary: "Decrypt a stored container",
		Usage:   "strongroom decrypt <name> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("decrypt", pflag.ContinueOnError)
			flagSet.String("out", "-", "output path")
			flagSet.String("keychain", "", "keychain UUID")
			return flagSet
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"strongroom decrypt <name> [flags]",
		"Flags:",
		"out",
		"keychain",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_FullName(t *testing.T) {
	root := &Command{Name: "strongroom"}
	media := &Command{Name: "media", parent: root}
	initCommand := &Command{Name: "init", parent: media}

	if got := root.fullName(); got != "strongroom" {
		t.Errorf("root.fullName() = %q, want %q", got, "strongroom")
	}
	if got := media.fullName(); got != "strongroom media" {
		t.Errorf("media.fullName() = %q, want %q", got, "strongroom media")
	}
	if got := initCommand.fullName(); got != "strongroom media init" {
		t.Errorf("initCommand.fullName() = %q, want %q", got, "strongroom media init")
	}
}
