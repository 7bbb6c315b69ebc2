// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the strongroom CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in the commands
// package and dispatched via [Command.Execute], which handles flag
// parsing, subcommand routing, and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
//
// The package also provides the shared runtime wiring commands use to
// reach the vault: [LoadConfig], [OpenKeystore], [NewResolver],
// [NewEngine], and [OpenContainers] turn a validated configuration into
// the concrete keystore, escrow, and container-store instances a
// command operates on. [PromptPassphrase] reads passphrases from the
// terminal with echo disabled; passphrases never appear in argv.
package cli
