// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/strongroom-foundation/strongroom/escrowhttp"
	"github.com/strongroom-foundation/strongroom/lib/cascade"
	"github.com/strongroom-foundation/strongroom/lib/config"
	"github.com/strongroom-foundation/strongroom/lib/containerstore"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
	"github.com/strongroom-foundation/strongroom/lib/secret"
)

// LoadConfig loads and validates configuration. An explicit path (from
// a --config flag) takes precedence; otherwise the STRONGROOM_CONFIG
// environment variable is consulted.
func LoadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// OpenKeystore opens the configured key storage backend. The returned
// close function releases backend resources and must be called when
// the command finishes; for backends without resources it is a no-op.
func OpenKeystore(cfg *config.Config, logger *slog.Logger) (keystore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Keystore.Backend {
	case "memory":
		return keystore.NewMemoryStore(), noop, nil

	case "filesystem":
		var passphrase *secret.Buffer
		if cfg.Keystore.PassphraseFile != "" {
			var err error
			passphrase, err = secret.ReadFromPath(cfg.Keystore.PassphraseFile)
			if err != nil {
				return nil, nil, fmt.Errorf("reading passphrase file: %w", err)
			}
		}
		store, err := keystore.NewFilesystemStore(keystore.FilesystemConfig{
			Root:       cfg.Paths.Keystore,
			Passphrase: passphrase,
			Logger:     logger,
		})
		if err != nil {
			if passphrase != nil {
				passphrase.Close()
			}
			return nil, nil, err
		}
		closeStore := noop
		if passphrase != nil {
			closeStore = func() error {
				passphrase.Close()
				return nil
			}
		}
		return store, closeStore, nil

	case "sqlite":
		store, err := keystore.OpenSQLite(keystore.SQLiteConfig{
			Path:   filepath.Join(cfg.Paths.Keystore, "keystore.db"),
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown keystore backend %q", cfg.Keystore.Backend)
	}
}

// NewResolver builds the escrow resolver used by the cascade engine:
// a local escrow service over store, plus an HTTP dialer for remote
// references. Remote calls are bounded by the configured request
// timeout.
func NewResolver(cfg *config.Config, store keystore.Store, logger *slog.Logger) (*cascade.StaticResolver, error) {
	local, err := escrow.NewLocalService(escrow.Config{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeoutDuration()}
	dial := func(endpoint string) (escrow.Service, error) {
		return escrowhttp.NewClient(escrowhttp.ClientConfig{
			Endpoint:   endpoint,
			HTTPClient: httpClient,
		})
	}

	return cascade.NewStaticResolver(local, dial), nil
}

// NewEngine builds a cascade engine over the configured keystore and
// escrow resolver.
func NewEngine(cfg *config.Config, store keystore.Store, logger *slog.Logger) (*cascade.Engine, error) {
	resolver, err := NewResolver(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	return cascade.NewEngine(cascade.EngineConfig{
		Resolver: resolver,
		Logger:   logger,
	})
}

// OpenContainers opens the configured container store.
func OpenContainers(cfg *config.Config, logger *slog.Logger) (*containerstore.Store, error) {
	threshold := 0
	if cfg.Containers.OffloadThreshold > 0 {
		threshold = int(cfg.Containers.OffloadThreshold)
	}
	return containerstore.Open(containerstore.Config{
		Root:             cfg.Paths.Containers,
		OffloadThreshold: threshold,
		Logger:           logger,
	})
}

// PromptPassphrase reads a passphrase from the terminal with echo
// disabled. Fails when stdin is not a terminal; scripted callers
// should configure a passphrase file instead.
func PromptPassphrase(prompt string) (*secret.Buffer, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal; use keystore.passphrase_file in the configuration")
	}
	fmt.Fprint(os.Stderr, prompt)
	line, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("empty passphrase")
	}
	return secret.NewFromBytes(line)
}
