// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// strongroom-escrowd is the remote escrow daemon: it holds a keystore
// and answers public-key, sign, and decrypt requests over HTTP so
// other hosts can name this machine as an escrow holder in their
// policies. Private keys never leave the process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/strongroom-foundation/strongroom/escrowhttp"
	"github.com/strongroom-foundation/strongroom/lib/config"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
	"github.com/strongroom-foundation/strongroom/lib/secret"
	"github.com/strongroom-foundation/strongroom/lib/service"
	"github.com/strongroom-foundation/strongroom/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		configPath  string
		listenAddr  string
	)
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "configuration file path (default: $STRONGROOM_CONFIG)")
	flag.StringVar(&listenAddr, "listen", "", "listen address (overrides escrow.listen_addr)")
	flag.Parse()

	if showVersion {
		fmt.Printf("strongroom-escrowd %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	if listenAddr == "" {
		listenAddr = cfg.Escrow.ListenAddr
	}

	logger := service.NewLogger()

	store, closeStore, err := openKeystore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	escrowService, err := escrow.NewLocalService(escrow.Config{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address: listenAddr,
		Handler: escrowhttp.NewServer(escrowService, logger),
		Logger:  logger,
	})

	logger.Info("escrow daemon starting",
		"listen", listenAddr,
		"keystore_backend", cfg.Keystore.Backend,
		"version", version.Short(),
	)

	return server.Serve(ctx)
}

// openKeystore opens the configured key storage backend. The returned
// close function releases backend resources.
func openKeystore(cfg *config.Config, logger *slog.Logger) (keystore.Store, func() error, error) {
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
