// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/strongroom-foundation/strongroom/lib/secret"
	"github.com/strongroom-foundation/strongroom/lib/sqlitepool"
)

// sqliteSchema is applied once per pool connection. WITHOUT ROWID
// keeps the (keychain_id, key_type) primary key as the physical
// layout, and the primary key constraint is the write-once gate.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS keypairs (
	keychain_id TEXT NOT NULL,
	key_type    TEXT NOT NULL,
	public_key  BLOB NOT NULL,
	private_key BLOB NOT NULL,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (keychain_id, key_type)
) WITHOUT ROWID;
`

// SQLiteConfig holds the parameters for opening a SQLite keystore.
// Path is required.
type SQLiteConfig struct {
	// Path is the filesystem path to the database file. The parent
	// directory must exist.
	Path string

	// PoolSize is the connection pool size. Defaults to 4 if zero or
	// negative.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// SQLiteStore is a Store backed by a SQLite database. Write-once is
// enforced by the table's primary key: concurrent registrations of
// the same cell race on INSERT and the constraint rejects all but
// one. Safe for concurrent use.
type SQLiteStore struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// OpenSQLite opens (creating if necessary) a SQLite keystore at
// cfg.Path. The caller must call Close when done.
func OpenSQLite(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("keystore: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}

	return &SQLiteStore{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

// SetKeys implements Store. The INSERT either lands or fails on the
// primary key constraint — no read-check race.
func (s *SQLiteStore) SetKeys(ctx context.Context, keychainID uuid.UUID, keyType KeyType, publicKey, privateKey []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO keypairs (keychain_id, key_type, public_key, private_key, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				keychainID.String(),
				string(keyType),
				publicKey,
				privateKey,
				time.Now().UTC().Unix(),
			},
		})
	if err != nil {
		code := sqlite.ErrCode(err)
		if code == sqlite.ResultConstraintPrimaryKey || code == sqlite.ResultConstraintUnique {
			return ErrAlreadyExists
		}
		return fmt.Errorf("keystore: inserting keypair %s/%s: %w", keychainID, keyType, err)
	}

	s.logger.Info("keypair registered",
		"keychain_id", keychainID,
		"key_type", keyType,
	)
	return nil
}

// PublicKey implements Store.
func (s *SQLiteStore) PublicKey(ctx context.Context, keychainID uuid.UUID, keyType KeyType) ([]byte, error) {
	var publicKey []byte
	err := s.queryColumn(ctx, keychainID, keyType, "public_key", &publicKey)
	if err != nil {
		return nil, err
	}
	return publicKey, nil
}

// PrivateKey implements Store.
func (s *SQLiteStore) PrivateKey(ctx context.Context, keychainID uuid.UUID, keyType KeyType) (*secret.Buffer, error) {
	var privateKey []byte
	err := s.queryColumn(ctx, keychainID, keyType, "private_key", &privateKey)
	if err != nil {
		return nil, err
	}
	return secret.NewFromBytes(privateKey)
}

// queryColumn reads one key column for a cell into destination,
// mapping absence to ErrNotFound. The column name is one of the two
// fixed literals above, never caller input.
func (s *SQLiteStore) queryColumn(ctx context.Context, keychainID uuid.UUID, keyType KeyType, column string, destination *[]byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	defer s.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn,
		fmt.Sprintf("SELECT %s FROM keypairs WHERE keychain_id = ? AND key_type = ?", column),
		&sqlitex.ExecOptions{
			Args: []any{keychainID.String(), string(keyType)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				*destination = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, *destination)
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("keystore: querying keypair %s/%s: %w", keychainID, keyType, err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}
