// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrowhttp_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/escrowhttp"
	"github.com/strongroom-foundation/strongroom/lib/cascade"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

// denyDecryption refuses all decryption, allowing signatures.
type denyDecryption struct{}

func (denyDecryption) AuthorizeDecryption(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) error {
	return fmt.Errorf("operator approval required")
}

func (denyDecryption) AuthorizeSignature(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) error {
	return nil
}

func newRemotePair(t *testing.T, authorizer escrow.Authorizer) *escrowhttp.Client {
	t.Helper()
	service, err := escrow.NewLocalService(escrow.Config{
		Store:      keystore.NewMemoryStore(),
		Authorizer: authorizer,
	})
	if err != nil {
		t.Fatalf("NewLocalService: %v", err)
	}

	server := httptest.NewServer(escrowhttp.NewServer(service, nil))
	t.Cleanup(server.Close)

	client, err := escrowhttp.NewClient(escrowhttp.ClientConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestRemoteEscrowRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newRemotePair(t, nil)
	keychainID := uuid.New()

	// Provisioning and stability across calls, through the wire.
	first, err := client.PublicKey(ctx, keychainID, keystore.KeyTypeRSA)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	second, err := client.PublicKey(ctx, keychainID, keystore.KeyTypeRSA)
	if err != nil {
		t.Fatalf("second PublicKey: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("remote public key changed across calls")
	}

	// Wrap locally against the remote public key, unwrap remotely.
	secretKey := bytes.Repeat([]byte{0x42}, 32)
	wrapped, err := escrow.WrapKey(keystore.KeyTypeRSA, escrow.WrapRSAOAEP, first, secretKey)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	unwrapped, err := client.DecryptWithPrivateKey(ctx, keychainID, keystore.KeyTypeRSA, escrow.WrapRSAOAEP, wrapped)
	if err != nil {
		t.Fatalf("DecryptWithPrivateKey: %v", err)
	}
	if !bytes.Equal(unwrapped, secretKey) {
		t.Error("remote unwrap did not recover the wrapped key")
	}

	// Sign remotely, verify locally from the signature alone.
	message := []byte("attested payload")
	signature, err := client.Sign(ctx, keychainID, keystore.KeyTypeEd25519, escrow.SignEd25519, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := escrow.VerifySignature(message, signature); err != nil {
		t.Errorf("VerifySignature: %v", err)
	}
}

func TestRemoteErrorsMapToSentinels(t *testing.T) {
	ctx := context.Background()
	client := newRemotePair(t, denyDecryption{})
	keychainID := uuid.New()

	_, err := client.DecryptWithPrivateKey(ctx, keychainID, keystore.KeyTypeRSA, escrow.WrapRSAOAEP, []byte("x"))
	if !errors.Is(err, escrow.ErrDecryptionRefused) {
		t.Errorf("refused decryption = %v, want ErrDecryptionRefused", err)
	}

	_, err = client.Sign(ctx, keychainID, keystore.KeyTypeRSA, escrow.SignEd25519, []byte("m"))
	if !errors.Is(err, escrow.ErrUnsupportedAlgorithm) {
		t.Errorf("mismatched sign pair = %v, want ErrUnsupportedAlgorithm", err)
	}

	_, err = client.DecryptWithPrivateKey(ctx, keychainID, keystore.KeyTypeAgeX25519, escrow.WrapRSAOAEP, []byte("y"))
	if !errors.Is(err, escrow.ErrUnsupportedAlgorithm) {
		t.Errorf("mismatched wrap pair = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestRemoteMalformedCiphertext(t *testing.T) {
	ctx := context.Background()
	client := newRemotePair(t, nil)
	keychainID := uuid.New()

	if _, err := client.PublicKey(ctx, keychainID, keystore.KeyTypeRSA); err != nil {
		t.Fatalf("PublicKey: %v", err)
	}

	// 100 bytes is not a multiple of the RSA block size.
	_, err := client.DecryptWithPrivateKey(ctx, keychainID, keystore.KeyTypeRSA, escrow.WrapRSAOAEP, make([]byte, 100))
	if !errors.Is(err, escrow.ErrMalformedCiphertext) {
		t.Errorf("bad-length ciphertext = %v, want ErrMalformedCiphertext", err)
	}
}

func TestUnreachableEndpointIsUnavailable(t *testing.T) {
	client, err := escrowhttp.NewClient(escrowhttp.ClientConfig{
		// Reserved TEST-NET-1 address: connection refused or timeout,
		// never a live escrow.
		Endpoint: "http://192.0.2.1:9",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.PublicKey(ctx, uuid.New(), keystore.KeyTypeRSA)
	if !errors.Is(err, cascade.ErrEscrowUnavailable) {
		t.Errorf("unreachable endpoint = %v, want ErrEscrowUnavailable", err)
	}
}

func TestCascadeOverRemoteEscrow(t *testing.T) {
	ctx := context.Background()
	service, err := escrow.NewLocalService(escrow.Config{Store: keystore.NewMemoryStore()})
	if err != nil {
		t.Fatalf("NewLocalService: %v", err)
	}
	server := httptest.NewServer(escrowhttp.NewServer(service, nil))
	t.Cleanup(server.Close)

	remoteRef, err := cascade.RemoteEscrow(server.URL)
	if err != nil {
		t.Fatalf("RemoteEscrow: %v", err)
	}
	engine, err := cascade.NewEngine(cascade.EngineConfig{
		Resolver: cascade.NewStaticResolver(nil, func(endpoint string) (escrow.Service, error) {
			return escrowhttp.NewClient(escrowhttp.ClientConfig{Endpoint: endpoint})
		}),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	plaintext := []byte("wrapped by an escrow across the wire")
	policy := cascade.Policy{Strata: []cascade.Stratum{{
		DataAlgorithm: cascade.SymmetricAES256GCM,
		KeyLayers: []cascade.KeyEncryptionLayer{
			{Algorithm: escrow.WrapRSAOAEP, Escrow: remoteRef},
		},
		Signatures: []cascade.SignatureSpec{
			{Algorithm: escrow.SignEd25519, Escrow: remoteRef},
		},
	}}}

	container, err := engine.Encrypt(ctx, uuid.New(), policy, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	recovered, err := engine.Decrypt(ctx, container)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Error("remote-escrow round trip did not return the original plaintext")
	}
}
