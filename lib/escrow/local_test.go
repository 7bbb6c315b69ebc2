// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/clock"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

func newTestService(t *testing.T, authorizer escrow.Authorizer) *escrow.LocalService {
	t.Helper()
	service, err := escrow.NewLocalService(escrow.Config{
		Store:      keystore.NewMemoryStore(),
		Authorizer: authorizer,
		Clock:      clock.Fake(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewLocalService: %v", err)
	}
	return service
}

func TestPublicKeyProvisionsOnFirstUse(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)
	keychainID := uuid.New()

	first, err := service.PublicKey(ctx, keychainID, keystore.KeyTypeRSA)
	if err != nil {
		t.Fatalf("first PublicKey: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("PublicKey returned empty key")
	}

	// Repeated calls return the same pair, never a regenerated one.
	second, err := service.PublicKey(ctx, keychainID, keystore.KeyTypeRSA)
	if err != nil {
		t.Fatalf("second PublicKey: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("PublicKey returned different keys across calls")
	}

	// A different key type under the same keychain is its own pair.
	other, err := service.PublicKey(ctx, keychainID, keystore.KeyTypeAgeX25519)
	if err != nil {
		t.Fatalf("PublicKey for age type: %v", err)
	}
	if bytes.Equal(first, other) {
		t.Error("distinct key types share key material")
	}
}

func TestConcurrentProvisioningGeneratesOnce(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)
	keychainID := uuid.New()

	const callers = 8
	var waitGroup sync.WaitGroup
	results := make([][]byte, callers)
	failures := make(chan error, callers)

	for caller := 0; caller < callers; caller++ {
		caller := caller
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			publicKey, err := service.PublicKey(ctx, keychainID, keystore.KeyTypeAgeX25519)
			if err != nil {
				failures <- fmt.Errorf("caller %d: %w", caller, err)
				return
			}
			results[caller] = publicKey
		}()
	}
	waitGroup.Wait()
	close(failures)

	for err := range failures {
		t.Error(err)
	}
	for caller := 1; caller < callers; caller++ {
		if !bytes.Equal(results[0], results[caller]) {
			t.Fatalf("caller %d observed a different keypair", caller)
		}
	}
}

func TestWrapUnwrapRoundtrip(t *testing.T) {
	tests := []struct {
		name      string
		keyType   keystore.KeyType
		algorithm escrow.WrapAlgorithm
		plaintext []byte
	}{
		{"rsa short", keystore.KeyTypeRSA, escrow.WrapRSAOAEP, []byte("a 32-byte stratum key placeholder")},
		{"rsa multi-block", keystore.KeyTypeRSA, escrow.WrapRSAOAEP, bytes.Repeat([]byte("wrapped-key-material-"), 30)},
		{"age", keystore.KeyTypeAgeX25519, escrow.WrapAgeX25519, []byte("another stratum key")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			service := newTestService(t, nil)
			keychainID := uuid.New()

			publicKey, err := service.PublicKey(ctx, keychainID, test.keyType)
			if err != nil {
				t.Fatalf("PublicKey: %v", err)
			}

			wrapped, err := escrow.WrapKey(test.keyType, test.algorithm, publicKey, test.plaintext)
			if err != nil {
				t.Fatalf("WrapKey: %v", err)
			}
			if bytes.Contains(wrapped, test.plaintext) {
				t.Fatal("wrapped output contains plaintext")
			}

			unwrapped, err := service.DecryptWithPrivateKey(ctx, keychainID, test.keyType, test.algorithm, wrapped)
			if err != nil {
				t.Fatalf("DecryptWithPrivateKey: %v", err)
			}
			if !bytes.Equal(unwrapped, test.plaintext) {
				t.Errorf("roundtrip mismatch: got %d bytes, want %d", len(unwrapped), len(test.plaintext))
			}
		})
	}
}

func TestRSAUnwrapRejectsBadLength(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)
	keychainID := uuid.New()

	publicKey, err := service.PublicKey(ctx, keychainID, keystore.KeyTypeRSA)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	wrapped, err := escrow.WrapKey(keystore.KeyTypeRSA, escrow.WrapRSAOAEP, publicKey, []byte("stratum key"))
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}

	// Appending bytes makes the length a non-multiple of the RSA
	// block size. This must fail before any private key use.
	extended := append(append([]byte(nil), wrapped...), "aaabbbccc"...)
	_, err = service.DecryptWithPrivateKey(ctx, keychainID, keystore.KeyTypeRSA, escrow.WrapRSAOAEP, extended)
	if !errors.Is(err, escrow.ErrMalformedCiphertext) {
		t.Errorf("extended ciphertext: got %v, want ErrMalformedCiphertext", err)
	}

	// A corrupted block of the right length fails in OAEP, not with
	// garbage output.
	corrupted := append([]byte(nil), wrapped...)
	corrupted[10] ^= 0x01
	_, err = service.DecryptWithPrivateKey(ctx, keychainID, keystore.KeyTypeRSA, escrow.WrapRSAOAEP, corrupted)
	if err == nil {
		t.Error("corrupted ciphertext: expected error")
	}
}

func TestSignVerifyRoundtrip(t *testing.T) {
	tests := []struct {
		name      string
		keyType   keystore.KeyType
		algorithm escrow.SignatureAlgorithm
	}{
		{"rsa-pss", keystore.KeyTypeRSA, escrow.SignRSAPSS},
		{"ed25519", keystore.KeyTypeEd25519, escrow.SignEd25519},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			service := newTestService(t, nil)
			keychainID := uuid.New()
			message := []byte("recorded segment bytes")

			signature, err := service.Sign(ctx, keychainID, test.keyType, test.algorithm, message)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if signature.SignedAt.IsZero() {
				t.Error("signature has zero SignedAt")
			}
			if len(signature.PublicKey) == 0 {
				t.Error("signature is missing the public key")
			}

			if err := escrow.VerifySignature(message, signature); err != nil {
				t.Errorf("VerifySignature: %v", err)
			}

			// Tampered digest.
			tampered := signature
			tampered.Digest = append(append([]byte(nil), signature.Digest...), "xyz"...)
			if err := escrow.VerifySignature(message, tampered); err == nil {
				t.Error("tampered digest verified")
			}

			// Tampered message.
			if err := escrow.VerifySignature([]byte("other bytes"), signature); err == nil {
				t.Error("signature verified against a different message")
			}

			// Tampered signing time: the timestamp participates in the
			// signed digest.
			shifted := signature
			shifted.SignedAt = signature.SignedAt.Add(time.Minute)
			if err := escrow.VerifySignature(message, shifted); err == nil {
				t.Error("signature verified with altered SignedAt")
			}
		})
	}
}

func TestUnsupportedAlgorithmPairs(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, nil)
	keychainID := uuid.New()

	// Signing with a wrap-only key type.
	_, err := service.Sign(ctx, keychainID, keystore.KeyTypeAgeX25519, escrow.SignRSAPSS, []byte("m"))
	if !errors.Is(err, escrow.ErrUnsupportedAlgorithm) {
		t.Errorf("sign rsa-pss with age key: got %v, want ErrUnsupportedAlgorithm", err)
	}

	// Wrapping with a sign-only key type.
	_, err = service.DecryptWithPrivateKey(ctx, keychainID, keystore.KeyTypeEd25519, escrow.WrapRSAOAEP, []byte("c"))
	if !errors.Is(err, escrow.ErrUnsupportedAlgorithm) {
		t.Errorf("unwrap rsa-oaep with ed25519 key: got %v, want ErrUnsupportedAlgorithm", err)
	}

	// Mismatched families.
	_, err = escrow.WrapKey(keystore.KeyTypeRSA, escrow.WrapAgeX25519, []byte("age1..."), []byte("k"))
	if !errors.Is(err, escrow.ErrUnsupportedAlgorithm) {
		t.Errorf("wrap age with rsa key: got %v, want ErrUnsupportedAlgorithm", err)
	}

	// The matrix check runs before provisioning: no keypair may be
	// created for a doomed request.
	if _, err := service.PublicKey(ctx, keychainID, keystore.KeyTypeAgeX25519); err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
}

// gateAuthorizer denies operations according to its flags.
type gateAuthorizer struct {
	denyDecrypt bool
	denySign    bool
}

func (g *gateAuthorizer) AuthorizeDecryption(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) error {
	if g.denyDecrypt {
		return errors.New("operator gate closed")
	}
	return nil
}

func (g *gateAuthorizer) AuthorizeSignature(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) error {
	if g.denySign {
		return errors.New("operator gate closed")
	}
	return nil
}

func TestAuthorizerGatesPrivateKeyOperations(t *testing.T) {
	ctx := context.Background()
	keychainID := uuid.New()

	denying := newTestService(t, &gateAuthorizer{denyDecrypt: true, denySign: true})

	_, err := denying.DecryptWithPrivateKey(ctx, keychainID, keystore.KeyTypeRSA, escrow.WrapRSAOAEP, []byte("c"))
	if !errors.Is(err, escrow.ErrDecryptionRefused) {
		t.Errorf("decrypt with denying gate: got %v, want ErrDecryptionRefused", err)
	}

	_, err = denying.Sign(ctx, keychainID, keystore.KeyTypeRSA, escrow.SignRSAPSS, []byte("m"))
	if !errors.Is(err, escrow.ErrSignatureRefused) {
		t.Errorf("sign with denying gate: got %v, want ErrSignatureRefused", err)
	}

	// PublicKey is never gated: the public half is not sensitive.
	if _, err := denying.PublicKey(ctx, keychainID, keystore.KeyTypeRSA); err != nil {
		t.Errorf("PublicKey with denying gate: %v", err)
	}

	// A permitting gate passes operations through.
	permitting := newTestService(t, &gateAuthorizer{})
	if _, err := permitting.Sign(ctx, keychainID, keystore.KeyTypeRSA, escrow.SignRSAPSS, []byte("m")); err != nil {
		t.Errorf("sign with permitting gate: %v", err)
	}
}

func TestSignUsesInjectedClock(t *testing.T) {
	ctx := context.Background()
	initial := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	fakeClock := clock.Fake(initial)

	service, err := escrow.NewLocalService(escrow.Config{
		Store: keystore.NewMemoryStore(),
		Clock: fakeClock,
	})
	if err != nil {
		t.Fatalf("NewLocalService: %v", err)
	}

	signature, err := service.Sign(ctx, uuid.New(), keystore.KeyTypeEd25519, escrow.SignEd25519, []byte("m"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !signature.SignedAt.Equal(initial) {
		t.Errorf("SignedAt = %v, want %v", signature.SignedAt, initial)
	}
}
