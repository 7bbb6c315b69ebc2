// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrow

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"filippo.io/age"

	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

// rsaKeyBits is the modulus size for generated RSA keypairs. 2048
// gives a 256-byte OAEP block; the wrapped-key chunking below is
// sized from the key itself, so raising this does not break existing
// containers.
const rsaKeyBits = 2048

// generateKeypair produces serialized public and private key material
// for keyType. RSA and Ed25519 keys are PEM (PKIX public, PKCS#8
// private); age identities use their native textual encodings.
func generateKeypair(keyType keystore.KeyType) (publicKey, privateKey []byte, err error) {
	switch keyType {
	case keystore.KeyTypeRSA:
		return generateRSAKeypair()
	case keystore.KeyTypeAgeX25519:
		return generateAgeKeypair()
	case keystore.KeyTypeEd25519:
		return generateEd25519Keypair()
	default:
		return nil, nil, fmt.Errorf("escrow: cannot generate keypair for key type %q", keyType)
	}
}

func generateRSAKeypair() ([]byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generating RSA key: %w", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding RSA public key: %w", err)
	}
	privateDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding RSA private key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER}),
		nil
}

func generateAgeKeypair() ([]byte, []byte, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, nil, fmt.Errorf("generating age identity: %w", err)
	}
	// The identity string is heap-allocated by the age library and
	// will be GC'd; the keystore copy is the durable one.
	return []byte(identity.Recipient().String()), []byte(identity.String()), nil
}

func generateEd25519Keypair() ([]byte, []byte, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 key: %w", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding Ed25519 public key: %w", err)
	}
	privateDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding Ed25519 private key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER}),
		nil
}

// parseRSAPublicKey decodes a PEM PKIX RSA public key.
func parseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("escrow: public key is not PEM encoded")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("escrow: parsing public key: %w", err)
	}
	publicKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("escrow: public key is %T, not RSA", parsed)
	}
	return publicKey, nil
}

// parseRSAPrivateKey decodes a PEM PKCS#8 RSA private key.
func parseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("escrow: private key is not PEM encoded")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("escrow: parsing private key: %w", err)
	}
	privateKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("escrow: private key is %T, not RSA", parsed)
	}
	return privateKey, nil
}

// parseEd25519PublicKey decodes a PEM PKIX Ed25519 public key.
func parseEd25519PublicKey(data []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("escrow: public key is not PEM encoded")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("escrow: parsing public key: %w", err)
	}
	publicKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("escrow: public key is %T, not Ed25519", parsed)
	}
	return publicKey, nil
}

// parseEd25519PrivateKey decodes a PEM PKCS#8 Ed25519 private key.
func parseEd25519PrivateKey(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("escrow: private key is not PEM encoded")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("escrow: parsing private key: %w", err)
	}
	privateKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("escrow: private key is %T, not Ed25519", parsed)
	}
	return privateKey, nil
}
