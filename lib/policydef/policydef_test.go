// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package policydef_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/cascade"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/policydef"
)

const validDocument = `{
	// vault policy: two strata, mixed escrows
	"keychain_id": "0b0df896-4d2e-4a26-9d87-12f07f1965bf",
	"strata": [
		{
			"data_algorithm": "aes256-gcm",
			"key_layers": [
				{"algorithm": "rsa-oaep", "escrow": "local"},
				{"algorithm": "age-x25519", "escrow": "https://escrow.example.com/v1"},
			],
			"signatures": [
				{"algorithm": "rsa-pss", "escrow": "local"},
			],
		},
		{
			"data_algorithm": "xchacha20-poly1305",
			"key_layers": [{"algorithm": "age-x25519", "escrow": "local"}],
		},
	],
}`

func TestParseValidDocument(t *testing.T) {
	document, err := policydef.Parse([]byte(validDocument))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if document.KeychainID.String() != "0b0df896-4d2e-4a26-9d87-12f07f1965bf" {
		t.Errorf("keychain ID = %s", document.KeychainID)
	}
	strata := document.Policy.Strata
	if len(strata) != 2 {
		t.Fatalf("parsed %d strata, want 2", len(strata))
	}
	if strata[0].DataAlgorithm != cascade.SymmetricAES256GCM {
		t.Errorf("stratum 0 algorithm = %q", strata[0].DataAlgorithm)
	}
	if len(strata[0].KeyLayers) != 2 {
		t.Fatalf("stratum 0 has %d key layers, want 2", len(strata[0].KeyLayers))
	}
	if !strata[0].KeyLayers[0].Escrow.IsLocal() {
		t.Error("stratum 0 layer 0 escrow is not local")
	}
	if got := strata[0].KeyLayers[1].Escrow.Endpoint(); got != "https://escrow.example.com/v1" {
		t.Errorf("stratum 0 layer 1 endpoint = %q", got)
	}
	if len(strata[0].Signatures) != 1 || strata[0].Signatures[0].Algorithm != escrow.SignRSAPSS {
		t.Error("stratum 0 signatures not preserved")
	}
	if len(strata[1].Signatures) != 0 {
		t.Error("stratum 1 grew signatures")
	}
}

func TestParseWithoutKeychainID(t *testing.T) {
	document, err := policydef.Parse([]byte(`{
		"strata": [{"data_algorithm": "chacha20-poly1305",
		            "key_layers": [{"algorithm": "rsa-oaep", "escrow": "local"}]}]
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if document.KeychainID != uuid.Nil {
		t.Errorf("keychain ID = %s, want nil", document.KeychainID)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"strata": [`,
		"no strata":         `{"strata": []}`,
		"unknown algorithm": strings.Replace(validDocument, "aes256-gcm", "des-ecb", 1),
		"unknown wrap":      strings.Replace(validDocument, "rsa-oaep", "rsa-pkcs1", 1),
		"bad escrow ref":    strings.Replace(validDocument, `"escrow": "local"`, `"escrow": "ftp://x"`, 1),
		"bad keychain id":   strings.Replace(validDocument, "0b0df896-4d2e-4a26-9d87-12f07f1965bf", "not-a-uuid", 1),
		"missing layers":    `{"strata": [{"data_algorithm": "aes256-gcm"}]}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := policydef.Parse([]byte(input)); err == nil {
				t.Error("Parse accepted an invalid document")
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.jsonc")
	if err := os.WriteFile(path, []byte(validDocument), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	document, err := policydef.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(document.Policy.Strata) != 2 {
		t.Errorf("parsed %d strata, want 2", len(document.Policy.Strata))
	}

	if _, err := policydef.ReadFile(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("ReadFile of a missing file succeeded")
	}
}
