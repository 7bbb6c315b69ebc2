// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrowhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/cascade"
	"github.com/strongroom-foundation/strongroom/lib/escrow"
	"github.com/strongroom-foundation/strongroom/lib/keystore"
)

// defaultTimeout bounds each escrow call when the caller's context
// carries no deadline. Remote escrow operations are interactive-scale
// (one RSA operation, one HTTP round trip); anything slower is
// effectively unavailable.
const defaultTimeout = 30 * time.Second

// ClientConfig holds the parameters for a remote escrow client.
// Endpoint is required.
type ClientConfig struct {
	// Endpoint is the base URL of the remote escrow service.
	Endpoint string

	// HTTPClient overrides the transport. Nil uses a default client;
	// per-call timeouts come from the caller's context (or
	// defaultTimeout when absent).
	HTTPClient *http.Client
}

// Client is an escrow.Service backed by a remote escrow over HTTP.
// Transport failures surface as cascade.ErrEscrowUnavailable;
// structured error responses map back to the escrow package's
// sentinels, so callers cannot tell a remote escrow from a local one
// by error shape.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

var _ escrow.Service = (*Client)(nil)

// NewClient creates a client for the escrow service at
// cfg.Endpoint.
func NewClient(cfg ClientConfig) (*Client, error) {
	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("escrowhttp: parsing endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("escrowhttp: endpoint %q must use http or https", cfg.Endpoint)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   parsed.String(),
		httpClient: httpClient,
	}, nil
}

// PublicKey implements escrow.Service.
func (c *Client) PublicKey(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType) ([]byte, error) {
	var response publicKeyResponse
	err := c.post(ctx, publicKeyPath, publicKeyRequest{
		KeychainID: keychainID,
		KeyType:    keyType,
	}, &response)
	if err != nil {
		return nil, err
	}
	return response.PublicKey, nil
}

// Sign implements escrow.Service.
func (c *Client) Sign(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType, algorithm escrow.SignatureAlgorithm, message []byte) (escrow.Signature, error) {
	var response signResponse
	err := c.post(ctx, signPath, signRequest{
		KeychainID: keychainID,
		KeyType:    keyType,
		Algorithm:  algorithm,
		Message:    message,
	}, &response)
	if err != nil {
		return escrow.Signature{}, err
	}
	return response.Signature, nil
}

// DecryptWithPrivateKey implements escrow.Service.
func (c *Client) DecryptWithPrivateKey(ctx context.Context, keychainID uuid.UUID, keyType keystore.KeyType, algorithm escrow.WrapAlgorithm, ciphertext []byte) ([]byte, error) {
	var response decryptResponse
	err := c.post(ctx, decryptPath, decryptRequest{
		KeychainID: keychainID,
		KeyType:    keyType,
		Algorithm:  algorithm,
		Ciphertext: ciphertext,
	}, &response)
	if err != nil {
		return nil, err
	}
	return response.Plaintext, nil
}

// post sends one JSON request and decodes the response or maps the
// error body.
func (c *Client) post(ctx context.Context, path string, requestBody, responseBody any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("escrowhttp: encoding request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("escrowhttp: building request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", cascade.ErrEscrowUnavailable, c.endpoint, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		if err := json.NewDecoder(response.Body).Decode(responseBody); err != nil {
			return fmt.Errorf("escrowhttp: decoding response: %w", err)
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(response.Body, 1<<16))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("%w: %s returned HTTP %d: %s",
			cascade.ErrEscrowUnavailable, c.endpoint, response.StatusCode, raw)
	}
	return decodeError(body)
}

// decodeError maps a wire error code back to the matching sentinel.
func decodeError(body errorBody) error {
	switch body.Code {
	case codeUnsupportedAlgorithm:
		return fmt.Errorf("%w: %s", escrow.ErrUnsupportedAlgorithm, body.Message)
	case codeDecryptionRefused:
		return fmt.Errorf("%w: %s", escrow.ErrDecryptionRefused, body.Message)
	case codeSignatureRefused:
		return fmt.Errorf("%w: %s", escrow.ErrSignatureRefused, body.Message)
	case codeMalformedCiphertext:
		return fmt.Errorf("%w: %s", escrow.ErrMalformedCiphertext, body.Message)
	default:
		return fmt.Errorf("escrowhttp: remote escrow error %s: %s", body.Code, body.Message)
	}
}
