// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"fmt"
	"net/url"
)

// localEscrowText is the wire form of the local escrow reference in
// policy documents and container metadata. A protocol constant —
// changing it breaks decryption of existing containers.
const localEscrowText = "local"

// EscrowRef identifies the escrow authority for one key-encryption
// layer or signature spec. It is a closed union: either the local
// escrow (the service configured on this machine) or a remote escrow
// named by an absolute URL. Invalid references cannot be constructed;
// the zero value is invalid and rejected by Validate and MarshalText.
//
// A local reference carries no machine identity. Resolving it on a
// machine without the original keystore is expected to fail with
// [ErrEscrowUnavailable] — that is a deployment condition, not
// container corruption.
type EscrowRef struct {
	// endpoint is empty for the local escrow, otherwise the absolute
	// URL of the remote escrow service.
	endpoint string

	// valid distinguishes a constructed reference from the zero
	// value.
	valid bool
}

// LocalEscrow returns the reference to the caller's own escrow
// service.
func LocalEscrow() EscrowRef {
	return EscrowRef{valid: true}
}

// RemoteEscrow returns a reference to the escrow service at endpoint,
// which must be an absolute http or https URL.
func RemoteEscrow(endpoint string) (EscrowRef, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return EscrowRef{}, fmt.Errorf("cascade: parsing escrow endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return EscrowRef{}, fmt.Errorf("cascade: escrow endpoint %q must use http or https", endpoint)
	}
	if parsed.Host == "" {
		return EscrowRef{}, fmt.Errorf("cascade: escrow endpoint %q has no host", endpoint)
	}
	return EscrowRef{endpoint: endpoint, valid: true}, nil
}

// ParseEscrowRef parses the wire form: the string "local" or an
// absolute URL.
func ParseEscrowRef(text string) (EscrowRef, error) {
	if text == localEscrowText {
		return LocalEscrow(), nil
	}
	return RemoteEscrow(text)
}

// IsLocal reports whether the reference names the local escrow.
func (r EscrowRef) IsLocal() bool {
	return r.valid && r.endpoint == ""
}

// IsRemote reports whether the reference names a remote escrow.
func (r EscrowRef) IsRemote() bool {
	return r.valid && r.endpoint != ""
}

// IsZero reports whether the reference is the unconstructed zero
// value.
func (r EscrowRef) IsZero() bool {
	return !r.valid
}

// Endpoint returns the remote endpoint URL, or the empty string for
// the local escrow.
func (r EscrowRef) Endpoint() string {
	return r.endpoint
}

// String returns the wire form.
func (r EscrowRef) String() string {
	if !r.valid {
		return "<zero escrow ref>"
	}
	if r.endpoint == "" {
		return localEscrowText
	}
	return r.endpoint
}

// MarshalText implements encoding.TextMarshaler. The zero value is an
// error: serializing it would produce an ambiguous document.
func (r EscrowRef) MarshalText() ([]byte, error) {
	if !r.valid {
		return nil, fmt.Errorf("cascade: cannot marshal zero EscrowRef")
	}
	if r.endpoint == "" {
		return []byte(localEscrowText), nil
	}
	return []byte(r.endpoint), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *EscrowRef) UnmarshalText(data []byte) error {
	parsed, err := ParseEscrowRef(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
