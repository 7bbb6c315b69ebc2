// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"context"
	"fmt"
	"sync"

	"github.com/strongroom-foundation/strongroom/lib/escrow"
)

// Resolver maps an escrow reference to a live escrow service.
// Resolution happens independently at encryption and decryption time;
// the container stores only the reference, never the resolved
// endpoint identity.
type Resolver interface {
	// Resolve returns the service behind ref. Failure to resolve is
	// reported as (or wrapping) ErrEscrowUnavailable.
	Resolve(ctx context.Context, ref EscrowRef) (escrow.Service, error)
}

// DialFunc connects to a remote escrow endpoint. The returned service
// is cached and reused for the resolver's lifetime.
type DialFunc func(endpoint string) (escrow.Service, error)

// StaticResolver resolves local references to one configured service
// and remote references through a dial function. Either half may be
// absent: a resolver on an encrypt-only appliance may carry no local
// service, and an air-gapped vault may carry no dialer. Resolving a
// reference with no configured half fails with ErrEscrowUnavailable.
//
// Safe for concurrent use.
type StaticResolver struct {
	local escrow.Service
	dial  DialFunc

	mu      sync.Mutex
	remotes map[string]escrow.Service
}

// NewStaticResolver creates a resolver. local may be nil; dial may be
// nil.
func NewStaticResolver(local escrow.Service, dial DialFunc) *StaticResolver {
	return &StaticResolver{
		local:   local,
		dial:    dial,
		remotes: make(map[string]escrow.Service),
	}
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(ctx context.Context, ref EscrowRef) (escrow.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEscrowUnavailable, err)
	}
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: escrow reference is unset", ErrEscrowUnavailable)
	}

	if ref.IsLocal() {
		if r.local == nil {
			return nil, fmt.Errorf("%w: no local escrow service on this machine", ErrEscrowUnavailable)
		}
		return r.local, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	endpoint := ref.Endpoint()
	if service, ok := r.remotes[endpoint]; ok {
		return service, nil
	}
	if r.dial == nil {
		return nil, fmt.Errorf("%w: no remote escrow dialer configured for %s", ErrEscrowUnavailable, endpoint)
	}
	service, err := r.dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrEscrowUnavailable, endpoint, err)
	}
	r.remotes[endpoint] = service
	return service, nil
}
