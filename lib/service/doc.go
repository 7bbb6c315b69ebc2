// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared infrastructure for Strongroom daemons.
//
// A Strongroom daemon is a standalone Go binary composing these
// utilities in its own main() function rather than subclassing a
// framework. The package provides building blocks, not a runtime:
//
//   - [HTTPServer]: TCP HTTP server with ready signaling and graceful
//     shutdown, driven by context cancellation. The escrow daemon
//     mounts its escrowhttp handler on one of these.
//   - [NewLogger]: the standard daemon logger, a JSON slog handler on
//     stderr, installed as the slog default.
//
// Authorization is not this package's concern: the handler decides
// what each caller may do, and deployments front the listener with
// their own transport security.
package service
