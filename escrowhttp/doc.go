// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package escrowhttp carries the three-operation escrow contract over
// HTTP.
//
// [Server] wraps any escrow.Service as an http.Handler; [Client]
// implements escrow.Service against such a server. Requests and
// responses are JSON with base64 byte payloads; failures travel as a
// structured {code, message} body that the client maps back to the
// escrow package's sentinel errors. Transport failures and timeouts
// surface as cascade.ErrEscrowUnavailable.
//
// This is boundary glue, not a general transport: the wire surface is
// exactly the local escrow contract, and anything more (federation,
// discovery, threshold coordination) belongs elsewhere.
package escrowhttp
