// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package aggregator turns a stream of timestamped records into
// discrete encrypted containers.
//
// An [Aggregator] buffers records from any number of producers. A
// flush — explicit via [Aggregator.Flush], or automatic once the
// buffered time span exceeds the configured window — packages the
// buffer into one archive blob, encrypts it under the configured
// policy, and hands exactly one container to the sink. Empty flushes
// produce nothing.
//
// The window is measured on record timestamps, not wall-clock time,
// so replaying historical data windows identically to live capture.
//
// Flush failures never lose data: the flushed records return to the
// buffer, ahead of any records appended during the attempt, until a
// retry succeeds or the caller discards them.
package aggregator
