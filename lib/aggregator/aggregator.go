// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package aggregator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strongroom-foundation/strongroom/lib/archive"
	"github.com/strongroom-foundation/strongroom/lib/cascade"
)

// Record is one timestamped blob from a producing source. Records are
// created once, buffered, consumed by exactly one flush, and never
// mutated.
type Record struct {
	// Source names the producer ("gps", "microphone").
	Source string

	// Start and End bound the time span the record covers. End must
	// not precede Start.
	Start time.Time
	End   time.Time

	// Extension tags the content type, without a leading dot.
	Extension string

	// Data is the raw record bytes. The aggregator takes ownership;
	// the producer must not modify the slice after AddRecord.
	Data []byte
}

// ContainerSink receives the container produced by each flush.
type ContainerSink interface {
	// Store persists or forwards one container. A non-nil error makes
	// the flush fail and the flushed records return to the buffer.
	Store(ctx context.Context, container *cascade.Container) error
}

// SinkFunc adapts a function to ContainerSink.
type SinkFunc func(ctx context.Context, container *cascade.Container) error

// Store implements ContainerSink.
func (f SinkFunc) Store(ctx context.Context, container *cascade.Container) error {
	return f(ctx, container)
}

// Config holds the parameters for an aggregator. Engine, Sink,
// KeychainID, Policy, and MaxWindow are required.
type Config struct {
	// MaxWindow is the maximum time span, measured on record
	// timestamps, between the first buffered record's start and the
	// newest record's end. A record stretching the span beyond this
	// triggers an automatic flush.
	MaxWindow time.Duration

	// Policy is the encryption policy every flush encrypts under.
	Policy cascade.Policy

	// KeychainID is the keychain all containers belong to.
	KeychainID uuid.UUID

	// Engine encrypts each flushed archive.
	Engine *cascade.Engine

	// Sink receives the container produced by each flush.
	Sink ContainerSink

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Aggregator buffers records and turns each flush into exactly one
// encrypted container. Safe for concurrent use: appends and flushes
// are mutually exclusive, so a flush always sees a consistent record
// set and no append lands mid-flush.
//
// A failed flush is loss-free: the flushed records return to the
// front of the buffer, ahead of anything appended meanwhile, and the
// caller may retry Flush or give up with DiscardBuffer.
type Aggregator struct {
	maxWindow  time.Duration
	policy     cascade.Policy
	keychainID uuid.UUID
	engine     *cascade.Engine
	sink       ContainerSink
	logger     *slog.Logger

	mu          sync.Mutex
	buffer      []Record
	windowStart time.Time
}

// New creates an aggregator with an empty buffer.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("aggregator: Engine is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("aggregator: Sink is required")
	}
	if cfg.KeychainID == uuid.Nil {
		return nil, fmt.Errorf("aggregator: KeychainID is required")
	}
	if cfg.MaxWindow <= 0 {
		return nil, fmt.Errorf("aggregator: MaxWindow must be positive, got %v", cfg.MaxWindow)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("aggregator: invalid policy: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{
		maxWindow:  cfg.MaxWindow,
		policy:     cfg.Policy,
		keychainID: cfg.KeychainID,
		engine:     cfg.Engine,
		sink:       cfg.Sink,
		logger:     logger,
	}, nil
}

// AddRecord appends a record to the buffer. The first record since
// the last flush opens the aggregation window at its start timestamp;
// a record whose end stretches the window beyond MaxWindow triggers
// an automatic flush of the whole buffer (including that record)
// before AddRecord returns.
func (a *Aggregator) AddRecord(ctx context.Context, record Record) error {
	if record.Source == "" {
		return fmt.Errorf("aggregator: record source is empty")
	}
	if record.Start.IsZero() || record.End.IsZero() {
		return fmt.Errorf("aggregator: record %q has an unset timestamp", record.Source)
	}
	if record.End.Before(record.Start) {
		return fmt.Errorf("aggregator: record %q ends %v before it starts", record.Source, record.Start.Sub(record.End))
	}

	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.windowStart = record.Start
	}
	a.buffer = append(a.buffer, record)

	if record.End.Sub(a.windowStart) <= a.maxWindow {
		a.mu.Unlock()
		return nil
	}

	batch, windowStart := a.takeBufferLocked()
	a.mu.Unlock()

	a.logger.Debug("aggregation window exceeded, flushing",
		"keychain_id", a.keychainID,
		"records", len(batch),
		"window", record.End.Sub(windowStart),
	)
	return a.flushBatch(ctx, batch, windowStart)
}

// Flush encrypts and delivers everything buffered. An empty buffer
// is a no-op: no container is produced.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.mu.Lock()
	if len(a.buffer) == 0 {
		a.mu.Unlock()
		return nil
	}
	batch, windowStart := a.takeBufferLocked()
	a.mu.Unlock()

	return a.flushBatch(ctx, batch, windowStart)
}

// DiscardBuffer drops all buffered records and returns how many were
// dropped. The explicit escape hatch after repeated flush failures.
func (a *Aggregator) DiscardBuffer() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	dropped := len(a.buffer)
	a.buffer = nil
	a.windowStart = time.Time{}
	return dropped
}

// BufferedRecords returns the number of records awaiting a flush.
func (a *Aggregator) BufferedRecords() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// takeBufferLocked swaps the buffer out for flushing. Caller holds
// a.mu.
func (a *Aggregator) takeBufferLocked() ([]Record, time.Time) {
	batch := a.buffer
	windowStart := a.windowStart
	a.buffer = nil
	a.windowStart = time.Time{}
	return batch, windowStart
}

// flushBatch archives, encrypts, and delivers one batch. Runs outside
// the buffer lock, so appends proceed during encryption. On any
// failure the batch returns to the front of the buffer and the window
// reopens at its original start.
func (a *Aggregator) flushBatch(ctx context.Context, batch []Record, windowStart time.Time) error {
	container, err := a.encryptBatch(ctx, batch)
	if err != nil {
		a.restoreBatch(batch, windowStart)
		return err
	}

	if err := a.sink.Store(ctx, container); err != nil {
		a.restoreBatch(batch, windowStart)
		return fmt.Errorf("aggregator: storing container: %w", err)
	}

	a.logger.Info("flushed aggregation window",
		"keychain_id", a.keychainID,
		"records", len(batch),
		"payload_bytes", len(container.Payload),
	)
	return nil
}

func (a *Aggregator) encryptBatch(ctx context.Context, batch []Record) (*cascade.Container, error) {
	entries := make([]archive.Entry, 0, len(batch))
	for _, record := range batch {
		entries = append(entries, archive.Entry{
			Name:      record.Source,
			Extension: record.Extension,
			Start:     record.Start,
			End:       record.End,
			Data:      record.Data,
		})
	}

	blob, err := archive.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("aggregator: building archive: %w", err)
	}

	container, err := a.engine.Encrypt(ctx, a.keychainID, a.policy, blob)
	if err != nil {
		return nil, fmt.Errorf("aggregator: encrypting archive: %w", err)
	}
	return container, nil
}

// restoreBatch puts a failed flush's records back ahead of anything
// appended since the swap, preserving record order across the retry.
func (a *Aggregator) restoreBatch(batch []Record, windowStart time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer = append(batch, a.buffer...)
	a.windowStart = windowStart
}
