// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/fortuna-labs/fortuna/internal/logging"
	"github.com/fortuna-labs/fortuna/internal/metrics"
	"github.com/fortuna-labs/fortuna/internal/outcome"
)

// defaultDrainGrace bounds how long shutdown waits for records still
// buffered on the bus.
const defaultDrainGrace = 2 * time.Second

// Writer drains the outcome bus into the store. It runs as a supervised
// service so a transient write failure restarts the drain without touching
// the rest of the tree.
type Writer struct {
	store      *Store
	bus        *outcome.Bus
	drainGrace time.Duration
}

// NewWriter builds a Writer persisting records from bus into store.
func NewWriter(store *Store, bus *outcome.Bus) *Writer {
	return &Writer{store: store, bus: bus, drainGrace: defaultDrainGrace}
}

// Serve implements suture.Service.
func (w *Writer) Serve(ctx context.Context) error {
	logger := logging.Logger().With().Str("service", w.String()).Logger()

	// The subscription outlives ctx so records still buffered on the bus at
	// shutdown can be drained instead of dropped.
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	records, err := w.bus.Subscribe(subCtx)
	if err != nil {
		return fmt.Errorf("subscribe journal writer: %w", err)
	}
	logger.Debug().Msg("journal writer started")

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				// Bus closed: the process is shutting down.
				return suture.ErrDoNotRestart
			}
			if err := w.write(logger, rec); err != nil {
				return err
			}
		case <-ctx.Done():
			w.drain(logger, records)
			return ctx.Err()
		}
	}
}

// drain persists what is already on the bus before the writer stops.
// In-flight fulfillment units run detached from the shutdown signal and may
// still publish, so this is a grace window, not a hard flush.
func (w *Writer) drain(logger zerolog.Logger, records <-chan *outcome.Record) {
	deadline := time.NewTimer(w.drainGrace)
	defer deadline.Stop()

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return
			}
			if err := w.write(logger, rec); err != nil {
				return
			}
		case <-deadline.C:
			return
		}
	}
}

func (w *Writer) write(logger zerolog.Logger, rec *outcome.Record) error {
	if err := w.store.Put(rec); err != nil {
		logger.Error().Err(err).
			Str("request_signature", rec.RequestSignature).
			Msg("journal write failed")
		return err
	}
	metrics.JournalWrites.WithLabelValues(string(rec.Status)).Inc()
	return nil
}

// String implements fmt.Stringer for supervisor logs.
func (w *Writer) String() string {
	return "journal-writer"
}
