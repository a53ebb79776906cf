// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package watcher feeds the fulfillment pipeline from two sources: a live
// WebSocket log subscription per tracked program, and a one-shot backfill
// scan over the program's transaction history.
//
// Both run as suture services. A watcher that loses its subscription simply
// returns an error and lets the supervisor reconnect it with backoff; the
// backfill scanner finishes once and asks not to be restarted. Requests
// handled twice across the two sources are harmless because the pipeline is
// idempotent.
package watcher

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/fortuna-labs/fortuna/internal/fulfill"
	"github.com/fortuna-labs/fortuna/internal/logging"
	"github.com/fortuna-labs/fortuna/internal/metrics"
	"github.com/fortuna-labs/fortuna/internal/outcome"
	"github.com/fortuna-labs/fortuna/internal/pubsub"
)

// Processor runs one transaction's logs through the fulfillment pipeline on
// behalf of the watched program.
type Processor interface {
	Process(ctx context.Context, program solana.PublicKey, logs []string) (*fulfill.Result, error)
}

// Subscription is a live stream of log notifications.
type Subscription interface {
	Recv() <-chan *pubsub.LogsNotification
}

// ConnectFunc establishes a fresh subscription for one program. The returned
// cleanup tears down the underlying connection.
type ConnectFunc func(ctx context.Context) (Subscription, func(), error)

// unitTimeout bounds one fulfillment attempt end to end, submission retries
// included.
const unitTimeout = 3 * time.Minute

// ProgramWatcher is a supervised service streaming one program's log
// notifications into the pipeline. Each notification is handled in its own
// goroutine so a slow fulfillment does not stall the subscription.
type ProgramWatcher struct {
	program  solana.PublicKey
	connect  ConnectFunc
	pipeline Processor
	bus      *outcome.Bus
}

// NewProgramWatcher builds a watcher for program.
func NewProgramWatcher(program solana.PublicKey, connect ConnectFunc, pipeline Processor, bus *outcome.Bus) *ProgramWatcher {
	return &ProgramWatcher{
		program:  program,
		connect:  connect,
		pipeline: pipeline,
		bus:      bus,
	}
}

// Serve implements suture.Service. It returns an error whenever the stream
// ends so the supervisor re-establishes the subscription.
func (w *ProgramWatcher) Serve(ctx context.Context) error {
	logger := logging.Logger().With().
		Str("service", w.String()).
		Str("program", w.program.String()).
		Logger()

	sub, cleanup, err := w.connect(ctx)
	if err != nil {
		metrics.WatcherRestarts.WithLabelValues(w.program.String()).Inc()
		return err
	}
	defer cleanup()
	logger.Info().Msg("log subscription established")

	// In-flight units outlive the subscription but not the process; they are
	// awaited before handing control back to the supervisor.
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case note, ok := <-sub.Recv():
			if !ok {
				metrics.WatcherRestarts.WithLabelValues(w.program.String()).Inc()
				return errors.New("log subscription closed")
			}
			metrics.NotificationsReceived.WithLabelValues(w.program.String()).Inc()

			if note.Err != nil {
				// A failed transaction cannot have opened a request.
				metrics.NotificationsSkipped.WithLabelValues(w.program.String(), "tx_failed").Inc()
				continue
			}

			wg.Add(1)
			go func(note *pubsub.LogsNotification) {
				defer wg.Done()
				w.handle(ctx, note)
			}(note)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle runs one notification through the pipeline and publishes the
// outcome. It is detached from the subscription's cancellation: once a
// request is being fulfilled, losing the socket must not abort the
// submission mid-flight.
func (w *ProgramWatcher) handle(parent context.Context, note *pubsub.LogsNotification) {
	unitID := logging.NewUnitID()

	ctx := context.WithoutCancel(parent)
	ctx, cancel := context.WithTimeout(ctx, unitTimeout)
	defer cancel()

	unitLogger := logging.Logger().With().
		Str("program", w.program.String()).
		Str("request_signature", note.Signature.String()).
		Uint64("slot", note.Slot).
		Logger()
	ctx = logging.ContextWithLogger(ctx, unitLogger)
	ctx = logging.ContextWithUnitID(ctx, unitID)

	start := time.Now()
	res, err := w.pipeline.Process(ctx, w.program, note.Logs)

	switch {
	case err != nil:
		metrics.ObserveFulfillment("failed", string(outcome.SourceLive), start)
		logger := logging.FromContext(ctx)
		logger.Error().Err(err).Msg("fulfillment failed")
		w.publish(ctx, unitID, note.Signature, res, err)

	case res == nil:
		// Not a randomness request; nothing to record.

	case res.AlreadyFulfilled:
		metrics.Fulfillments.WithLabelValues("skipped", string(outcome.SourceLive)).Inc()
		w.publish(ctx, unitID, note.Signature, res, nil)

	default:
		metrics.ObserveFulfillment("fulfilled", string(outcome.SourceLive), start)
		w.publish(ctx, unitID, note.Signature, res, nil)
	}
}

func (w *ProgramWatcher) publish(ctx context.Context, unitID string, requestSig solana.Signature, res *fulfill.Result, procErr error) {
	rec := buildRecord(unitID, w.program, requestSig, outcome.SourceLive, res, procErr)
	if err := w.bus.Publish(rec); err != nil {
		logger := logging.FromContext(ctx)
		logger.Error().Err(err).Msg("outcome publish failed")
	}
}

// String implements fmt.Stringer for supervisor logs.
func (w *ProgramWatcher) String() string {
	return "watcher-" + w.program.String()
}

// buildRecord assembles the journal record for one terminal attempt.
func buildRecord(unitID string, program solana.PublicKey, requestSig solana.Signature, source outcome.Source, res *fulfill.Result, procErr error) *outcome.Record {
	rec := &outcome.Record{
		UnitID:           unitID,
		Program:          program.String(),
		RequestSignature: requestSig.String(),
		Source:           source,
		CompletedAt:      time.Now().UTC(),
	}

	if res != nil {
		rec.RequestAccount = res.RequestAccount.String()
		rec.Seed = hex.EncodeToString(res.Seed[:])
		if len(res.Proof) > 0 {
			rec.Proof = hex.EncodeToString(res.Proof)
		}
		if !res.Signature.IsZero() {
			rec.ResponseSignature = res.Signature.String()
		}
	}

	switch {
	case procErr != nil:
		rec.Status = outcome.StatusFailed
		rec.Error = procErr.Error()
	case res != nil && res.AlreadyFulfilled:
		rec.Status = outcome.StatusSkipped
	default:
		rec.Status = outcome.StatusFulfilled
	}
	return rec
}
