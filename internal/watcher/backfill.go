// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"github.com/fortuna-labs/fortuna/internal/fulfill"
	"github.com/fortuna-labs/fortuna/internal/logging"
	"github.com/fortuna-labs/fortuna/internal/metrics"
	"github.com/fortuna-labs/fortuna/internal/outcome"
)

// SignatureInfo is one entry of a program's transaction history.
type SignatureInfo struct {
	Signature solana.Signature

	// Err is non-nil when the transaction failed on chain.
	Err interface{}
}

// HistoryClient reads a program's transaction history.
type HistoryClient interface {
	// Signatures returns up to limit signatures for address, newest first,
	// starting strictly before the cursor (zero cursor means the tip).
	Signatures(ctx context.Context, address solana.PublicKey, before solana.Signature, limit int) ([]SignatureInfo, error)

	// TransactionLogs returns the log lines of a confirmed transaction.
	TransactionLogs(ctx context.Context, sig solana.Signature) ([]string, error)
}

// SeenStore answers whether a request transaction was already journaled.
type SeenStore interface {
	Has(requestSignature string) (bool, error)
}

// BackfillConfig tunes the historical scan.
type BackfillConfig struct {
	// PageSize is the signature batch size per history request.
	PageSize int

	// RatePerSecond caps transaction fetches against the RPC node.
	RatePerSecond float64

	// BreakerFailures opens the circuit after this many consecutive fetch
	// failures.
	BreakerFailures uint32

	// BreakerCooldown is how long the circuit stays open.
	BreakerCooldown time.Duration
}

// DefaultBackfillConfig is gentle enough for public RPC endpoints.
func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{
		PageSize:        1000,
		RatePerSecond:   4,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// BackfillScanner walks one program's transaction history once and runs
// every not-yet-journaled request through the pipeline, sequentially and
// rate-limited. It asks the supervisor not to restart it when the walk
// completes; on error it restarts and the journal makes the rescan cheap.
type BackfillScanner struct {
	program  solana.PublicKey
	history  HistoryClient
	seen     SeenStore
	pipeline Processor
	bus      *outcome.Bus
	cfg      BackfillConfig

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]string]
}

// NewBackfillScanner builds the scanner for program.
func NewBackfillScanner(program solana.PublicKey, history HistoryClient, seen SeenStore, pipeline Processor, bus *outcome.Bus, cfg BackfillConfig) *BackfillScanner {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 4
	}

	breaker := gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
		Name:    "backfill-fetch",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BackfillBreakerState.Set(breakerStateValue(to))
			logger := logging.Logger()
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("backfill breaker state change")
		},
	})

	return &BackfillScanner{
		program:  program,
		history:  history,
		seen:     seen,
		pipeline: pipeline,
		bus:      bus,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		breaker:  breaker,
	}
}

// Serve implements suture.Service.
func (s *BackfillScanner) Serve(ctx context.Context) error {
	logger := logging.Logger().With().
		Str("service", s.String()).
		Str("program", s.program.String()).
		Logger()
	logger.Info().Msg("backfill scan starting")

	var (
		cursor    solana.Signature
		scanned   int
		processed int
	)

	for {
		page, err := s.history.Signatures(ctx, s.program, cursor, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("fetch signature page: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, info := range page {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			scanned++
			metrics.BackfillSignaturesScanned.Inc()

			if info.Err != nil {
				continue
			}
			handled, err := s.seen.Has(info.Signature.String())
			if err != nil {
				return fmt.Errorf("journal lookup %s: %w", info.Signature, err)
			}
			if handled {
				metrics.NotificationsSkipped.WithLabelValues(s.program.String(), "duplicate").Inc()
				continue
			}

			if err := s.handle(ctx, info.Signature); err != nil {
				return err
			}
			processed++
		}

		cursor = page[len(page)-1].Signature
	}

	logger.Info().
		Int("signatures", scanned).
		Int("processed", processed).
		Msg("backfill scan complete")
	return suture.ErrDoNotRestart
}

// handle fetches one historical transaction and runs it through the
// pipeline. Pipeline failures are journaled and do not stop the scan; only
// infrastructure failures (rate limit context, open breaker, RPC outage)
// abort it.
func (s *BackfillScanner) handle(ctx context.Context, sig solana.Signature) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	logs, err := s.breaker.Execute(func() ([]string, error) {
		return s.history.TransactionLogs(ctx, sig)
	})
	if err != nil {
		return fmt.Errorf("fetch transaction %s: %w", sig, err)
	}
	metrics.BackfillTransactionsProcessed.Inc()

	unitID := logging.NewUnitID()
	unitLogger := logging.Logger().With().
		Str("program", s.program.String()).
		Str("request_signature", sig.String()).
		Logger()
	unitCtx := logging.ContextWithUnitID(logging.ContextWithLogger(ctx, unitLogger), unitID)

	start := time.Now()
	res, procErr := s.pipeline.Process(unitCtx, s.program, logs)

	switch {
	case procErr != nil:
		metrics.ObserveFulfillment("failed", string(outcome.SourceBackfill), start)
		logger := logging.FromContext(unitCtx)
		logger.Error().Err(procErr).Msg("backfill fulfillment failed")
		s.publish(unitCtx, unitID, sig, res, procErr)

	case res == nil:
		// The transaction mentioned the program without opening a request.

	case res.AlreadyFulfilled:
		metrics.Fulfillments.WithLabelValues("skipped", string(outcome.SourceBackfill)).Inc()
		s.publish(unitCtx, unitID, sig, res, nil)

	default:
		metrics.ObserveFulfillment("fulfilled", string(outcome.SourceBackfill), start)
		s.publish(unitCtx, unitID, sig, res, nil)
	}
	return nil
}

func (s *BackfillScanner) publish(ctx context.Context, unitID string, requestSig solana.Signature, res *fulfill.Result, procErr error) {
	rec := buildRecord(unitID, s.program, requestSig, outcome.SourceBackfill, res, procErr)
	if err := s.bus.Publish(rec); err != nil {
		logger := logging.FromContext(ctx)
		logger.Error().Err(err).Msg("outcome publish failed")
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *BackfillScanner) String() string {
	return "backfill-" + s.program.String()
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
