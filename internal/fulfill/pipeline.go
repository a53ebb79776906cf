// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package fulfill turns one observed transaction into one landed callback:
// it extracts the randomness request from the transaction's logs, loads the
// on-chain request account, computes the VRF output for its seed, rewrites
// the stored callback template with the result, and submits the transaction
// with retry.
//
// Processing is idempotent end to end. The VRF is deterministic per seed and
// a request whose account already holds a result is skipped, so replaying the
// same transaction (live redelivery, backfill overlap) cannot double-spend or
// produce conflicting randomness.
package fulfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/fortuna-labs/fortuna/internal/anchor"
	"github.com/fortuna-labs/fortuna/internal/logging"
	"github.com/fortuna-labs/fortuna/internal/logparse"
	"github.com/fortuna-labs/fortuna/internal/metrics"
	"github.com/fortuna-labs/fortuna/internal/vrf"
)

// AccountFetcher loads raw on-chain account data.
type AccountFetcher interface {
	AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
}

// TxSubmitter lands a single instruction on chain.
type TxSubmitter interface {
	Submit(ctx context.Context, instruction solana.Instruction) (solana.Signature, error)
}

// Result describes one processed randomness request.
type Result struct {
	// Program is the tracked program that raised the request.
	Program solana.PublicKey

	// RequestAccount is the on-chain request account.
	RequestAccount solana.PublicKey

	// Seed is the VRF input read from the account.
	Seed [anchor.SeedLen]byte

	// Proof and Randomness are the VRF outputs. Empty when skipped.
	Proof      []byte
	Randomness [anchor.ResultLen]byte

	// Signature is the landed callback transaction. Zero when skipped.
	Signature solana.Signature

	// AlreadyFulfilled marks a request whose account already held a result,
	// so no transaction was sent.
	AlreadyFulfilled bool
}

// Pipeline wires the per-transaction fulfillment steps together.
type Pipeline struct {
	programs  []solana.PublicKey
	engine    *vrf.Engine
	fetcher   AccountFetcher
	submitter TxSubmitter
}

// NewPipeline builds a Pipeline fulfilling requests of the tracked programs.
func NewPipeline(programs []solana.PublicKey, engine *vrf.Engine, fetcher AccountFetcher, submitter TxSubmitter) *Pipeline {
	return &Pipeline{
		programs:  programs,
		engine:    engine,
		fetcher:   fetcher,
		submitter: submitter,
	}
}

// Process handles one transaction's log lines on behalf of one watched
// program. It returns (nil, nil) when the transaction contains no randomness
// request, a Result when one was handled (or found already fulfilled), and an
// error when handling failed.
//
// A request event raised by a program other than the given one is rejected
// with ErrProgramMismatch. A transaction can mention several watched programs
// and so reach several subscriptions; the guard makes sure exactly one of
// them, the emitting program's own, fulfills the request.
func (p *Pipeline) Process(ctx context.Context, program solana.PublicKey, logs []string) (*Result, error) {
	logger := logging.FromContext(ctx)

	events, parseErrs := logparse.Parse(logs, p.programs)
	if len(parseErrs) > 0 {
		for _, perr := range parseErrs {
			metrics.ParseErrors.WithLabelValues(perr.Kind.String()).Inc()
		}
		joined := make([]error, len(parseErrs))
		for i, perr := range parseErrs {
			joined[i] = perr
		}
		return nil, fmt.Errorf("parse transaction logs: %w", errors.Join(joined...))
	}

	event, ok := firstRequestEvent(events)
	if !ok {
		return nil, nil
	}
	if !event.ProgramID.Equals(program) {
		return nil, fmt.Errorf("request event from %s while watching %s: %w",
			event.ProgramID, program, ErrProgramMismatch)
	}

	request, err := anchor.ParseRequestEvent(event.Data)
	if err != nil {
		return nil, fmt.Errorf("decode request event: %w", err)
	}
	logger = logger.With().
		Str("request_account", request.RequestAccount.String()).
		Str("program", event.ProgramID.String()).
		Logger()
	ctx = logging.ContextWithLogger(ctx, logger)

	raw, err := p.fetcher.AccountData(ctx, request.RequestAccount)
	if err != nil {
		return nil, fmt.Errorf("fetch request account %s: %w", request.RequestAccount, err)
	}
	rec, err := anchor.ParseRequestRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("decode request account %s: %w", request.RequestAccount, err)
	}

	res := &Result{
		Program:        event.ProgramID,
		RequestAccount: request.RequestAccount,
		Seed:           rec.Seed,
	}

	var zeroSeed [anchor.SeedLen]byte
	if rec.Seed == zeroSeed {
		return nil, fmt.Errorf("request %s: %w", request.RequestAccount, ErrZeroSeed)
	}

	if rec.Fulfilled() {
		logger.Info().Msg("request already fulfilled, skipping")
		res.AlreadyFulfilled = true
		return res, nil
	}

	proof, randomness, err := p.engine.Prove(rec.Seed[:])
	if err != nil {
		return nil, fmt.Errorf("prove seed for %s: %w", request.RequestAccount, err)
	}
	res.Proof = proof
	res.Randomness = randomness

	instruction, err := BuildCallback(ctx, rec, randomness)
	if err != nil {
		return nil, fmt.Errorf("build callback for %s: %w", request.RequestAccount, err)
	}

	sig, err := p.submitter.Submit(ctx, instruction)
	if err != nil {
		return nil, fmt.Errorf("submit callback for %s: %w", request.RequestAccount, err)
	}
	res.Signature = sig

	logger.Info().
		Str("signature", sig.String()).
		Msg("randomness request fulfilled")
	return res, nil
}

// firstRequestEvent returns the first emitted event carrying the request
// discriminator. Later request events in the same transaction are ignored;
// one transaction opens at most one request.
func firstRequestEvent(events []logparse.Event) (logparse.Event, bool) {
	for _, ev := range events {
		if anchor.IsRequestEvent(ev.Data) {
			return ev, true
		}
	}
	return logparse.Event{}, false
}
