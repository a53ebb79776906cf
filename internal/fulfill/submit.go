// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package fulfill

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"

	"github.com/fortuna-labs/fortuna/internal/logging"
	"github.com/fortuna-labs/fortuna/internal/metrics"
)

// SubmitClient is the narrow RPC surface transaction submission needs.
type SubmitClient interface {
	// LatestBlockhash returns a fresh recent blockhash.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)

	// SendTransaction submits a signed transaction with preflight enabled
	// and returns its signature.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// ConfirmTransaction blocks until the signature reaches the configured
	// commitment or errors on chain.
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error
}

// SubmitConfig tunes the retry loop.
type SubmitConfig struct {
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration

	// MaxInterval caps the exponential delay growth.
	MaxInterval time.Duration

	// MaxRetries bounds resend attempts after the first. Zero means a
	// single attempt.
	MaxRetries uint64
}

// DefaultSubmitConfig matches a blockhash lifetime of roughly a minute.
func DefaultSubmitConfig() SubmitConfig {
	return SubmitConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		MaxRetries:      10,
	}
}

// Submitter signs and lands callback transactions. Each attempt rebuilds the
// transaction against a fresh blockhash, so retries survive blockhash expiry.
type Submitter struct {
	client SubmitClient
	signer solana.PrivateKey
	cfg    SubmitConfig
}

// NewSubmitter creates a Submitter paying fees from signer.
func NewSubmitter(client SubmitClient, signer solana.PrivateKey, cfg SubmitConfig) *Submitter {
	return &Submitter{client: client, signer: signer, cfg: cfg}
}

// Submit sends the instruction and waits for confirmation. Retryable
// failures are resent with exponential backoff; terminal failures and an
// exhausted retry budget return an error.
func (s *Submitter) Submit(ctx context.Context, instruction solana.Instruction) (solana.Signature, error) {
	bo := s.newBackOff()
	logger := logging.FromContext(ctx)

	for attempt := 1; ; attempt++ {
		metrics.SubmissionAttempts.Inc()

		sig, err := s.attempt(ctx, instruction)
		if err == nil {
			if err := s.client.ConfirmTransaction(ctx, sig); err != nil {
				return solana.Signature{}, fmt.Errorf("confirm transaction %s: %w", sig, err)
			}
			return sig, nil
		}

		retryable, terminal := classifySubmit(err)
		if !retryable {
			if terminal == nil {
				terminal = err
			}
			return solana.Signature{}, terminal
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return solana.Signature{}, fmt.Errorf("%w after %d attempts: %v", ErrSubmissionExhausted, attempt, err)
		}

		metrics.SubmissionRetries.Inc()
		logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("transaction submission failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return solana.Signature{}, ctx.Err()
		}
	}
}

// attempt builds, signs and sends the transaction once.
func (s *Submitter) attempt(ctx context.Context, instruction solana.Instruction) (solana.Signature, error) {
	blockhash, err := s.client.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		blockhash,
		solana.TransactionPayer(s.signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.signer.PublicKey()) {
			return &s.signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	return s.client.SendTransaction(ctx, tx)
}

func (s *Submitter) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.cfg.InitialInterval
	exp.MaxInterval = s.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, s.cfg.MaxRetries)
}
