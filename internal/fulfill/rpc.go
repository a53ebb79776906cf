// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package fulfill

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPC adapts a solana-go RPC client to the pipeline's fetcher and submitter
// interfaces.
type RPC struct {
	client       *rpc.Client
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	confirmAfter time.Duration
}

// NewRPC wraps client. All reads and preflights run at the given commitment.
func NewRPC(client *rpc.Client, commitment rpc.CommitmentType) *RPC {
	return &RPC{
		client:       client,
		commitment:   commitment,
		pollInterval: time.Second,
		confirmAfter: 90 * time.Second,
	}
}

// AccountData implements AccountFetcher.
func (r *RPC) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	out, err := r.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: r.commitment,
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("account %s not found", account)
	}
	return out.Value.Data.GetBinary(), nil
}

// LatestBlockhash implements SubmitClient.
func (r *RPC) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := r.client.GetLatestBlockhash(ctx, r.commitment)
	if err != nil {
		return solana.Hash{}, err
	}
	return out.Value.Blockhash, nil
}

// SendTransaction implements SubmitClient. Preflight stays enabled so that
// program failures surface as simulation logs instead of burned fees.
func (r *RPC) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return r.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: r.commitment,
	})
}

// ConfirmTransaction implements SubmitClient by polling signature statuses
// until the transaction reaches at least confirmed commitment.
func (r *RPC) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, r.confirmAfter)
	defer cancel()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		out, err := r.client.GetSignatureStatuses(ctx, true, sig)
		if err == nil && out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		}
	}
}
