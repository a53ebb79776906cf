// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package watcher

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCHistory implements HistoryClient over a solana-go RPC client.
type RPCHistory struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCHistory wraps client.
func NewRPCHistory(client *rpc.Client, commitment rpc.CommitmentType) *RPCHistory {
	return &RPCHistory{client: client, commitment: commitment}
}

// Signatures implements HistoryClient.
func (h *RPCHistory) Signatures(ctx context.Context, address solana.PublicKey, before solana.Signature, limit int) ([]SignatureInfo, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: h.commitment,
	}
	if !before.IsZero() {
		opts.Before = before
	}

	out, err := h.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
	if err != nil {
		return nil, err
	}

	infos := make([]SignatureInfo, 0, len(out))
	for _, entry := range out {
		if entry == nil {
			continue
		}
		infos = append(infos, SignatureInfo{
			Signature: entry.Signature,
			Err:       entry.Err,
		})
	}
	return infos, nil
}

// TransactionLogs implements HistoryClient.
func (h *RPCHistory) TransactionLogs(ctx context.Context, sig solana.Signature) ([]string, error) {
	maxVersion := uint64(0)
	out, err := h.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     h.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, err
	}
	if out == nil || out.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no metadata", sig)
	}
	return out.Meta.LogMessages, nil
}
