// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package fulfill

import (
	"bytes"
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fortuna-labs/fortuna/internal/anchor"
	"github.com/fortuna-labs/fortuna/internal/logging"
)

// BuildCallback completes the stored callback template with computed
// randomness and returns the ready-to-submit instruction.
//
// The result placeholder is located by scanning the instruction data for the
// sentinel pattern, not by assuming an offset: programs usually put the
// result right after their instruction discriminator, but nothing enforces
// that, so an unusual position is logged and honored.
func BuildCallback(ctx context.Context, rec *anchor.RequestRecord, result [anchor.ResultLen]byte) (solana.Instruction, error) {
	offset := bytes.Index(rec.Callback.Data, anchor.ResultSentinel[:])
	if offset < 0 {
		return nil, ErrPlaceholderNotFound
	}
	if offset != anchor.ExpectedResultOffset {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Int("offset", offset).
			Msg("result placeholder is not the first instruction parameter")
	}

	data := make([]byte, len(rec.Callback.Data))
	copy(data, rec.Callback.Data)
	copy(data[offset:], result[:])

	metas := make(solana.AccountMetaSlice, len(rec.Callback.Accounts))
	for i, acc := range rec.Callback.Accounts {
		metas[i] = &solana.AccountMeta{
			PublicKey:  acc.Address,
			IsSigner:   acc.IsSigner,
			IsWritable: acc.IsWritable,
		}
	}

	return solana.NewInstruction(rec.Callback.ProgramID, metas, data), nil
}
