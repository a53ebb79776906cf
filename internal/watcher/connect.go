// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package watcher

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/fortuna-labs/fortuna/internal/pubsub"
)

// PubsubConnect returns a ConnectFunc that dials the WebSocket endpoint and
// subscribes to logs mentioning program. Each call opens a fresh connection,
// so a supervisor restart always starts from a clean socket.
func PubsubConnect(endpoint string, program solana.PublicKey, commitment rpc.CommitmentType) ConnectFunc {
	return func(ctx context.Context) (Subscription, func(), error) {
		client, err := pubsub.Dial(ctx, endpoint)
		if err != nil {
			return nil, nil, err
		}
		sub, err := client.SubscribeLogsMentions(ctx, program, commitment)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return sub, func() { client.Close() }, nil
	}
}
