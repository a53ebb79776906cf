// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package fulfill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// classifySubmit sorts a transaction-submission error into retryable and
// terminal. Retryable errors get a fresh blockhash on the next attempt.
//
// The split follows what the RPC node actually reports:
//   - a stale or reused blockhash means the transaction can simply be rebuilt
//     and resent;
//   - an RPC-side simulation failure carries program logs and will fail the
//     same way on every retry, so it is terminal;
//   - transport-level errors (node restart, load balancer hiccup) are
//     retryable;
//   - context cancellation is terminal because the caller is gone.
func classifySubmit(err error) (retryable bool, terminal error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, err
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		// Anything below the JSON-RPC layer is transient by assumption.
		return true, nil
	}

	reason, logs := preflightDetails(rpcErr)
	if strings.Contains(reason, "BlockhashNotFound") || strings.Contains(reason, "AlreadyProcessed") {
		return true, nil
	}
	if len(logs) > 0 {
		return false, &PreflightError{Reason: reason, Logs: logs}
	}
	return false, err
}

// preflightDetails extracts the simulation error and program logs from an RPC
// error's data payload, when present.
func preflightDetails(rpcErr *jsonrpc.RPCError) (reason string, logs []string) {
	reason = rpcErr.Message

	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return reason, nil
	}
	if errVal, ok := data["err"]; ok && errVal != nil {
		reason = fmt.Sprintf("%v", errVal)
	}
	if raw, ok := data["logs"].([]interface{}); ok {
		logs = make([]string, 0, len(raw))
		for _, line := range raw {
			if s, ok := line.(string); ok {
				logs = append(logs, s)
			}
		}
	}
	return reason, logs
}
