// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package fulfill

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPlaceholderNotFound means the stored callback instruction data
	// contains no result placeholder to overwrite.
	ErrPlaceholderNotFound = errors.New("result placeholder not found in callback instruction data")

	// ErrProgramMismatch means the transaction's request event was emitted by
	// a different program than the one this subscription watches. The owning
	// program's own watcher handles it.
	ErrProgramMismatch = errors.New("request event program id does not match the watched program")

	// ErrZeroSeed means the request account carries an all-zero seed, which
	// would make the randomness trivially predictable per oracle key.
	ErrZeroSeed = errors.New("request seed is zero")

	// ErrSubmissionExhausted means the retry budget ran out before the
	// callback transaction landed.
	ErrSubmissionExhausted = errors.New("submission failed: retry budget exhausted")
)

// PreflightError is a terminal submission failure whose simulation logs were
// returned by the RPC node. The logs are the only diagnostic the on-chain
// program gives us, so they are carried verbatim.
type PreflightError struct {
	Reason string
	Logs   []string
}

// Error implements the error interface.
func (e *PreflightError) Error() string {
	if len(e.Logs) == 0 {
		return fmt.Sprintf("preflight failed: %s", e.Reason)
	}
	return fmt.Sprintf("preflight failed: %s\n%s", e.Reason, strings.Join(e.Logs, "\n"))
}
