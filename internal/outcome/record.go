// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package outcome carries the result of one fulfillment attempt from the
// processing pipeline to the consumers that record and expose it. Records
// travel over an in-process Watermill bus so that journaling and serving are
// decoupled from the latency-sensitive submission path.
package outcome

import "time"

// Status is the terminal state of a fulfillment attempt.
type Status string

const (
	// StatusFulfilled means the callback transaction was submitted and
	// confirmed.
	StatusFulfilled Status = "fulfilled"

	// StatusSkipped means the request's account already held a result, so
	// nothing was submitted.
	StatusSkipped Status = "skipped"

	// StatusFailed means the attempt ended with a terminal error.
	StatusFailed Status = "failed"
)

// Source says which ingestion path produced the record.
type Source string

const (
	// SourceLive marks records from the streaming log subscription.
	SourceLive Source = "live"

	// SourceBackfill marks records from the historical signature scan.
	SourceBackfill Source = "backfill"
)

// Record is the durable trace of one fulfillment attempt.
type Record struct {
	// UnitID correlates the record with log lines of the same attempt.
	UnitID string `json:"unit_id"`

	// Program is the tracked program whose request was handled.
	Program string `json:"program"`

	// RequestSignature is the transaction that raised the request event.
	RequestSignature string `json:"request_signature"`

	// RequestAccount is the on-chain request account address.
	RequestAccount string `json:"request_account"`

	// ResponseSignature is the submitted callback transaction, when any.
	ResponseSignature string `json:"response_signature,omitempty"`

	// Seed and Proof are hex-encoded VRF input and proof.
	Seed  string `json:"seed"`
	Proof string `json:"proof,omitempty"`

	// Status is fulfilled, skipped or failed.
	Status Status `json:"status"`

	// Error holds the terminal error text for failed records.
	Error string `json:"error,omitempty"`

	// Source is live or backfill.
	Source Source `json:"source"`

	// CompletedAt is when the attempt reached its terminal state.
	CompletedAt time.Time `json:"completed_at"`
}
