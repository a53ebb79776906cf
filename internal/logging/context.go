// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context keys for logging.
type contextKey string

const (
	// unitIDKey is the context key for fulfillment work-unit ids.
	unitIDKey contextKey = "unit_id"

	// loggerKey is the context key for storing a logger instance.
	loggerKey contextKey = "logger"
)

// NewUnitID creates a unique id for one dispatched fulfillment unit.
func NewUnitID() string {
	return uuid.New().String()
}

// ContextWithUnitID returns a new context carrying the given work-unit id.
func ContextWithUnitID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, unitIDKey, id)
}

// UnitIDFromContext retrieves the work-unit id from context.
// Returns empty string if not present.
func UnitIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(unitIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithLogger stores a pre-configured logger in the context.
// Pipeline stages use this to inherit the program/signature/unit fields
// attached by the dispatching watcher.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in the context, or the global logger
// if none is stored. The returned logger additionally carries the work-unit
// id when one is present in the context.
func FromContext(ctx context.Context) zerolog.Logger {
	logger, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		logger = Logger()
	}
	if id := UnitIDFromContext(ctx); id != "" {
		logger = logger.With().Str("unit", id).Logger()
	}
	return logger
}
