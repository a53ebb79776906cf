// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewUnitID_Unique(t *testing.T) {
	a := NewUnitID()
	b := NewUnitID()
	if a == "" || b == "" {
		t.Fatal("unit id must not be empty")
	}
	if a == b {
		t.Errorf("unit ids should be unique, both were %q", a)
	}
}

func TestUnitIDFromContext(t *testing.T) {
	ctx := context.Background()
	if got := UnitIDFromContext(ctx); got != "" {
		t.Errorf("expected empty unit id, got %q", got)
	}

	ctx = ContextWithUnitID(ctx, "unit-42")
	if got := UnitIDFromContext(ctx); got != "unit-42" {
		t.Errorf("expected unit-42, got %q", got)
	}
}

func TestFromContext_CarriesUnitAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf).With().Str("program", "p1").Logger()

	ctx := ContextWithLogger(context.Background(), logger)
	ctx = ContextWithUnitID(ctx, "unit-7")

	ctxLogger := FromContext(ctx)
	ctxLogger.Info().Msg("ping")

	out := buf.String()
	if !strings.Contains(out, `"program":"p1"`) {
		t.Errorf("expected program field in output, got %q", out)
	}
	if !strings.Contains(out, `"unit":"unit-7"`) {
		t.Errorf("expected unit field in output, got %q", out)
	}
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	fallbackLogger := FromContext(context.Background())
	fallbackLogger.Info().Msg("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("expected fallback message via global logger, got %q", buf.String())
	}
}
