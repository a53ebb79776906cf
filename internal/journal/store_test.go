// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna-labs/fortuna/internal/outcome"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(sig string, completedAt time.Time) *outcome.Record {
	return &outcome.Record{
		UnitID:           "unit-" + sig,
		Program:          "prog",
		RequestSignature: sig,
		RequestAccount:   "acct",
		Status:           outcome.StatusFulfilled,
		Source:           outcome.SourceLive,
		CompletedAt:      completedAt,
	}
}

func TestStore_PutHasGet(t *testing.T) {
	store := testStore(t)

	has, err := store.Has("sig-1")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("empty store reports record present")
	}

	rec := testRecord("sig-1", time.Now())
	if err := store.Put(rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	has, err = store.Has("sig-1")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("stored record not found by signature")
	}

	got, err := store.Get("sig-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.UnitID != rec.UnitID || got.Status != rec.Status {
		t.Errorf("Get = %+v, want %+v", got, rec)
	}

	if missing, err := store.Get("sig-absent"); err != nil || missing != nil {
		t.Errorf("Get absent = (%+v, %v), want (nil, nil)", missing, err)
	}
}

func TestStore_PutRequiresSignature(t *testing.T) {
	store := testStore(t)
	if err := store.Put(&outcome.Record{}); err == nil {
		t.Error("expected error for record without signature")
	}
}

func TestStore_RecentNewestFirst(t *testing.T) {
	store := testStore(t)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("sig-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := store.Put(rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len = %d, want 3", len(records))
	}
	want := []string{"sig-4", "sig-3", "sig-2"}
	for i, rec := range records {
		if rec.RequestSignature != want[i] {
			t.Errorf("records[%d] = %s, want %s", i, rec.RequestSignature, want[i])
		}
	}

	if none, err := store.Recent(0); err != nil || none != nil {
		t.Errorf("Recent(0) = (%v, %v), want (nil, nil)", none, err)
	}
}

func TestWriter_DrainsBus(t *testing.T) {
	store := testStore(t)
	bus := outcome.NewBus(8, zerolog.Nop())
	writer := NewWriter(store, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- writer.Serve(ctx) }()

	// Give the subscriber a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	if err := bus.Publish(testRecord("sig-w", time.Now())); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		has, err := store.Has("sig-w")
		if err != nil {
			t.Fatal(err)
		}
		if has {
			break
		}
		select {
		case <-deadline:
			t.Fatal("record never reached the store")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop on cancel")
	}
	bus.Close()
}

func TestWriter_DrainsBufferedRecordsOnShutdown(t *testing.T) {
	store := testStore(t)
	bus := outcome.NewBus(8, zerolog.Nop())
	defer bus.Close()

	writer := NewWriter(store, bus)
	writer.drainGrace = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- writer.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)

	const n = 5
	for i := 0; i < n; i++ {
		if err := bus.Publish(testRecord(fmt.Sprintf("sig-drain-%d", i), time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	// Stop immediately; the writer must flush what is still on the bus
	// before returning.
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("writer did not stop on cancel")
	}

	for i := 0; i < n; i++ {
		sig := fmt.Sprintf("sig-drain-%d", i)
		has, err := store.Has(sig)
		if err != nil {
			t.Fatal(err)
		}
		if !has {
			t.Errorf("record %s lost during shutdown", sig)
		}
	}
}
