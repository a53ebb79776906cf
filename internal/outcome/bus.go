// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package outcome

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Topic is the single bus topic fulfillment records travel on.
const Topic = "fulfillments"

// Bus is an in-process pub/sub channel for fulfillment records. Publishing
// never blocks the pipeline longer than the configured buffer allows, and
// subscribers each receive every record.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.RWMutex
	closed bool
}

// NewBus creates the bus. bufferLen bounds how many unconsumed records a slow
// subscriber may hold before publishers block.
func NewBus(bufferLen int64, logger zerolog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: bufferLen,
		}, NewWatermillLogger(logger)),
	}
}

// Publish serializes a record onto the bus.
func (b *Bus) Publish(rec *Record) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("outcome bus is closed")
	}
	b.mu.RUnlock()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal outcome record: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish outcome record: %w", err)
	}
	return nil
}

// Subscribe returns a channel of records. The channel closes when the bus
// closes or the context is cancelled.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *Record, error) {
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe outcome records: %w", err)
	}

	out := make(chan *Record)
	go func() {
		defer close(out)
		for msg := range msgs {
			var rec Record
			if err := json.Unmarshal(msg.Payload, &rec); err != nil {
				// Poison messages are acked and dropped; the bus is
				// in-process, so this indicates a programming error.
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- &rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

// watermillLogger adapts zerolog to watermill's LoggerAdapter.
type watermillLogger struct {
	logger zerolog.Logger
}

// NewWatermillLogger returns a watermill LoggerAdapter backed by zerolog.
func NewWatermillLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: logger}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), fields).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Info(), fields).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), fields).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := l.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return &watermillLogger{logger: logger}
}

func (l *watermillLogger) event(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}
