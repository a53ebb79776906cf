// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package pubsub is a minimal Solana WebSocket pub/sub client covering the
// one method the oracle needs: logsSubscribe filtered to transactions that
// mention a program.
//
// A single read loop demultiplexes the socket into per-request reply channels
// and per-subscription notification channels. Any socket failure tears the
// whole client down; reconnection is the caller's concern, which keeps this
// layer free of hidden retry state.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/fortuna-labs/fortuna/internal/logging"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 15 * time.Second
	readTimeout  = 75 * time.Second

	// notificationBuffer bounds undelivered notifications per subscription
	// before the read loop drops new ones.
	notificationBuffer = 256
)

// ErrClosed is returned by operations on a torn-down client.
var ErrClosed = errors.New("pubsub client closed")

// LogsNotification is one transaction observed by a logs subscription.
type LogsNotification struct {
	// Slot the transaction was processed in.
	Slot uint64

	// Signature of the transaction.
	Signature solana.Signature

	// Err is non-nil when the transaction failed on chain. Failed
	// transactions cannot have created a request account.
	Err interface{}

	// Logs are the transaction's raw log lines.
	Logs []string
}

// Client is one WebSocket connection to a Solana pub/sub endpoint.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex // serializes writes to the socket

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan *wsReply
	subs    map[uint64]chan *LogsNotification
	err     error

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to a ws:// or wss:// pub/sub endpoint and starts the read
// and keepalive loops.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan *wsReply),
		subs:    make(map[uint64]chan *LogsNotification),
		closed:  make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// SubscribeLogsMentions subscribes to log notifications for transactions
// mentioning program at the given commitment.
func (c *Client) SubscribeLogsMentions(ctx context.Context, program solana.PublicKey, commitment rpc.CommitmentType) (*LogsSubscription, error) {
	params := []interface{}{
		map[string]interface{}{"mentions": []string{program.String()}},
		map[string]interface{}{"commitment": string(commitment)},
	}

	raw, err := c.call(ctx, "logsSubscribe", params)
	if err != nil {
		return nil, fmt.Errorf("logsSubscribe %s: %w", program, err)
	}

	var subID uint64
	if err := json.Unmarshal(raw, &subID); err != nil {
		return nil, fmt.Errorf("logsSubscribe %s: decode subscription id: %w", program, err)
	}

	ch := make(chan *LogsNotification, notificationBuffer)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.subs[subID] = ch
	c.mu.Unlock()

	return &LogsSubscription{client: c, id: subID, ch: ch}, nil
}

// Close tears the connection down. All subscription channels close and all
// in-flight calls fail.
func (c *Client) Close() error {
	c.teardown(ErrClosed)
	return nil
}

// Err returns the error that tore the client down, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// LogsSubscription is one active logsSubscribe stream.
type LogsSubscription struct {
	client *Client
	id     uint64
	ch     chan *LogsNotification
}

// Recv returns the notification channel. It closes when the subscription is
// cancelled or the client tears down.
func (s *LogsSubscription) Recv() <-chan *LogsNotification {
	return s.ch
}

// Unsubscribe cancels the server-side subscription and closes the channel.
func (s *LogsSubscription) Unsubscribe(ctx context.Context) error {
	// Closing under the mutex keeps the read loop, which sends while holding
	// it, from writing to a closed channel.
	s.client.mu.Lock()
	if ch, ok := s.client.subs[s.id]; ok {
		delete(s.client.subs, s.id)
		close(ch)
	}
	s.client.mu.Unlock()

	_, err := s.client.call(ctx, "logsUnsubscribe", []interface{}{s.id})
	if err != nil && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("logsUnsubscribe %d: %w", s.id, err)
	}
	return nil
}

// Wire types.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wsError) Error() string {
	return fmt.Sprintf("pubsub rpc error %d: %s", e.Code, e.Message)
}

type wsReply struct {
	Result json.RawMessage
	Err    *wsError
}

type wsEnvelope struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wsError        `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *struct {
		Result       json.RawMessage `json:"result"`
		Subscription uint64          `json:"subscription"`
	} `json:"params,omitempty"`
}

type logsResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Signature string      `json:"signature"`
		Err       interface{} `json:"err"`
		Logs      []string    `json:"logs"`
	} `json:"value"`
}

// call sends one request and waits for its reply.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	reply := make(chan *wsReply, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(&wsRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Result, nil
	case <-c.closed:
		return nil, c.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) write(req *wsRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", req.Method, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write %s request: %w", req.Method, err)
	}
	return nil
}

// readLoop demultiplexes incoming frames until the socket fails.
func (c *Client) readLoop() {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.teardown(fmt.Errorf("pubsub read: %w", err))
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logger := logging.Logger()
			logger.Warn().Err(err).Msg("undecodable pubsub frame")
			continue
		}

		switch {
		case env.ID != nil:
			c.deliverReply(*env.ID, &wsReply{Result: env.Result, Err: env.Error})
		case env.Method == "logsNotification" && env.Params != nil:
			c.deliverNotification(env.Params.Subscription, env.Params.Result)
		}
	}
}

func (c *Client) deliverReply(id uint64, reply *wsReply) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if ok {
		ch <- reply
	}
}

func (c *Client) deliverNotification(subID uint64, raw json.RawMessage) {
	var res logsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		logger := logging.Logger()
		logger.Warn().Err(err).Msg("undecodable logs notification")
		return
	}
	sig, err := solana.SignatureFromBase58(res.Value.Signature)
	if err != nil {
		logger := logging.Logger()
		logger.Warn().Err(err).
			Str("signature", res.Value.Signature).
			Msg("notification with malformed signature")
		return
	}

	note := &LogsNotification{
		Slot:      res.Context.Slot,
		Signature: sig,
		Err:       res.Value.Err,
		Logs:      res.Value.Logs,
	}

	// The send stays under the mutex so that Unsubscribe and teardown, which
	// close the channel under the same mutex, cannot race it. It never
	// blocks: a full buffer drops the notification instead.
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[subID]
	if !ok {
		return
	}

	select {
	case ch <- note:
	default:
		logger := logging.Logger()
		logger.Warn().
			Uint64("subscription", subID).
			Str("signature", res.Value.Signature).
			Msg("notification buffer full, dropping")
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.teardown(fmt.Errorf("pubsub ping: %w", err))
				return
			}
		case <-c.closed:
			return
		}
	}
}

// teardown closes the socket once and fails every consumer.
func (c *Client) teardown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.mu.Unlock()

		close(c.closed)
		c.conn.Close()
	})
}
