// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package api exposes the oracle's small observability surface over HTTP:
// liveness, Prometheus metrics, and recent fulfillment records from the
// journal. It does not participate in fulfillment.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fortuna-labs/fortuna/internal/logging"
	"github.com/fortuna-labs/fortuna/internal/outcome"
)

// RecentStore reads recent fulfillment records, newest first.
type RecentStore interface {
	Recent(limit int) ([]*outcome.Record, error)
}

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// Server is the supervised HTTP server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewServer builds the server listening on addr, reading records from store.
func NewServer(addr string, store RecentStore, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/fulfillments", handleFulfillments(store))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service. ListenAndServe blocks, so it runs in a
// goroutine while Serve waits for cancellation; http.ErrServerClosed is the
// expected result of a graceful shutdown and maps to the context error.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger := logging.Logger()
	logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string {
	return "http-server"
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleFulfillments(store RecentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRecentLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		if limit > maxRecentLimit {
			limit = maxRecentLimit
		}

		records, err := store.Recent(limit)
		if err != nil {
			logger := logging.Logger()
			logger.Error().Err(err).Msg("recent fulfillments query failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal read failed"})
			return
		}
		if records == nil {
			records = []*outcome.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":        len(records),
			"fulfillments": records,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
