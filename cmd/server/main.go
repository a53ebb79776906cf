// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package main is the entry point for the Fortuna oracle daemon.
//
// Fortuna is the off-chain half of a Solana verifiable-randomness oracle. It
// subscribes to the log stream of one or more randomness programs, and for
// every request event it computes an ECVRF proof over the request's seed and
// lands the stored callback instruction back on chain with the result filled
// in. A one-shot backfill scan catches requests raised while the oracle was
// offline.
//
// # Application Architecture
//
// The daemon initializes in the following order:
//
//  1. Configuration: Koanf v2 layering of defaults, YAML file, FORTUNA_* env
//  2. Keys: fee-payer signer and the ECVRF secret
//  3. Journal: embedded Badger store of fulfillment records
//  4. Outcome bus: in-process Watermill channel from pipeline to journal
//  5. Supervisor tree: watchers + backfill (ingest), journal writer
//     (processing), HTTP server (api)
//
// # Configuration
//
// Everything is configurable through FORTUNA_* environment variables or a
// fortuna.yaml file; see internal/config. The required settings:
//
//	export FORTUNA_PROGRAMS=<base58 program id>[,<more>]
//	export FORTUNA_SIGNER_KEY=<base58 key or keygen file path>
//	export FORTUNA_VRF_SECRET=<hex 32-byte secret>
//	./fortuna
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: subscriptions close,
// in-flight fulfillments run to completion under their own deadline, the
// journal flushes, and the HTTP server drains.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/fortuna-labs/fortuna/internal/api"
	"github.com/fortuna-labs/fortuna/internal/config"
	"github.com/fortuna-labs/fortuna/internal/fulfill"
	"github.com/fortuna-labs/fortuna/internal/journal"
	"github.com/fortuna-labs/fortuna/internal/logging"
	"github.com/fortuna-labs/fortuna/internal/outcome"
	"github.com/fortuna-labs/fortuna/internal/supervisor"
	"github.com/fortuna-labs/fortuna/internal/vrf"
	"github.com/fortuna-labs/fortuna/internal/watcher"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fortuna: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().
		Str("version", version).
		Str("cluster", cfg.Cluster.Name).
		Strs("programs", cfg.Oracle.Programs).
		Msg("fortuna starting")

	// Keys.
	signer, err := cfg.Oracle.Signer()
	if err != nil {
		return err
	}
	secret, err := cfg.Oracle.VRFSecretBytes()
	if err != nil {
		return err
	}
	engine, err := vrf.New(secret)
	if err != nil {
		return err
	}
	logger.Info().
		Str("fee_payer", signer.PublicKey().String()).
		Hex("vrf_public_key", engine.PublicKey()).
		Msg("keys loaded")

	programs, err := cfg.Oracle.ProgramIDs()
	if err != nil {
		return err
	}
	commitment, err := cfg.Cluster.CommitmentType()
	if err != nil {
		return err
	}

	// RPC plumbing and the shared pipeline.
	rpcClient := rpc.New(cfg.Cluster.RPCEndpoint)
	oracleRPC := fulfill.NewRPC(rpcClient, commitment)
	submitter := fulfill.NewSubmitter(oracleRPC, signer, fulfill.SubmitConfig{
		InitialInterval: cfg.Submit.InitialInterval,
		MaxInterval:     cfg.Submit.MaxInterval,
		MaxRetries:      cfg.Submit.MaxRetries,
	})
	pipeline := fulfill.NewPipeline(programs, engine, oracleRPC, submitter)

	// Journal and outcome bus.
	var store *journal.Store
	if cfg.Journal.InMemory {
		store, err = journal.OpenInMemory()
	} else {
		store, err = journal.Open(cfg.Journal.Dir)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	bus := outcome.NewBus(256, logger)
	defer bus.Close()

	// Supervisor tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})

	tree.AddProcessingService(journal.NewWriter(store, bus))

	for _, program := range programs {
		connect := watcher.PubsubConnect(cfg.Cluster.WSEndpoint, program, commitment)
		tree.AddIngestService(watcher.NewProgramWatcher(program, connect, pipeline, bus))

		if cfg.Backfill.Enabled {
			history := watcher.NewRPCHistory(rpcClient, commitment)
			tree.AddIngestService(watcher.NewBackfillScanner(program, history, store, pipeline, bus, watcher.BackfillConfig{
				PageSize:        cfg.Backfill.PageSize,
				RatePerSecond:   cfg.Backfill.RatePerSecond,
				BreakerFailures: cfg.Backfill.BreakerFailures,
				BreakerCooldown: cfg.Backfill.BreakerCooldown,
			}))
		}
	}

	if cfg.Server.Enabled {
		tree.AddAPIService(api.NewServer(cfg.Server.Addr, store, cfg.Supervisor.ShutdownTimeout))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("fortuna stopped")
	return nil
}
