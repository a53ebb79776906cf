// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package config loads and validates the oracle's configuration from
// defaults, an optional YAML file, and environment variables, in that
// precedence order (env wins).
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/fortuna-labs/fortuna/internal/vrf"
)

// Config is the complete oracle configuration.
type Config struct {
	Cluster    ClusterConfig    `koanf:"cluster"`
	Oracle     OracleConfig     `koanf:"oracle"`
	Submit     SubmitConfig     `koanf:"submit"`
	Backfill   BackfillConfig   `koanf:"backfill"`
	Journal    JournalConfig    `koanf:"journal"`
	Server     ServerConfig     `koanf:"server"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ClusterConfig selects the Solana cluster. Explicit endpoints override the
// named cluster's defaults.
type ClusterConfig struct {
	// Name is mainnet-beta, devnet, testnet or localnet.
	Name string `koanf:"name"`

	// RPCEndpoint is the HTTP JSON-RPC endpoint.
	RPCEndpoint string `koanf:"rpc_endpoint"`

	// WSEndpoint is the WebSocket pub/sub endpoint.
	WSEndpoint string `koanf:"ws_endpoint"`

	// Commitment is processed, confirmed or finalized.
	Commitment string `koanf:"commitment"`
}

// OracleConfig identifies what to watch and with which keys to respond.
type OracleConfig struct {
	// Programs are the tracked program ids, base58.
	Programs []string `koanf:"programs"`

	// SignerKey is the fee payer: either a base58-encoded private key or a
	// path to a solana-keygen JSON file.
	SignerKey string `koanf:"signer_key"`

	// VRFSecret is the hex-encoded 32-byte VRF secret key.
	VRFSecret string `koanf:"vrf_secret"`
}

// SubmitConfig tunes the transaction retry loop.
type SubmitConfig struct {
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	MaxRetries      uint64        `koanf:"max_retries"`
}

// BackfillConfig tunes the one-shot historical scan.
type BackfillConfig struct {
	Enabled         bool          `koanf:"enabled"`
	PageSize        int           `koanf:"page_size"`
	RatePerSecond   float64       `koanf:"rate_per_second"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// JournalConfig locates the embedded fulfillment journal.
type JournalConfig struct {
	Dir string `koanf:"dir"`

	// InMemory replaces the on-disk store, for tests and dry runs.
	InMemory bool `koanf:"in_memory"`
}

// ServerConfig configures the HTTP observability server.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Known cluster endpoints.
var clusterEndpoints = map[string][2]string{
	"mainnet-beta": {rpc.MainNetBeta_RPC, rpc.MainNetBeta_WS},
	"devnet":       {rpc.DevNet_RPC, rpc.DevNet_WS},
	"testnet":      {rpc.TestNet_RPC, rpc.TestNet_WS},
	"localnet":     {rpc.LocalNet_RPC, rpc.LocalNet_WS},
}

func defaultConfig() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Name:       "devnet",
			Commitment: "confirmed",
		},
		Submit: SubmitConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     8 * time.Second,
			MaxRetries:      10,
		},
		Backfill: BackfillConfig{
			Enabled:         true,
			PageSize:        1000,
			RatePerSecond:   4,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Journal: JournalConfig{
			Dir: "./data/journal",
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":8090",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ResolveEndpoints fills empty endpoints from the named cluster.
func (c *ClusterConfig) ResolveEndpoints() error {
	if c.RPCEndpoint != "" && c.WSEndpoint != "" {
		return nil
	}
	endpoints, ok := clusterEndpoints[c.Name]
	if !ok {
		return fmt.Errorf("unknown cluster %q and no explicit endpoints", c.Name)
	}
	if c.RPCEndpoint == "" {
		c.RPCEndpoint = endpoints[0]
	}
	if c.WSEndpoint == "" {
		c.WSEndpoint = endpoints[1]
	}
	return nil
}

// CommitmentType returns the typed commitment level.
func (c *ClusterConfig) CommitmentType() (rpc.CommitmentType, error) {
	switch c.Commitment {
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("unknown commitment %q", c.Commitment)
	}
}

// ProgramIDs parses the tracked program ids.
func (c *OracleConfig) ProgramIDs() ([]solana.PublicKey, error) {
	if len(c.Programs) == 0 {
		return nil, fmt.Errorf("no programs configured")
	}
	ids := make([]solana.PublicKey, 0, len(c.Programs))
	for _, raw := range c.Programs {
		id, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid program id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Signer loads the fee-payer key, from a keygen file when SignerKey is a
// path, else from base58.
func (c *OracleConfig) Signer() (solana.PrivateKey, error) {
	if c.SignerKey == "" {
		return nil, fmt.Errorf("signer key not configured")
	}
	if _, err := os.Stat(c.SignerKey); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(c.SignerKey)
		if err != nil {
			return nil, fmt.Errorf("load signer keygen file: %w", err)
		}
		return key, nil
	}
	key, err := solana.PrivateKeyFromBase58(c.SignerKey)
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	return key, nil
}

// VRFSecretBytes decodes the hex VRF secret.
func (c *OracleConfig) VRFSecretBytes() ([]byte, error) {
	secret, err := hex.DecodeString(c.VRFSecret)
	if err != nil {
		return nil, fmt.Errorf("decode vrf secret: %w", err)
	}
	if len(secret) != vrf.SecretLen {
		return nil, fmt.Errorf("vrf secret must be %d bytes, got %d", vrf.SecretLen, len(secret))
	}
	return secret, nil
}

// Validate checks the configuration for internal consistency. It does not
// touch the network or the filesystem beyond the signer key probe.
func (c *Config) Validate() error {
	if err := c.Cluster.ResolveEndpoints(); err != nil {
		return err
	}
	if _, err := c.Cluster.CommitmentType(); err != nil {
		return err
	}
	if _, err := c.Oracle.ProgramIDs(); err != nil {
		return err
	}
	if c.Oracle.SignerKey == "" {
		return fmt.Errorf("oracle.signer_key is required")
	}
	if _, err := c.Oracle.VRFSecretBytes(); err != nil {
		return err
	}
	if c.Submit.MaxRetries > 0 && c.Submit.InitialInterval <= 0 {
		return fmt.Errorf("submit.initial_interval must be positive")
	}
	if c.Backfill.Enabled && c.Backfill.PageSize <= 0 {
		return fmt.Errorf("backfill.page_size must be positive")
	}
	if !c.Journal.InMemory && c.Journal.Dir == "" {
		return fmt.Errorf("journal.dir is required")
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the server is enabled")
	}
	return nil
}
