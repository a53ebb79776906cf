// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

const testProgram = "DEoxdV1CCWvbeGp8PpwkUifmm3pV5AgtFwFaS4P7qZeZ"

func testSecretHex() string {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i + 1)
	}
	return hex.EncodeToString(secret)
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FORTUNA_PROGRAMS", testProgram)
	t.Setenv("FORTUNA_SIGNER_KEY", solana.NewWallet().PrivateKey.String())
	t.Setenv("FORTUNA_VRF_SECRET", testSecretHex())
}

func TestLoad_DefaultsWithEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FORTUNA_CLUSTER", "testnet")
	t.Setenv("FORTUNA_LOG_LEVEL", "debug")
	t.Setenv("FORTUNA_SUBMIT_MAX_RETRIES", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Cluster.Name != "testnet" {
		t.Errorf("cluster = %q", cfg.Cluster.Name)
	}
	if cfg.Cluster.RPCEndpoint == "" || cfg.Cluster.WSEndpoint == "" {
		t.Error("endpoints not resolved from cluster name")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if cfg.Submit.MaxRetries != 3 {
		t.Errorf("max retries = %d", cfg.Submit.MaxRetries)
	}
	// Untouched defaults survive.
	if cfg.Backfill.PageSize != 1000 {
		t.Errorf("backfill page size = %d", cfg.Backfill.PageSize)
	}
}

func TestLoad_ProgramsCommaSeparated(t *testing.T) {
	setRequiredEnv(t)
	second := solana.NewWallet().PublicKey().String()
	t.Setenv("FORTUNA_PROGRAMS", testProgram+", "+second)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ids, err := cfg.Oracle.ProgramIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("programs = %d, want 2", len(ids))
	}
	if ids[1].String() != second {
		t.Errorf("second program = %s, want %s", ids[1], second)
	}
}

func TestLoad_YAMLFileLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fortuna.yaml")
	content := `
cluster:
  name: localnet
  commitment: finalized
oracle:
  programs:
    - ` + testProgram + `
server:
  addr: ":9999"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("FORTUNA_SIGNER_KEY", solana.NewWallet().PrivateKey.String())
	t.Setenv("FORTUNA_VRF_SECRET", testSecretHex())
	// Env beats file.
	t.Setenv("FORTUNA_COMMITMENT", "processed")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.Name != "localnet" {
		t.Errorf("cluster = %q, want localnet from file", cfg.Cluster.Name)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Cluster.Commitment != "processed" {
		t.Errorf("commitment = %q, want env override", cfg.Cluster.Commitment)
	}
}

func TestValidate_Failures(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Oracle.Programs = []string{testProgram}
		cfg.Oracle.SignerKey = solana.NewWallet().PrivateKey.String()
		cfg.Oracle.VRFSecret = testSecretHex()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no programs", func(c *Config) { c.Oracle.Programs = nil }},
		{"bad program id", func(c *Config) { c.Oracle.Programs = []string{"not-base58!"} }},
		{"no signer", func(c *Config) { c.Oracle.SignerKey = "" }},
		{"short vrf secret", func(c *Config) { c.Oracle.VRFSecret = "abcd" }},
		{"bad commitment", func(c *Config) { c.Cluster.Commitment = "maybe" }},
		{"unknown cluster", func(c *Config) { c.Cluster.Name = "moonnet" }},
		{"no journal dir", func(c *Config) { c.Journal.Dir = "" }},
		{"server without addr", func(c *Config) { c.Server.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestSigner_FromKeygenFile(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "signer.json")
	parts := make([]string, len(key))
	for i, b := range []byte(key) {
		parts[i] = strconv.Itoa(int(b))
	}
	raw := "[" + strings.Join(parts, ",") + "]"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	oracle := OracleConfig{SignerKey: path}
	loaded, err := oracle.Signer()
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if !loaded.PublicKey().Equals(key.PublicKey()) {
		t.Error("loaded key disagrees with written key")
	}
}

func TestVRFSecretBytes(t *testing.T) {
	oracle := OracleConfig{VRFSecret: testSecretHex()}
	secret, err := oracle.VRFSecretBytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(secret) != 32 {
		t.Errorf("len = %d", len(secret))
	}

	oracle.VRFSecret = "zz"
	if _, err := oracle.VRFSecretBytes(); err == nil {
		t.Error("expected error for non-hex secret")
	}
}

func TestDefaultConfig_Durations(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Submit.InitialInterval != 500*time.Millisecond {
		t.Errorf("initial interval = %v", cfg.Submit.InitialInterval)
	}
	if cfg.Supervisor.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.Supervisor.ShutdownTimeout)
	}
}
