// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package vrf computes verifiable randomness over the ECVRF-SECP256K1-SHA256-TAI
// suite. For a fixed secret key the output is a pure function of the seed:
// re-proving the same request always yields the same randomness, so retries
// and replays are harmless.
package vrf

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/vechain/go-ecvrf"
)

const (
	// SecretLen is the required secret-key length in bytes.
	SecretLen = 32

	// ResultLen is the length of the randomness output (the proof hash).
	ResultLen = 32
)

var (
	// ErrBadSecretLen is returned for a secret key of the wrong size.
	ErrBadSecretLen = errors.New("vrf secret must be 32 bytes")

	// ErrZeroSecret is returned for an all-zero (or order-reduced zero)
	// secret key, which cannot sign.
	ErrZeroSecret = errors.New("vrf secret is zero")
)

// Engine holds the oracle's VRF secret key and produces proof/randomness
// pairs. It is safe for concurrent use; proving does not mutate the key.
type Engine struct {
	sk *ecdsa.PrivateKey
}

// New builds an Engine from a raw 32-byte secp256k1 secret.
func New(secret []byte) (*Engine, error) {
	if len(secret) != SecretLen {
		return nil, fmt.Errorf("%w, got %d", ErrBadSecretLen, len(secret))
	}
	priv := secp256k1.PrivKeyFromBytes(secret)
	if priv.Key.IsZero() {
		return nil, ErrZeroSecret
	}
	return &Engine{sk: priv.ToECDSA()}, nil
}

// PublicKey returns the compressed 33-byte public key corresponding to the
// engine's secret.
func (e *Engine) PublicKey() []byte {
	var x, y secp256k1.FieldVal
	x.SetByteSlice(e.sk.PublicKey.X.Bytes())
	y.SetByteSlice(e.sk.PublicKey.Y.Bytes())
	return secp256k1.NewPublicKey(&x, &y).SerializeCompressed()
}

// Prove computes the VRF proof and 32-byte randomness for a seed.
func (e *Engine) Prove(seed []byte) (proof []byte, result [ResultLen]byte, err error) {
	beta, pi, err := ecvrf.Secp256k1Sha256Tai.Prove(e.sk, seed)
	if err != nil {
		return nil, result, fmt.Errorf("vrf prove: %w", err)
	}
	if len(beta) != ResultLen {
		return nil, result, fmt.Errorf("vrf prove: unexpected output length %d", len(beta))
	}
	copy(result[:], beta)
	return pi, result, nil
}

// Verify checks a proof against the engine's own public key and returns the
// randomness it commits to.
func (e *Engine) Verify(seed, proof []byte) ([ResultLen]byte, error) {
	var result [ResultLen]byte
	beta, err := ecvrf.Secp256k1Sha256Tai.Verify(&e.sk.PublicKey, seed, proof)
	if err != nil {
		return result, fmt.Errorf("vrf verify: %w", err)
	}
	if len(beta) != ResultLen {
		return result, fmt.Errorf("vrf verify: unexpected output length %d", len(beta))
	}
	copy(result[:], beta)
	return result, nil
}
