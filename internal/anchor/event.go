// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package anchor

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// RequestEventDiscriminator prefixes the randomness-request event emitted in
// transaction logs when a request account is opened.
var RequestEventDiscriminator = [DiscriminatorLen]byte{165, 136, 58, 240, 241, 40, 12, 65}

// RequestEvent is the decoded randomness-request event. Its only payload is
// the address of the freshly created request account.
type RequestEvent struct {
	RequestAccount solana.PublicKey
}

// IsRequestEvent reports whether raw event bytes carry the request
// discriminator. It is the cheap pre-filter before ParseRequestEvent.
func IsRequestEvent(data []byte) bool {
	return len(data) >= DiscriminatorLen &&
		bytes.Equal(data[:DiscriminatorLen], RequestEventDiscriminator[:])
}

// ParseRequestEvent decodes raw event bytes into a RequestEvent.
func ParseRequestEvent(data []byte) (*RequestEvent, error) {
	if !IsRequestEvent(data) {
		return nil, fmt.Errorf("not a randomness request event")
	}
	body := data[DiscriminatorLen:]
	if len(body) < 32 {
		return nil, fmt.Errorf("request event truncated: %d payload bytes, want 32", len(body))
	}
	return &RequestEvent{
		RequestAccount: solana.PublicKeyFromBytes(body[:32]),
	}, nil
}
