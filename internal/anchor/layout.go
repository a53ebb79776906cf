// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package anchor decodes the fixed on-chain wire format shared with the
// randomness program: 8-byte type discriminators, the request event payload,
// and the packed request-account record holding the seed and the stored
// callback template.
//
// The layout is owned by the on-chain SDK and is read-only here; every field
// is at a fixed offset and integers are little-endian.
package anchor

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Byte sizes of the fixed wire format.
const (
	// DiscriminatorLen is the length of every account/event type prefix.
	DiscriminatorLen = 8

	// ResultLen is the length of the randomness result slot.
	ResultLen = 32

	// ProofLen is the length of the stored proof slot.
	ProofLen = 80

	// SeedLen is the length of the request seed.
	SeedLen = 32

	// MaxCallbackAccounts is the capacity of the callback account table.
	MaxCallbackAccounts = 32

	// MaxCallbackDataLen is the capacity of the callback instruction-data
	// buffer.
	MaxCallbackDataLen = 1024

	// ExpectedResultOffset is where the result placeholder conventionally
	// sits in callback instruction data: right after the instruction's own
	// 8-byte discriminator.
	ExpectedResultOffset = 8

	// callbackAccountLen is one packed account descriptor:
	// 32-byte address + signer flag + writable flag.
	callbackAccountLen = 34

	// reservedLen trails the record for future fields.
	reservedLen = 1024
)

// Field offsets within the record, relative to the end of the account
// discriminator.
const (
	offResult     = 0
	offProof      = offResult + ResultLen
	offSeed       = offProof + ProofLen
	offTimestamp  = offSeed + SeedLen
	offCallback   = offTimestamp + 8
	offCbProgram  = offCallback
	offCbAccounts = offCbProgram + 32
	offCbAccLen   = offCbAccounts + MaxCallbackAccounts*callbackAccountLen
	offCbData     = offCbAccLen + 4
	offCbDataLen  = offCbData + MaxCallbackDataLen

	// RecordLen is the full packed record size, excluding the discriminator.
	RecordLen = offCbDataLen + 4 + reservedLen
)

// RequestAccountDiscriminator prefixes every randomness-request account.
var RequestAccountDiscriminator = [DiscriminatorLen]byte{101, 35, 62, 239, 103, 151, 6, 18}

// ResultSentinel fills the result slot of an unfulfilled request. A result
// equal to this pattern (or all zero) must never be consumed as randomness.
var ResultSentinel = [ResultLen]byte{
	169, 181, 96, 37, 231, 213, 250, 114, 103, 201, 179, 141, 92, 38, 30, 87,
	115, 210, 50, 29, 136, 193, 41, 211, 45, 205, 112, 191, 205, 195, 2, 105,
}

// CallbackAccount is one account descriptor of the stored callback template.
type CallbackAccount struct {
	Address    solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Callback is the stored instruction template completed off-chain by
// replacing the result placeholder with computed randomness.
type Callback struct {
	// ProgramID is the program the completed instruction targets.
	ProgramID solana.PublicKey

	// Accounts lists the instruction's accounts in order.
	Accounts []CallbackAccount

	// Data is the live window of the instruction-data buffer. It contains
	// the result placeholder somewhere within it.
	Data []byte
}

// RequestRecord is the decoded randomness-request account.
type RequestRecord struct {
	// Result is the randomness result slot; ResultSentinel until fulfilled.
	Result [ResultLen]byte

	// Proof is the stored proof slot.
	Proof [ProofLen]byte

	// Seed is the VRF input chosen by the requesting program.
	Seed [SeedLen]byte

	// RequestedAt is the unix timestamp when the request was opened.
	RequestedAt int64

	// Callback is the stored instruction template.
	Callback Callback
}

// Fulfilled reports whether the result slot holds consumable randomness.
// Both the sentinel pattern and all-zero mean "not yet fulfilled".
func (r *RequestRecord) Fulfilled() bool {
	if r.Result == ResultSentinel {
		return false
	}
	var zero [ResultLen]byte
	return r.Result != zero
}

// ParseRequestRecord decodes raw account bytes into a RequestRecord after
// verifying the leading type discriminator.
func ParseRequestRecord(data []byte) (*RequestRecord, error) {
	if len(data) < DiscriminatorLen {
		return nil, fmt.Errorf("account data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:DiscriminatorLen], RequestAccountDiscriminator[:]) {
		return nil, fmt.Errorf("unexpected account discriminator % x", data[:DiscriminatorLen])
	}

	body := data[DiscriminatorLen:]
	if len(body) < RecordLen {
		return nil, fmt.Errorf("request record truncated: %d bytes, want %d", len(body), RecordLen)
	}

	rec := &RequestRecord{
		RequestedAt: int64(binary.LittleEndian.Uint64(body[offTimestamp : offTimestamp+8])),
	}
	copy(rec.Result[:], body[offResult:offResult+ResultLen])
	copy(rec.Proof[:], body[offProof:offProof+ProofLen])
	copy(rec.Seed[:], body[offSeed:offSeed+SeedLen])

	accountsLen := binary.LittleEndian.Uint32(body[offCbAccLen : offCbAccLen+4])
	if accountsLen > MaxCallbackAccounts {
		return nil, fmt.Errorf("callback accounts length %d exceeds table capacity %d", accountsLen, MaxCallbackAccounts)
	}
	dataLen := binary.LittleEndian.Uint32(body[offCbDataLen : offCbDataLen+4])
	if dataLen > MaxCallbackDataLen {
		return nil, fmt.Errorf("callback data length %d exceeds buffer capacity %d", dataLen, MaxCallbackDataLen)
	}

	rec.Callback.ProgramID = solana.PublicKeyFromBytes(body[offCbProgram : offCbProgram+32])
	rec.Callback.Accounts = make([]CallbackAccount, accountsLen)
	for i := range rec.Callback.Accounts {
		entry := body[offCbAccounts+i*callbackAccountLen:]
		rec.Callback.Accounts[i] = CallbackAccount{
			Address:    solana.PublicKeyFromBytes(entry[:32]),
			IsSigner:   entry[32] != 0,
			IsWritable: entry[33] != 0,
		}
	}

	rec.Callback.Data = make([]byte, dataLen)
	copy(rec.Callback.Data, body[offCbData:offCbData+int(dataLen)])

	return rec, nil
}
