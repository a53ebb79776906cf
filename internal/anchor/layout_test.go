// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package anchor

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
)

// buildRecord packs a RequestRecord the way the on-chain program lays it out,
// discriminator included.
func buildRecord(t *testing.T, rec RequestRecord) []byte {
	t.Helper()
	if len(rec.Callback.Accounts) > MaxCallbackAccounts {
		t.Fatalf("too many accounts: %d", len(rec.Callback.Accounts))
	}
	if len(rec.Callback.Data) > MaxCallbackDataLen {
		t.Fatalf("data too long: %d", len(rec.Callback.Data))
	}

	buf := make([]byte, DiscriminatorLen+RecordLen)
	copy(buf, RequestAccountDiscriminator[:])
	body := buf[DiscriminatorLen:]

	copy(body[offResult:], rec.Result[:])
	copy(body[offProof:], rec.Proof[:])
	copy(body[offSeed:], rec.Seed[:])
	binary.LittleEndian.PutUint64(body[offTimestamp:], uint64(rec.RequestedAt))
	copy(body[offCbProgram:], rec.Callback.ProgramID[:])
	for i, acc := range rec.Callback.Accounts {
		entry := body[offCbAccounts+i*callbackAccountLen:]
		copy(entry, acc.Address[:])
		if acc.IsSigner {
			entry[32] = 1
		}
		if acc.IsWritable {
			entry[33] = 1
		}
	}
	binary.LittleEndian.PutUint32(body[offCbAccLen:], uint32(len(rec.Callback.Accounts)))
	copy(body[offCbData:], rec.Callback.Data)
	binary.LittleEndian.PutUint32(body[offCbDataLen:], uint32(len(rec.Callback.Data)))
	return buf
}

func TestParseRequestRecord_RoundTrip(t *testing.T) {
	want := RequestRecord{
		Result:      ResultSentinel,
		RequestedAt: 1766000000,
		Callback: Callback{
			ProgramID: solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"),
			Accounts: []CallbackAccount{
				{Address: solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111"), IsWritable: true},
				{Address: solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111"), IsSigner: true},
			},
			Data: append(bytes.Repeat([]byte{0xde}, ExpectedResultOffset), ResultSentinel[:]...),
		},
	}
	copy(want.Seed[:], bytes.Repeat([]byte{7}, SeedLen))

	got, err := ParseRequestRecord(buildRecord(t, want))
	if err != nil {
		t.Fatalf("ParseRequestRecord: %v", err)
	}
	if got.Result != want.Result {
		t.Errorf("Result = % x, want sentinel", got.Result)
	}
	if got.Seed != want.Seed {
		t.Errorf("Seed = % x, want % x", got.Seed, want.Seed)
	}
	if got.RequestedAt != want.RequestedAt {
		t.Errorf("RequestedAt = %d, want %d", got.RequestedAt, want.RequestedAt)
	}
	if !got.Callback.ProgramID.Equals(want.Callback.ProgramID) {
		t.Errorf("Callback.ProgramID = %s", got.Callback.ProgramID)
	}
	if len(got.Callback.Accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(got.Callback.Accounts))
	}
	if !got.Callback.Accounts[0].IsWritable || got.Callback.Accounts[0].IsSigner {
		t.Errorf("account 0 flags = %+v", got.Callback.Accounts[0])
	}
	if !got.Callback.Accounts[1].IsSigner || got.Callback.Accounts[1].IsWritable {
		t.Errorf("account 1 flags = %+v", got.Callback.Accounts[1])
	}
	if !bytes.Equal(got.Callback.Data, want.Callback.Data) {
		t.Errorf("Callback.Data = % x", got.Callback.Data)
	}
}

func TestParseRequestRecord_Rejects(t *testing.T) {
	valid := buildRecord(t, RequestRecord{Result: ResultSentinel})

	t.Run("short data", func(t *testing.T) {
		if _, err := ParseRequestRecord(valid[:4]); err == nil {
			t.Error("expected error for truncated discriminator")
		}
	})

	t.Run("wrong discriminator", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		bad[0] ^= 0xff
		if _, err := ParseRequestRecord(bad); err == nil {
			t.Error("expected error for wrong discriminator")
		}
	})

	t.Run("truncated record", func(t *testing.T) {
		if _, err := ParseRequestRecord(valid[:len(valid)-1]); err == nil {
			t.Error("expected error for truncated record")
		}
	})

	t.Run("accounts length over capacity", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(bad[DiscriminatorLen+offCbAccLen:], MaxCallbackAccounts+1)
		if _, err := ParseRequestRecord(bad); err == nil {
			t.Error("expected error for oversized accounts length")
		}
	})

	t.Run("data length over capacity", func(t *testing.T) {
		bad := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(bad[DiscriminatorLen+offCbDataLen:], MaxCallbackDataLen+1)
		if _, err := ParseRequestRecord(bad); err == nil {
			t.Error("expected error for oversized data length")
		}
	})
}

func TestRequestRecord_Fulfilled(t *testing.T) {
	var rec RequestRecord

	rec.Result = ResultSentinel
	if rec.Fulfilled() {
		t.Error("sentinel result must not count as fulfilled")
	}

	rec.Result = [ResultLen]byte{}
	if rec.Fulfilled() {
		t.Error("zero result must not count as fulfilled")
	}

	rec.Result[0] = 1
	if !rec.Fulfilled() {
		t.Error("non-sentinel non-zero result should count as fulfilled")
	}
}

func TestRecordLen(t *testing.T) {
	// result + proof + seed + i64 + callback(program + table + len + data + len) + reserved
	want := ResultLen + ProofLen + SeedLen + 8 +
		32 + MaxCallbackAccounts*callbackAccountLen + 4 + MaxCallbackDataLen + 4 +
		reservedLen
	if RecordLen != want {
		t.Errorf("RecordLen = %d, want %d", RecordLen, want)
	}
}
