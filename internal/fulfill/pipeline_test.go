// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package fulfill

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/fortuna-labs/fortuna/internal/anchor"
	"github.com/fortuna-labs/fortuna/internal/vrf"
)

var (
	testProgram        = solana.MustPublicKeyFromBase58("DEoxdV1CCWvbeGp8PpwkUifmm3pV5AgtFwFaS4P7qZeZ")
	testRequestAccount = solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
)

// packRecord assembles raw request-account bytes in the on-chain layout.
func packRecord(t *testing.T, result [anchor.ResultLen]byte, seed [anchor.SeedLen]byte, ixData []byte) []byte {
	t.Helper()
	buf := make([]byte, anchor.DiscriminatorLen+anchor.RecordLen)
	copy(buf, anchor.RequestAccountDiscriminator[:])
	body := buf[anchor.DiscriminatorLen:]

	copy(body[0:], result[:])
	copy(body[112:], seed[:])
	copy(body[152:], testProgram[:]) // callback program
	// one writable account in the callback table
	copy(body[184:], testRequestAccount[:])
	body[184+33] = 1
	binary.LittleEndian.PutUint32(body[1272:], 1)
	copy(body[1276:], ixData)
	binary.LittleEndian.PutUint32(body[2300:], uint32(len(ixData)))
	return buf
}

func requestLogs(program solana.PublicKey, account solana.PublicKey) []string {
	payload := append(append([]byte(nil), anchor.RequestEventDiscriminator[:]...), account[:]...)
	return []string{
		"Program " + program.String() + " invoke [1]",
		"Program data: " + base64.StdEncoding.EncodeToString(payload),
		"Program " + program.String() + " success",
	}
}

type fakeFetcher struct {
	data map[solana.PublicKey][]byte
	err  error
}

func (f *fakeFetcher) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[account]
	if !ok {
		return nil, errors.New("account not found")
	}
	return data, nil
}

type fakeTxSubmitter struct {
	instruction solana.Instruction
	err         error
	calls       int
}

func (f *fakeTxSubmitter) Submit(ctx context.Context, instruction solana.Instruction) (solana.Signature, error) {
	f.calls++
	f.instruction = instruction
	if f.err != nil {
		return solana.Signature{}, f.err
	}
	var sig solana.Signature
	sig[0] = 0x42
	return sig, nil
}

func testEngine(t *testing.T) *vrf.Engine {
	t.Helper()
	secret := make([]byte, vrf.SecretLen)
	for i := range secret {
		secret[i] = byte(i + 1)
	}
	engine, err := vrf.New(secret)
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

func testSeed() [anchor.SeedLen]byte {
	var seed [anchor.SeedLen]byte
	copy(seed[:], bytes.Repeat([]byte{0x5e}, anchor.SeedLen))
	return seed
}

func TestProcess_FulfillsRequest(t *testing.T) {
	seed := testSeed()
	ixData := append([]byte{8, 7, 6, 5, 4, 3, 2, 1}, anchor.ResultSentinel[:]...)
	fetcher := &fakeFetcher{data: map[solana.PublicKey][]byte{
		testRequestAccount: packRecord(t, anchor.ResultSentinel, seed, ixData),
	}}
	submitter := &fakeTxSubmitter{}
	engine := testEngine(t)
	pipeline := NewPipeline([]solana.PublicKey{testProgram}, engine, fetcher, submitter)

	res, err := pipeline.Process(context.Background(), testProgram, requestLogs(testProgram, testRequestAccount))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.AlreadyFulfilled {
		t.Error("fresh request reported as already fulfilled")
	}
	if !res.RequestAccount.Equals(testRequestAccount) {
		t.Errorf("request account = %s", res.RequestAccount)
	}
	if res.Signature.IsZero() {
		t.Error("expected callback signature")
	}

	// The submitted instruction must carry the deterministic randomness at
	// the placeholder offset.
	_, wantRandom, err := engine.Prove(seed[:])
	if err != nil {
		t.Fatal(err)
	}
	data, err := submitter.instruction.Data()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data[8:8+anchor.ResultLen], wantRandom[:]) {
		t.Error("callback data does not carry the expected randomness")
	}
	if res.Randomness != wantRandom {
		t.Error("result randomness disagrees with engine output")
	}
}

func TestProcess_NoRequestEvent(t *testing.T) {
	pipeline := NewPipeline([]solana.PublicKey{testProgram}, testEngine(t), &fakeFetcher{}, &fakeTxSubmitter{})

	logs := []string{
		"Program " + testProgram.String() + " invoke [1]",
		"Program data: " + base64.StdEncoding.EncodeToString([]byte("unrelated event!")),
		"Program " + testProgram.String() + " success",
	}
	res, err := pipeline.Process(context.Background(), testProgram, logs)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result for non-request transaction, got %+v", res)
	}
}

func TestProcess_RejectsOtherProgramsRequest(t *testing.T) {
	otherProgram := solana.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")
	seed := testSeed()
	fetcher := &fakeFetcher{data: map[solana.PublicKey][]byte{
		testRequestAccount: packRecord(t, anchor.ResultSentinel, seed, anchor.ResultSentinel[:]),
	}}
	submitter := &fakeTxSubmitter{}
	pipeline := NewPipeline([]solana.PublicKey{testProgram, otherProgram}, testEngine(t), fetcher, submitter)

	// A transaction mentioning both watched programs reaches both
	// subscriptions; only the emitting program's own run may submit.
	logs := requestLogs(otherProgram, testRequestAccount)

	_, err := pipeline.Process(context.Background(), testProgram, logs)
	if !errors.Is(err, ErrProgramMismatch) {
		t.Errorf("err = %v, want ErrProgramMismatch", err)
	}
	if submitter.calls != 0 {
		t.Fatalf("submitted %d transactions for a foreign program's request", submitter.calls)
	}

	res, err := pipeline.Process(context.Background(), otherProgram, logs)
	if err != nil {
		t.Fatalf("Process by owning program: %v", err)
	}
	if res == nil || res.Signature.IsZero() {
		t.Error("owning program's run must fulfill the request")
	}
	if submitter.calls != 1 {
		t.Errorf("submissions = %d, want exactly 1", submitter.calls)
	}
}

func TestProcess_ParseErrorsAbort(t *testing.T) {
	pipeline := NewPipeline([]solana.PublicKey{testProgram}, testEngine(t), &fakeFetcher{}, &fakeTxSubmitter{})

	logs := []string{"Program data: aGVsbG8="} // data with empty invocation stack
	if _, err := pipeline.Process(context.Background(), testProgram, logs); err == nil {
		t.Error("expected error for malformed trace")
	}
}

func TestProcess_AlreadyFulfilledSkips(t *testing.T) {
	var filled [anchor.ResultLen]byte
	filled[0] = 1
	fetcher := &fakeFetcher{data: map[solana.PublicKey][]byte{
		testRequestAccount: packRecord(t, filled, testSeed(), anchor.ResultSentinel[:]),
	}}
	submitter := &fakeTxSubmitter{}
	pipeline := NewPipeline([]solana.PublicKey{testProgram}, testEngine(t), fetcher, submitter)

	res, err := pipeline.Process(context.Background(), testProgram, requestLogs(testProgram, testRequestAccount))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res == nil || !res.AlreadyFulfilled {
		t.Fatalf("expected already-fulfilled result, got %+v", res)
	}
	if submitter.calls != 0 {
		t.Error("no transaction may be sent for a fulfilled request")
	}
}

func TestProcess_ZeroSeedRejected(t *testing.T) {
	var zeroSeed [anchor.SeedLen]byte
	fetcher := &fakeFetcher{data: map[solana.PublicKey][]byte{
		testRequestAccount: packRecord(t, anchor.ResultSentinel, zeroSeed, anchor.ResultSentinel[:]),
	}}
	pipeline := NewPipeline([]solana.PublicKey{testProgram}, testEngine(t), fetcher, &fakeTxSubmitter{})

	_, err := pipeline.Process(context.Background(), testProgram, requestLogs(testProgram, testRequestAccount))
	if !errors.Is(err, ErrZeroSeed) {
		t.Errorf("err = %v, want ErrZeroSeed", err)
	}
}

func TestProcess_WrongAccountDiscriminator(t *testing.T) {
	raw := packRecord(t, anchor.ResultSentinel, testSeed(), anchor.ResultSentinel[:])
	raw[0] ^= 0xff
	fetcher := &fakeFetcher{data: map[solana.PublicKey][]byte{testRequestAccount: raw}}
	pipeline := NewPipeline([]solana.PublicKey{testProgram}, testEngine(t), fetcher, &fakeTxSubmitter{})

	if _, err := pipeline.Process(context.Background(), testProgram, requestLogs(testProgram, testRequestAccount)); err == nil {
		t.Error("expected error for foreign account data")
	}
}

func TestProcess_SubmitErrorSurfaces(t *testing.T) {
	fetcher := &fakeFetcher{data: map[solana.PublicKey][]byte{
		testRequestAccount: packRecord(t, anchor.ResultSentinel, testSeed(), anchor.ResultSentinel[:]),
	}}
	submitter := &fakeTxSubmitter{err: errors.New("node unavailable")}
	pipeline := NewPipeline([]solana.PublicKey{testProgram}, testEngine(t), fetcher, submitter)

	if _, err := pipeline.Process(context.Background(), testProgram, requestLogs(testProgram, testRequestAccount)); err == nil {
		t.Error("expected submission error to surface")
	}
}
