// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package logparse

import "fmt"

// ErrorKind classifies a per-line parse error.
type ErrorKind int

const (
	// KindProgramIDMismatch means a return or in-program line named a
	// program that disagrees with the top of the invocation stack.
	KindProgramIDMismatch ErrorKind = iota

	// KindNoCurrentProgram means a data or in-program line appeared while
	// the invocation stack was empty.
	KindNoCurrentProgram

	// KindPayloadDecode means a data line's payload failed base64 decoding.
	KindPayloadDecode

	// KindMalformedInvoke means an invoke line carried no program id.
	KindMalformedInvoke

	// KindMalformedReturn means a success line carried no program id.
	KindMalformedReturn
)

// String returns the metric/log label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindProgramIDMismatch:
		return "program_id_mismatch"
	case KindNoCurrentProgram:
		return "no_current_program_id"
	case KindPayloadDecode:
		return "payload_decode"
	case KindMalformedInvoke:
		return "malformed_invoke"
	case KindMalformedReturn:
		return "malformed_return"
	default:
		return "unknown"
	}
}

// ParseError is a non-fatal diagnostic for a single log line. Parsing
// continues past it; callers receive the full batch of errors and decide
// whether to trust the extracted events.
type ParseError struct {
	Kind ErrorKind

	// Line is the offending raw log line.
	Line string

	// Current is the program id on top of the invocation stack when the
	// error was recorded (empty when the stack was empty).
	Current string

	// Expected is the program id named by the line itself.
	Expected string

	// Detail carries decoder output for KindPayloadDecode.
	Detail string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	switch e.Kind {
	case KindProgramIDMismatch:
		if e.Current == "" {
			return fmt.Sprintf("program id mismatch: no current program, expected %s (line: %q)", e.Expected, e.Line)
		}
		return fmt.Sprintf("program id mismatch: current %s, expected %s (line: %q)", e.Current, e.Expected, e.Line)
	case KindNoCurrentProgram:
		return fmt.Sprintf("no current program id (line: %q)", e.Line)
	case KindPayloadDecode:
		return fmt.Sprintf("payload decode: %s (line: %q)", e.Detail, e.Line)
	case KindMalformedInvoke:
		return fmt.Sprintf("malformed invoke line: %q", e.Line)
	case KindMalformedReturn:
		return fmt.Sprintf("malformed return line: %q", e.Line)
	default:
		return fmt.Sprintf("parse error (line: %q)", e.Line)
	}
}
