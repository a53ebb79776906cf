// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package logparse extracts program-scoped binary events from the raw log
// lines of one Solana transaction.
//
// A transaction's log output is a flat trace of a tree-shaped call graph:
// programs invoke other programs (cross-program invocation), and every
// invoke/success pair brackets the lines emitted while that program ran.
// The parser replays the trace against a LIFO invocation stack so that each
// emitted data line is attributed to the program actually executing at that
// point, not merely the outermost one.
//
// Malformed lines degrade to per-line diagnostics rather than aborting the
// batch; a single broken line must not suppress valid events elsewhere in
// the same transaction.
package logparse

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Event is a decoded, program-attributed data record emitted by a tracked
// program during one transaction.
type Event struct {
	// ProgramID is the tracked program that emitted the record.
	ProgramID solana.PublicKey

	// Data is the base64-decoded payload, beginning with the event's
	// 8-byte type discriminator.
	Data []byte
}

// lineClass is the classification of a single raw log line.
type lineClass int

const (
	classTrivia lineClass = iota
	classData
	classInvoke
	classReturn
	classInProgram
)

// Recognized program-output prefixes. "Program log:" carries free-form text
// that is only occasionally base64; "Program data:" carries encoded event
// payloads. Both are treated as payload candidates.
const (
	prefixLog  = "Program log: "
	prefixData = "Program data: "
)

var (
	reInvoke = regexp.MustCompile(`^Program (.*) invoke.*$`)
	reReturn = regexp.MustCompile(`^Program (.*) success$`)
)

// classifyLine determines the class of one log line and extracts its
// argument: the payload text for classData, the program id otherwise.
// A nil error kind pointer means the line classified cleanly.
func classifyLine(line string) (class lineClass, arg string, malformed *ErrorKind) {
	if rest, ok := strings.CutPrefix(line, prefixLog); ok {
		return classifyPayload(rest)
	}
	if rest, ok := strings.CutPrefix(line, prefixData); ok {
		return classifyPayload(rest)
	}

	if m := reInvoke.FindStringSubmatch(line); m != nil {
		if m[1] == "" {
			kind := KindMalformedInvoke
			return classTrivia, "", &kind
		}
		return classInvoke, m[1], nil
	}

	if m := reReturn.FindStringSubmatch(line); m != nil {
		if m[1] == "" {
			kind := KindMalformedReturn
			return classTrivia, "", &kind
		}
		return classReturn, m[1], nil
	}

	if rest, ok := strings.CutPrefix(line, "Program "); ok {
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			return classInProgram, rest[:end], nil
		}
	}

	return classTrivia, "", nil
}

// classifyPayload decides whether a program-output line is an encoded event
// payload. Only text composed exclusively of the standard base64 alphabet
// qualifies; anything else is human-readable output and is ignored.
func classifyPayload(payload string) (lineClass, string, *ErrorKind) {
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '=':
		default:
			return classTrivia, "", nil
		}
	}
	return classData, payload, nil
}

// Parse replays one transaction's ordered log lines and returns the data
// events attributed to tracked programs plus all per-line diagnostics.
//
// Events are only produced for programs in the tracked set; data emitted by
// untracked programs is skipped silently. Errors never abort the scan.
func Parse(logs []string, tracked []solana.PublicKey) ([]Event, []*ParseError) {
	var (
		events []Event
		errs   []*ParseError
		stack  []string
	)

	trackedByID := make(map[string]solana.PublicKey, len(tracked))
	for _, pk := range tracked {
		trackedByID[pk.String()] = pk
	}

	top := func() (string, bool) {
		if len(stack) == 0 {
			return "", false
		}
		return stack[len(stack)-1], true
	}

	for _, line := range logs {
		class, arg, malformed := classifyLine(line)
		if malformed != nil {
			errs = append(errs, &ParseError{Kind: *malformed, Line: line})
			continue
		}

		switch class {
		case classInvoke:
			stack = append(stack, arg)

		case classReturn:
			// The pop happens regardless of a mismatch; the trace is
			// assumed to be depth-correct even when ids disagree.
			if popped, ok := top(); ok {
				stack = stack[:len(stack)-1]
				if popped != arg {
					errs = append(errs, &ParseError{
						Kind:     KindProgramIDMismatch,
						Line:     line,
						Current:  popped,
						Expected: arg,
					})
				}
			}

		case classInProgram:
			current, ok := top()
			switch {
			case !ok:
				errs = append(errs, &ParseError{
					Kind:     KindNoCurrentProgram,
					Line:     line,
					Expected: arg,
				})
			case current != arg:
				errs = append(errs, &ParseError{
					Kind:     KindProgramIDMismatch,
					Line:     line,
					Current:  current,
					Expected: arg,
				})
			}

		case classData:
			current, ok := top()
			if !ok {
				errs = append(errs, &ParseError{Kind: KindNoCurrentProgram, Line: line})
				continue
			}

			programID, isTracked := trackedByID[current]
			if !isTracked {
				continue
			}

			decoded, err := base64.StdEncoding.DecodeString(arg)
			if err != nil {
				errs = append(errs, &ParseError{
					Kind:   KindPayloadDecode,
					Line:   line,
					Detail: err.Error(),
				})
				continue
			}

			events = append(events, Event{ProgramID: programID, Data: decoded})

		case classTrivia:
		}
	}

	return events, errs
}
