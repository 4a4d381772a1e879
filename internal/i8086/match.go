// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// MachineCodeMatch indicates whether a machine code
// sequence matched an instruction encoding, according
// to Encoding.Match.
type MachineCodeMatch uint8

const (
	Match MachineCodeMatch = iota
	MismatchNoMachineCode
	MismatchWrongOpcode
	MismatchWrongExtension
	MismatchTruncated
)

func (m MachineCodeMatch) String() string {
	switch m {
	case Match:
		return "match"
	case MismatchNoMachineCode:
		return "no machine code"
	case MismatchWrongOpcode:
		return "wrong opcode"
	case MismatchWrongExtension:
		return "wrong opcode extension"
	case MismatchTruncated:
		return "truncated"
	default:
		return fmt.Sprintf("MachineCodeMatch(%d)", m)
	}
}

// Match checks whether the start of code
// has the fixed shape of this encoding.
//
// Bits are consumed most significant
// first, reading a new byte whenever the
// current byte is exhausted. Any fields
// are captured, and any implied fields
// are set to their constant value.
//
// On a match, Match returns the fields
// and the number of fixed-shape bytes
// consumed. Any displacement or data
// that follows is not read.
//
// Match takes code by value, so the
// caller's cursor never moves.
func (e *Encoding) Match(code cryptobyte.String) (fields Fields, n int, match MachineCodeMatch) {
	if code.Empty() {
		return Fields{}, 0, MismatchNoMachineCode
	}

	// current is the byte being consumed
	// and remaining is the number of its
	// bits not yet consumed.
	var current, remaining uint8
	for _, b := range e.Bits {
		if b.Width == 0 {
			fields.set(b.Kind, uint16(b.Value))
			continue
		}

		// Accumulate the field's bits,
		// which may span bytes.
		var value uint16
		for need := b.Width; need > 0; {
			if remaining == 0 {
				if !code.ReadUint8(&current) {
					return Fields{}, n, MismatchTruncated
				}

				n++
				remaining = 8
			}

			take := min(need, remaining)
			remaining -= take
			need -= take
			chunk := (current >> remaining) & (1<<take - 1)
			value = value<<take | uint16(chunk)
		}

		if b.Kind != FieldLiteral {
			fields.set(b.Kind, value)
			continue
		}

		if value != uint16(b.Value) {
			if n == 1 {
				return Fields{}, n, MismatchWrongOpcode
			}

			return Fields{}, n, MismatchWrongExtension
		}
	}

	return fields, n, Match
}
