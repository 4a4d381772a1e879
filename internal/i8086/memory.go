// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

import (
	"fmt"
	"strings"
)

// Memory represents an 8086 effective
// address.
//
// Base is nil for a direct address.
// Displacement holds the 16-bit value
// after any sign extension, and
// DisplacementBits records how many
// bits were encoded (0, 8, or 16).
type Memory struct {
	Base             *Register `json:"base,omitempty"`
	Displacement     uint16    `json:"displacement"`
	DisplacementBits int       `json:"displacementBits,omitempty"`
}

func (m *Memory) OperandType() OperandType { return TypeMemory }

// Direct returns whether m is a direct
// address, with no base register.
func (m *Memory) Direct() bool {
	return m.Base == nil
}

// Offset returns the displacement as a
// signed value, as it is added to the
// base register.
func (m *Memory) Offset() int {
	return int(int16(m.Displacement))
}

func (m *Memory) GoString() string {
	first := true
	var s strings.Builder
	join := func() {
		if !first {
			s.WriteString(", ")
		}

		first = false
	}

	s.WriteByte('{')
	if m.Base != nil {
		first = false
		fmt.Fprintf(&s, "Base: %s", m.Base)
	}
	if m.Displacement != 0 || m.DisplacementBits != 0 || first {
		join()
		fmt.Fprintf(&s, "Displacement: %#x", m.Displacement)
	}
	if m.DisplacementBits != 0 {
		join()
		fmt.Fprintf(&s, "DisplacementBits: %d", m.DisplacementBits)
	}
	s.WriteByte('}')

	return s.String()
}

// effectiveAddress returns the memory
// operand described by the ModR/M mod
// and rm fields. The displacement is
// filled in by the caller, once it has
// been read.
//
// With mod 0b11, the rm field selects
// a register, so effectiveAddress must
// not be called.
func effectiveAddress(mod, rm uint16) *Memory {
	switch {
	case mod == 0b00 && rm == 0b110:
		return &Memory{DisplacementBits: 16}
	case mod == 0b00:
		return &Memory{Base: MemoryBases[rm&7]}
	case mod == 0b01:
		return &Memory{Base: MemoryBases[rm&7], DisplacementBits: 8}
	case mod == 0b10:
		return &Memory{Base: MemoryBases[rm&7], DisplacementBits: 16}
	default:
		panic(fmt.Sprintf("effective address with mod %02b", mod))
	}
}
