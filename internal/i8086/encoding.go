// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldKind identifies the meaning of a
// group of bits in an instruction
// encoding.
type FieldKind uint8

const (
	FieldLiteral      FieldKind = iota // Fixed bits that must match exactly.
	FieldMod                           // ModR/M.mod.
	FieldReg                           // ModR/M.reg.
	FieldRM                            // ModR/M.r/m.
	FieldWide                          // The w bit: 16-bit operation.
	FieldSigned                        // The s bit: sign-extend 8-bit data.
	FieldDestination                   // The d bit: ModR/M.reg is the destination.
	FieldData                          // Immediate data follows any displacement.
	FieldDisplacement                  // A displacement follows, as determined by mod and r/m.
	FieldAddress                       // A 16-bit direct address follows.
	FieldRelativeJump                  // An 8-bit signed jump offset follows.

	numFieldKinds
)

func (k FieldKind) String() string {
	switch k {
	case FieldLiteral:
		return "literal"
	case FieldMod:
		return "mod"
	case FieldReg:
		return "reg"
	case FieldRM:
		return "rm"
	case FieldWide:
		return "w"
	case FieldSigned:
		return "s"
	case FieldDestination:
		return "d"
	case FieldData:
		return "data"
	case FieldDisplacement:
		return "disp"
	case FieldAddress:
		return "addr"
	case FieldRelativeJump:
		return "ip-inc8"
	default:
		return fmt.Sprintf("FieldKind(%d)", k)
	}
}

// fieldWidths contains the width in
// bits of each named field.
var fieldWidths = map[FieldKind]uint8{
	FieldMod:         2,
	FieldReg:         3,
	FieldRM:          3,
	FieldWide:        1,
	FieldSigned:      1,
	FieldDestination: 1,
}

// trailingFields are the fields whose
// values follow the fixed-shape part of
// the instruction.
var trailingFields = map[FieldKind]bool{
	FieldData:         true,
	FieldDisplacement: true,
	FieldAddress:      true,
	FieldRelativeJump: true,
}

// Bits describes one group of bits in an
// instruction encoding. It is one of:
//
//   - a literal: Kind is FieldLiteral and the
//     Width bits must equal Value;
//   - a field: Width bits are captured as the
//     value of Kind;
//   - an implied field: Width is zero and Kind
//     takes the constant Value.
//
// Trailing fields (data, disp, addr, and
// ip-inc8) are implied fields with value 1,
// recording that the bytes follow.
type Bits struct {
	Kind  FieldKind
	Width uint8
	Value uint8
}

// Literal returns a group of fixed bits.
func Literal(width, value uint8) Bits {
	return Bits{Kind: FieldLiteral, Width: width, Value: value}
}

// Field returns a captured field of its
// natural width.
func Field(kind FieldKind) Bits {
	return Bits{Kind: kind, Width: fieldWidths[kind]}
}

// Implied returns a zero-width field with
// a constant value.
func Implied(kind FieldKind, value uint8) Bits {
	return Bits{Kind: kind, Value: value}
}

func (b Bits) String() string {
	switch {
	case b.Kind == FieldLiteral:
		return fmt.Sprintf("%0*b", int(b.Width), b.Value)
	case b.Width != 0:
		return b.Kind.String()
	case trailingFields[b.Kind]:
		return b.Kind.String()
	default:
		return fmt.Sprintf("%s=%0*b", b.Kind, int(fieldWidths[b.Kind]), b.Value)
	}
}

// Encoding includes the textual description of
// an 8086 instruction's encoding, in the bit
// layout notation used by the Intel manual,
// plus a structured representation of the same
// information.
type Encoding struct {
	Mnemonic string // The instruction mnemonic, in lower case.
	Syntax   string // The textual representation.
	Bits     []Bits // The bit groups, in order.

	fixedLen int    // The number of fixed-shape bytes.
	declared uint16 // The set of field kinds declared.
}

func (e *Encoding) String() string {
	return e.Mnemonic + ": " + e.Syntax
}

// Len returns the number of bytes in the
// fixed-shape part of the encoding, which
// excludes any displacement and data.
func (e *Encoding) Len() int {
	return e.fixedLen
}

// Has returns whether the encoding declares
// the given field, either as captured bits or
// as an implied value.
func (e *Encoding) Has(kind FieldKind) bool {
	return e.declared&(1<<kind) != 0
}

// ParseEncoding parses the textual
// representation of an instruction's
// encoding, such as
//
//	100010 d w | mod reg rm | disp
//
// Binary digits are literal bits. The
// names mod, reg, rm, d, w, and s are
// fields. A name followed by '=' and
// binary digits is an implied field.
// The names data, disp, addr, and
// ip-inc8 indicate trailing values.
// Optional '|' separators must fall on
// byte boundaries.
func ParseEncoding(mnemonic, syntax string) (*Encoding, error) {
	e := &Encoding{
		Mnemonic: mnemonic,
		Syntax:   syntax,
	}

	var bits int
	var trailing bool
	for _, tok := range strings.Fields(syntax) {
		if tok == "|" {
			if bits == 0 || bits%8 != 0 {
				return nil, fmt.Errorf("invalid encoding %q: separator at bit %d is not on a byte boundary", syntax, bits)
			}

			continue
		}

		b, err := parseBits(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid encoding %q: %v", syntax, err)
		}

		if trailingFields[b.Kind] {
			trailing = true
		} else if b.Width != 0 && trailing {
			return nil, fmt.Errorf("invalid encoding %q: %s follows a trailing value", syntax, tok)
		}

		if b.Kind != FieldLiteral {
			if e.Has(b.Kind) {
				return nil, fmt.Errorf("invalid encoding %q: %s declared twice", syntax, b.Kind)
			}

			e.declared |= 1 << b.Kind
		}

		bits += int(b.Width)
		e.Bits = append(e.Bits, b)
	}

	if bits == 0 {
		return nil, fmt.Errorf("invalid encoding %q: no opcode bits", syntax)
	}

	if bits%8 != 0 {
		return nil, fmt.Errorf("invalid encoding %q: %d bits is not a whole number of bytes", syntax, bits)
	}

	if e.Bits[0].Kind != FieldLiteral {
		return nil, fmt.Errorf("invalid encoding %q: must start with opcode bits", syntax)
	}

	if e.Has(FieldMod) != e.Has(FieldRM) {
		return nil, fmt.Errorf("invalid encoding %q: mod and rm must be used together", syntax)
	}

	if e.Has(FieldMod) && !e.Has(FieldDisplacement) && !e.Has(FieldAddress) {
		return nil, fmt.Errorf("invalid encoding %q: mod without disp", syntax)
	}

	e.fixedLen = bits / 8

	return e, nil
}

func parseBits(tok string) (Bits, error) {
	if name, value, ok := strings.Cut(tok, "="); ok {
		kind, ok := fieldNames[name]
		if !ok || fieldWidths[kind] == 0 {
			return Bits{}, fmt.Errorf("unrecognised field %q", name)
		}

		if len(value) != int(fieldWidths[kind]) {
			return Bits{}, fmt.Errorf("implied %s must have %d bits, got %q", name, fieldWidths[kind], value)
		}

		v, err := strconv.ParseUint(value, 2, 8)
		if err != nil {
			return Bits{}, fmt.Errorf("invalid implied %s value %q", name, value)
		}

		return Implied(kind, uint8(v)), nil
	}

	if kind, ok := fieldNames[tok]; ok {
		if trailingFields[kind] {
			return Implied(kind, 1), nil
		}

		return Field(kind), nil
	}

	if len(tok) > 8 {
		return Bits{}, fmt.Errorf("literal %q is longer than a byte", tok)
	}

	v, err := strconv.ParseUint(tok, 2, 8)
	if err != nil {
		return Bits{}, fmt.Errorf("unrecognised token %q", tok)
	}

	return Literal(uint8(len(tok)), uint8(v)), nil
}

// fieldNames maps the textual names of
// fields to their kind. This must be
// initialised before the encoding table,
// so it cannot be populated in init.
var fieldNames = func() map[string]FieldKind {
	names := make(map[string]FieldKind)
	for kind := FieldMod; kind < numFieldKinds; kind++ {
		names[kind.String()] = kind
	}

	return names
}()

// Fields holds the values extracted
// while matching an encoding against
// machine code. Fields that were not
// declared read as zero.
type Fields struct {
	present uint16
	values  [numFieldKinds]uint16
}

// Get returns the value of the given
// field, or zero.
func (f *Fields) Get(kind FieldKind) uint16 {
	return f.values[kind]
}

// Has returns whether the given field
// was declared by the matched encoding.
func (f *Fields) Has(kind FieldKind) bool {
	return f.present&(1<<kind) != 0
}

func (f *Fields) set(kind FieldKind, value uint16) {
	f.present |= 1 << kind
	f.values[kind] = value
}

func (f Fields) GoString() string {
	var s strings.Builder
	s.WriteByte('{')
	first := true
	for kind := FieldMod; kind < numFieldKinds; kind++ {
		if !f.Has(kind) {
			continue
		}

		if !first {
			s.WriteString(", ")
		}

		first = false
		fmt.Fprintf(&s, "%s: %#b", kind, f.values[kind])
	}
	s.WriteByte('}')

	return s.String()
}
