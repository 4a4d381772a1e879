// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

import (
	"encoding/json"
	"fmt"
)

// Operand is one operand to a decoded
// instruction. It is always one of
// *Register, *Memory, Immediate, or
// RelativeOffset.
type Operand interface {
	OperandType() OperandType
}

var (
	_ Operand = (*Register)(nil)
	_ Operand = (*Memory)(nil)
	_ Operand = Immediate{}
	_ Operand = RelativeOffset(0)
)

// OperandType categorises an operand
// to an 8086 instruction.
type OperandType uint8

const (
	_                  OperandType = iota
	TypeRegister                   // A register selection.
	TypeMemory                     // A memory address expression.
	TypeImmediate                  // An integer literal.
	TypeRelativeOffset             // An address offset from the instruction pointer.
)

// OperandTypes maps the JSON names of
// operand types to their values.
var OperandTypes = map[string]OperandType{
	"register":        TypeRegister,
	"memory":          TypeMemory,
	"immediate":       TypeImmediate,
	"relative offset": TypeRelativeOffset,
}

func (t OperandType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *OperandType) UnmarshalJSON(data []byte) error {
	var s string
	err := json.Unmarshal(data, &s)
	if err != nil {
		return err
	}

	got, ok := OperandTypes[s]
	if !ok {
		return fmt.Errorf("invalid operand type %q", s)
	}

	*t = got

	return nil
}

func (t OperandType) String() string {
	switch t {
	case TypeRegister:
		return "register"
	case TypeMemory:
		return "memory"
	case TypeImmediate:
		return "immediate"
	case TypeRelativeOffset:
		return "relative offset"
	default:
		return fmt.Sprintf("OperandType(%d)", t)
	}
}

// Immediate is an integer literal
// encoded in the instruction's data
// bytes.
//
// Value holds the 16-bit value after
// any sign extension. Bits is the
// operation width (8 or 16), which
// determines how the value should be
// interpreted.
type Immediate struct {
	Value uint16 `json:"value"`
	Bits  int    `json:"bits"`
}

func (imm Immediate) OperandType() OperandType { return TypeImmediate }

// Int returns the immediate's value as
// a signed integer of its width.
func (imm Immediate) Int() int {
	if imm.Bits == 8 {
		return int(int8(imm.Value))
	}

	return int(int16(imm.Value))
}

func (imm Immediate) GoString() string {
	return fmt.Sprintf("{Value: %#x, Bits: %d}", imm.Value, imm.Bits)
}

// RelativeOffset is the target of a
// short jump, relative to the start of
// the jump instruction.
//
// The 8-bit displacement in the machine
// code is relative to the end of the
// instruction, so the offset is the
// displacement plus the instruction's
// length (always 2).
type RelativeOffset int

func (off RelativeOffset) OperandType() OperandType { return TypeRelativeOffset }

// operandJSON is the JSON form of an
// operand, tagged with its type so it
// can be decoded again.
type operandJSON struct {
	Type  OperandType     `json:"type"`
	Value json.RawMessage `json:"value"`
}

func marshalOperand(op Operand) (operandJSON, error) {
	value, err := json.Marshal(op)
	if err != nil {
		return operandJSON{}, err
	}

	return operandJSON{Type: op.OperandType(), Value: value}, nil
}

func unmarshalOperand(data operandJSON) (Operand, error) {
	switch data.Type {
	case TypeRegister:
		var name string
		err := json.Unmarshal(data.Value, &name)
		if err != nil {
			return nil, fmt.Errorf("invalid register: %v", err)
		}

		reg, ok := RegistersByName[name]
		if !ok {
			return nil, fmt.Errorf("invalid register %q", name)
		}

		return reg, nil
	case TypeMemory:
		m := new(Memory)
		err := json.Unmarshal(data.Value, m)
		if err != nil {
			return nil, fmt.Errorf("invalid memory operand: %v", err)
		}

		// Share the package's registers.
		if m.Base != nil {
			m.Base = RegistersByName[m.Base.Name]
		}

		return m, nil
	case TypeImmediate:
		var imm Immediate
		err := json.Unmarshal(data.Value, &imm)
		if err != nil {
			return nil, fmt.Errorf("invalid immediate: %v", err)
		}

		if imm.Bits != 8 && imm.Bits != 16 {
			return nil, fmt.Errorf("invalid immediate width %d", imm.Bits)
		}

		return imm, nil
	case TypeRelativeOffset:
		var off RelativeOffset
		err := json.Unmarshal(data.Value, &off)
		if err != nil {
			return nil, fmt.Errorf("invalid relative offset: %v", err)
		}

		return off, nil
	default:
		return nil, fmt.Errorf("missing operand type")
	}
}
