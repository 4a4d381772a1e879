// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package i8086 decodes machine code for a subset of
// the Intel 8086 instruction set into structured
// instructions.
//
// Decoding is driven by a table of instruction
// encodings, written in the bit layout notation of
// the Intel manual. Each encoding is matched against
// the machine code in turn, capturing the fields it
// declares, which are then resolved into operands.
package i8086

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/cryptobyte"
)

// Instruction is a single decoded
// instruction.
//
// In JSON, each operand is an object
// holding its type and value, such as
//
//	{"type": "relative offset", "value": -2}
type Instruction struct {
	Mnemonic string    // The instruction mnemonic, in lower case.
	Offset   int       // The offset of the first byte in the machine code.
	Len      int       // The number of bytes of machine code.
	Code     []byte    // The machine code, which aliases the decoded buffer.
	Wide     bool      // Whether the operation is 16-bit.
	Operands []Operand // Up to two operands, destination first.
	Encoding *Encoding // The encoding that matched, which is not stored in JSON.
}

// instructionJSON is the JSON form of
// an Instruction.
type instructionJSON struct {
	Mnemonic string        `json:"mnemonic"`
	Offset   int           `json:"offset"`
	Len      int           `json:"length"`
	Code     string        `json:"code"`
	Wide     bool          `json:"wide"`
	Operands []operandJSON `json:"operands"`
}

func (inst *Instruction) MarshalJSON() ([]byte, error) {
	data := instructionJSON{
		Mnemonic: inst.Mnemonic,
		Offset:   inst.Offset,
		Len:      inst.Len,
		Code:     hex.EncodeToString(inst.Code),
		Wide:     inst.Wide,
		Operands: make([]operandJSON, len(inst.Operands)),
	}

	for i, op := range inst.Operands {
		var err error
		data.Operands[i], err = marshalOperand(op)
		if err != nil {
			return nil, err
		}
	}

	return json.Marshal(data)
}

func (inst *Instruction) UnmarshalJSON(b []byte) error {
	var data instructionJSON
	err := json.Unmarshal(b, &data)
	if err != nil {
		return err
	}

	code, err := hex.DecodeString(data.Code)
	if err != nil {
		return fmt.Errorf("invalid machine code %q: %v", data.Code, err)
	}

	if len(code) != data.Len {
		return fmt.Errorf("invalid instruction: length %d does not match %d bytes of machine code", data.Len, len(code))
	}

	operands := make([]Operand, len(data.Operands))
	for i, op := range data.Operands {
		operands[i], err = unmarshalOperand(op)
		if err != nil {
			return fmt.Errorf("invalid operand %d: %v", i, err)
		}
	}

	*inst = Instruction{
		Mnemonic: data.Mnemonic,
		Offset:   data.Offset,
		Len:      data.Len,
		Code:     code,
		Wide:     data.Wide,
		Operands: operands,
	}

	return nil
}

// Decode decodes the instruction at the
// given offset into code.
//
// If no encoding matches, Decode returns
// an *UnrecognizedOpcodeError. If code
// ends before the instruction does, Decode
// returns a *TruncatedInstructionError.
// If offset is at the end of code, Decode
// returns io.EOF.
//
// The returned instruction's Len is the
// number of bytes to advance past it.
func Decode(code []byte, offset int) (*Instruction, error) {
	if offset == len(code) {
		return nil, io.EOF
	}

	if offset < 0 || offset > len(code) {
		return nil, fmt.Errorf("invalid offset %d into %d bytes of machine code", offset, len(code))
	}

	s := cryptobyte.String(code[offset:])

	// Scan the table for an encoding
	// that matches, noting any which
	// might have matched, had the code
	// been longer.
	var truncated []*Encoding
	for _, enc := range Encodings {
		fields, n, match := enc.Match(s)
		switch match {
		case Match:
			return resolve(enc, &fields, code, offset, n)
		case MismatchTruncated:
			truncated = append(truncated, enc)
		}
	}

	if len(truncated) == 0 {
		return nil, &UnrecognizedOpcodeError{Offset: offset, Byte: code[offset]}
	}

	err := &TruncatedInstructionError{
		Offset:   offset,
		Mnemonic: truncated[0].Mnemonic,
		Need:     truncated[0].Len(),
		Have:     len(s),
	}

	for _, enc := range truncated[1:] {
		err.Need = min(err.Need, enc.Len())
		if enc.Mnemonic != err.Mnemonic {
			err.Mnemonic = ""
		}
	}

	return nil, err
}

// DecodeAll decodes every instruction in
// code. If an instruction cannot be
// decoded, DecodeAll returns the
// instructions before it, plus the error.
func DecodeAll(code []byte) ([]*Instruction, error) {
	var insts []*Instruction
	for offset := 0; offset < len(code); {
		inst, err := Decode(code, offset)
		if err != nil {
			return insts, err
		}

		insts = append(insts, inst)
		offset += inst.Len
	}

	return insts, nil
}

// resolve completes the decoding of an
// instruction whose fixed-shape bytes
// have matched enc, reading any trailing
// displacement and data and resolving
// the fields into operands.
func resolve(enc *Encoding, fields *Fields, code []byte, offset, n int) (*Instruction, error) {
	mod := fields.Get(FieldMod)
	reg := fields.Get(FieldReg)
	rm := fields.Get(FieldRM)
	wide := fields.Get(FieldWide) == 1
	signed := fields.Get(FieldSigned) == 1
	destination := fields.Get(FieldDestination) == 1

	memory := fields.Has(FieldMod) && mod != 0b11
	hasDirectAddress := memory && mod == 0b00 && rm == 0b110
	hasDisplacement := hasDirectAddress || (memory && (mod == 0b01 || mod == 0b10)) || fields.Has(FieldAddress)
	isDisplacementWide := hasDirectAddress || (memory && mod == 0b10) || fields.Has(FieldAddress)
	hasData := fields.Has(FieldData)
	isDataWide := wide && !signed
	hasJump := fields.Has(FieldRelativeJump)

	need := n
	if hasDisplacement {
		need += valueLen(isDisplacementWide)
	}
	if hasData {
		need += valueLen(isDataWide)
	}
	if hasJump {
		need += valueLen(false)
	}

	truncated := &TruncatedInstructionError{
		Offset:   offset,
		Mnemonic: enc.Mnemonic,
		Need:     need,
		Have:     len(code) - offset,
	}

	// An 8-bit displacement is always
	// sign-extended.
	var ok bool
	var displacement, data, jump uint16
	s := cryptobyte.String(code[offset+n:])
	if hasDisplacement {
		displacement, ok = ReadValue(&s, isDisplacementWide, !isDisplacementWide)
		if !ok {
			return nil, truncated
		}
	}

	if hasData {
		data, ok = ReadValue(&s, isDataWide, signed)
		if !ok {
			return nil, truncated
		}
	}

	if hasJump {
		jump, ok = ReadValue(&s, false, true)
		if !ok {
			return nil, truncated
		}
	}

	inst := &Instruction{
		Mnemonic: enc.Mnemonic,
		Offset:   offset,
		Len:      need,
		Code:     code[offset : offset+need : offset+need],
		Wide:     wide,
		Encoding: enc,
	}

	if hasJump {
		inst.Operands = []Operand{RelativeOffset(int16(jump)) + RelativeOffset(need)}
		return inst, nil
	}

	var regOperand, rmOperand Operand
	if fields.Has(FieldReg) {
		regOperand = register(reg, wide)
	}

	if fields.Has(FieldMod) {
		if memory {
			m := effectiveAddress(mod, rm)
			m.Displacement = displacement
			rmOperand = m
		} else {
			rmOperand = register(rm, wide)
		}
	}

	switch {
	case hasData:
		// Immediates are always the
		// source.
		dst := rmOperand
		if dst == nil {
			dst = regOperand
		}

		bits := 8
		if wide {
			bits = 16
		}

		inst.Operands = []Operand{dst, Immediate{Value: data, Bits: bits}}
	case destination:
		inst.Operands = []Operand{regOperand, rmOperand}
	default:
		inst.Operands = []Operand{rmOperand, regOperand}
	}

	return inst, nil
}
