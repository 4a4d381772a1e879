// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedOpcode matches any
	// *UnrecognizedOpcodeError with errors.Is.
	ErrUnrecognizedOpcode = errors.New("unrecognised opcode")

	// ErrTruncatedInstruction matches any
	// *TruncatedInstructionError with errors.Is.
	ErrTruncatedInstruction = errors.New("truncated instruction")
)

// UnrecognizedOpcodeError indicates that no
// encoding matched the machine code at
// Offset.
//
// Decoding another offset is unaffected, so
// the caller may skip the byte and carry on.
type UnrecognizedOpcodeError struct {
	Offset int
	Byte   byte
}

func (e *UnrecognizedOpcodeError) Error() string {
	return fmt.Sprintf("unrecognised opcode 0x%02x at offset 0x%04x", e.Byte, e.Offset)
}

func (e *UnrecognizedOpcodeError) Is(target error) bool {
	return target == ErrUnrecognizedOpcode
}

// TruncatedInstructionError indicates that the
// machine code at Offset ends before the
// instruction it starts.
//
// Mnemonic is empty if the instruction could
// not be identified before the code ended.
type TruncatedInstructionError struct {
	Offset   int
	Mnemonic string
	Need     int // The number of bytes the instruction requires.
	Have     int // The number of bytes available.
}

func (e *TruncatedInstructionError) Error() string {
	if e.Mnemonic == "" {
		return fmt.Sprintf("truncated instruction at offset 0x%04x: need %d bytes, have %d", e.Offset, e.Need, e.Have)
	}

	return fmt.Sprintf("truncated %s instruction at offset 0x%04x: need %d bytes, have %d", e.Mnemonic, e.Offset, e.Need, e.Have)
}

func (e *TruncatedInstructionError) Is(target error) bool {
	return target == ErrTruncatedInstruction
}
