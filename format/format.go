// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package format renders decoded 8086 instructions as
// assembly text that NASM will reassemble to the same
// machine code.
package format

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"firefly-os.dev/tools/sim8086/internal/i8086"
)

// commentColumn is the column at which
// offset comments start, if the line is
// short enough.
const commentColumn = 32

// Printer writes assembly listings.
//
// The zero value is ready to use.
type Printer struct {
	// Offsets adds a trailing comment to each
	// line, giving its offset and machine code.
	Offsets bool
}

// Instruction returns the assembly text for
// a single instruction, such as
//
//	mov word [bp+di-37], 347
func Instruction(inst *i8086.Instruction) string {
	var buf strings.Builder
	buf.WriteString(inst.Mnemonic)
	for i, op := range inst.Operands {
		if i == 0 {
			buf.WriteByte(' ')
		} else {
			buf.WriteString(", ")
		}

		if _, ok := op.(*i8086.Memory); ok && hasImmediate(inst) {
			if inst.Wide {
				buf.WriteString("word ")
			} else {
				buf.WriteString("byte ")
			}
		}

		buf.WriteString(Operand(op))
	}

	return buf.String()
}

// hasImmediate returns whether the
// instruction's size can only be
// determined from its memory operand.
func hasImmediate(inst *i8086.Instruction) bool {
	for _, op := range inst.Operands {
		if _, ok := op.(i8086.Immediate); ok {
			return true
		}
	}

	return false
}

// Operand returns the assembly text for a
// single operand.
func Operand(op i8086.Operand) string {
	switch op := op.(type) {
	case *i8086.Register:
		return op.Name
	case *i8086.Memory:
		return memory(op)
	case i8086.Immediate:
		return strconv.Itoa(op.Int())
	case i8086.RelativeOffset:
		// NASM treats a bare number as an
		// absolute address, so we write the
		// target relative to the start of
		// the instruction.
		if op < 0 {
			return "$+0" + strconv.Itoa(int(op))
		}

		return "$+0+" + strconv.Itoa(int(op))
	default:
		panic(fmt.Sprintf("unexpected operand type %T", op))
	}
}

func memory(m *i8086.Memory) string {
	if m.Direct() {
		return "[" + strconv.Itoa(int(m.Displacement)) + "]"
	}

	offset := m.Offset()
	switch {
	case offset > 0:
		return "[" + m.Base.Name + "+" + strconv.Itoa(offset) + "]"
	case offset < 0:
		return "[" + m.Base.Name + strconv.Itoa(offset) + "]"
	default:
		return "[" + m.Base.Name + "]"
	}
}

// Data returns a data directive that
// reproduces the given bytes.
func Data(code []byte) string {
	var buf strings.Builder
	buf.WriteString("db ")
	for i, b := range code {
		if i > 0 {
			buf.WriteString(", ")
		}

		fmt.Fprintf(&buf, "0x%02x", b)
	}

	return buf.String()
}

// WriteHeader writes the preamble of a
// listing, naming the file it was
// decoded from.
func (p *Printer) WriteHeader(w io.Writer, name string) error {
	_, err := fmt.Fprintf(w, "; %s\n\nbits 16\n\n", name)
	return err
}

// WriteInstruction writes one instruction
// to w, on its own line.
func (p *Printer) WriteInstruction(w io.Writer, inst *i8086.Instruction) error {
	return p.writeLine(w, Instruction(inst), inst.Offset, inst.Code)
}

// WriteData writes a data directive for
// bytes that could not be decoded, found
// at the given offset.
func (p *Printer) WriteData(w io.Writer, offset int, code []byte) error {
	return p.writeLine(w, Data(code), offset, code)
}

func (p *Printer) writeLine(w io.Writer, text string, offset int, code []byte) error {
	if !p.Offsets {
		_, err := io.WriteString(w, text+"\n")
		return err
	}

	pad := 1
	if len(text) < commentColumn {
		pad = commentColumn - len(text)
	}

	_, err := fmt.Fprintf(w, "%s%s; 0x%04x: % x\n", text, strings.Repeat(" ", pad), offset, code)
	return err
}

// Fprint writes the instructions to w,
// one per line.
func (p *Printer) Fprint(w io.Writer, insts []*i8086.Instruction) error {
	allocated := false
	var buf *bytes.Buffer
	if b, ok := w.(*bytes.Buffer); ok {
		buf = b
	} else {
		allocated = true
		buf = new(bytes.Buffer)
	}

	for _, inst := range insts {
		// Writes to a bytes.Buffer
		// cannot fail.
		p.WriteInstruction(buf, inst)
	}

	if allocated {
		_, err := w.Write(buf.Bytes())
		return err
	}

	return nil
}

// Listing writes a complete assembly
// listing to w, which NASM can assemble.
func (p *Printer) Listing(w io.Writer, name string, insts []*i8086.Instruction) error {
	// Writes to a bytes.Buffer
	// cannot fail.
	var buf bytes.Buffer
	p.WriteHeader(&buf, name)
	p.Fprint(&buf, insts)
	_, err := w.Write(buf.Bytes())
	return err
}

// Fprint writes the instructions to w,
// one per line.
func Fprint(w io.Writer, insts []*i8086.Instruction) error {
	var p Printer
	return p.Fprint(w, insts)
}

// Listing writes a complete assembly
// listing to w, which NASM can assemble.
func Listing(w io.Writer, name string, insts []*i8086.Instruction) error {
	var p Printer
	return p.Listing(w, name, insts)
}
