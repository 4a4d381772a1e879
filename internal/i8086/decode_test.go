// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

import (
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	code, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad code %q: %v", s, err)
	}

	return code
}

// ignoreEncoding ignores the matched
// encoding, which is checked separately.
var ignoreEncoding = cmpopts.IgnoreFields(Instruction{}, "Encoding")

func TestDecode(t *testing.T) {
	tests := []struct {
		Name string
		Code string
		Want *Instruction
	}{
		{
			Name: "register to register",
			Code: "89 d9",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      2,
				Wide:     true,
				Operands: []Operand{CX, BX},
			},
		},
		{
			Name: "high byte registers",
			Code: "88 e5",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      2,
				Operands: []Operand{CH, AH},
			},
		},
		{
			Name: "immediate to register",
			Code: "b9 0c 00",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      3,
				Wide:     true,
				Operands: []Operand{CX, Immediate{Value: 12, Bits: 16}},
			},
		},
		{
			Name: "8-bit immediate to register",
			Code: "b1 f4",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      2,
				Operands: []Operand{CL, Immediate{Value: 0xf4, Bits: 8}},
			},
		},
		{
			Name: "sign-extended immediate to register",
			Code: "83 c6 02",
			Want: &Instruction{
				Mnemonic: "add",
				Len:      3,
				Wide:     true,
				Operands: []Operand{SI, Immediate{Value: 2, Bits: 16}},
			},
		},
		{
			Name: "negative sign-extended immediate",
			Code: "83 e9 fe",
			Want: &Instruction{
				Mnemonic: "sub",
				Len:      3,
				Wide:     true,
				Operands: []Operand{CX, Immediate{Value: 0xfffe, Bits: 16}},
			},
		},
		{
			Name: "memory without displacement",
			Code: "88 0a",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      2,
				Operands: []Operand{&Memory{Base: BP_SI}, CL},
			},
		},
		{
			Name: "bp with zero 8-bit displacement",
			Code: "8b 56 00",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      3,
				Wide:     true,
				Operands: []Operand{DX, &Memory{Base: BP, DisplacementBits: 8}},
			},
		},
		{
			Name: "negative 8-bit displacement",
			Code: "8b 41 db",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      3,
				Wide:     true,
				Operands: []Operand{AX, &Memory{Base: BX_DI, Displacement: 0xffdb, DisplacementBits: 8}},
			},
		},
		{
			Name: "16-bit displacement",
			Code: "8a 80 87 13",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      4,
				Operands: []Operand{AL, &Memory{Base: BX_SI, Displacement: 4999, DisplacementBits: 16}},
			},
		},
		{
			Name: "direct address",
			Code: "8b 2e 05 00",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      4,
				Wide:     true,
				Operands: []Operand{BP, &Memory{Displacement: 5, DisplacementBits: 16}},
			},
		},
		{
			Name: "byte immediate to memory",
			Code: "c6 03 07",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      3,
				Operands: []Operand{&Memory{Base: BP_DI}, Immediate{Value: 7, Bits: 8}},
			},
		},
		{
			Name: "word immediate to memory with displacement",
			Code: "c7 85 85 03 5b 01",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      6,
				Wide:     true,
				Operands: []Operand{&Memory{Base: DI, Displacement: 901, DisplacementBits: 16}, Immediate{Value: 347, Bits: 16}},
			},
		},
		{
			Name: "memory to accumulator",
			Code: "a1 fb 09",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      3,
				Wide:     true,
				Operands: []Operand{AX, &Memory{Displacement: 2555, DisplacementBits: 16}},
			},
		},
		{
			Name: "accumulator to memory",
			Code: "a2 0f 00",
			Want: &Instruction{
				Mnemonic: "mov",
				Len:      3,
				Operands: []Operand{&Memory{Displacement: 15, DisplacementBits: 16}, AL},
			},
		},
		{
			Name: "immediate to accumulator",
			Code: "05 e8 03",
			Want: &Instruction{
				Mnemonic: "add",
				Len:      3,
				Wide:     true,
				Operands: []Operand{AX, Immediate{Value: 1000, Bits: 16}},
			},
		},
		{
			Name: "byte immediate to accumulator",
			Code: "3c e2",
			Want: &Instruction{
				Mnemonic: "cmp",
				Len:      2,
				Operands: []Operand{AL, Immediate{Value: 0xe2, Bits: 8}},
			},
		},
		{
			Name: "register to register subtraction",
			Code: "29 d8",
			Want: &Instruction{
				Mnemonic: "sub",
				Len:      2,
				Wide:     true,
				Operands: []Operand{AX, BX},
			},
		},
		{
			Name: "compare memory with register",
			Code: "3b 18",
			Want: &Instruction{
				Mnemonic: "cmp",
				Len:      2,
				Wide:     true,
				Operands: []Operand{BX, &Memory{Base: BX_SI}},
			},
		},
		{
			Name: "compare immediate with direct address",
			Code: "83 3e e2 12 1d",
			Want: &Instruction{
				Mnemonic: "cmp",
				Len:      5,
				Wide:     true,
				Operands: []Operand{&Memory{Displacement: 4834, DisplacementBits: 16}, Immediate{Value: 29, Bits: 16}},
			},
		},
		{
			Name: "subtract byte immediate from memory",
			Code: "80 2f 22",
			Want: &Instruction{
				Mnemonic: "sub",
				Len:      3,
				Operands: []Operand{&Memory{Base: BX}, Immediate{Value: 34, Bits: 8}},
			},
		},
		{
			Name: "word immediate to register",
			Code: "81 c4 88 01",
			Want: &Instruction{
				Mnemonic: "add",
				Len:      4,
				Wide:     true,
				Operands: []Operand{SP, Immediate{Value: 392, Bits: 16}},
			},
		},
		{
			Name: "jump to self",
			Code: "74 fe",
			Want: &Instruction{
				Mnemonic: "je",
				Len:      2,
				Operands: []Operand{RelativeOffset(0)},
			},
		},
		{
			Name: "backward jump",
			Code: "75 f4",
			Want: &Instruction{
				Mnemonic: "jne",
				Len:      2,
				Operands: []Operand{RelativeOffset(-10)},
			},
		},
		{
			Name: "forward jump",
			Code: "e3 00",
			Want: &Instruction{
				Mnemonic: "jcxz",
				Len:      2,
				Operands: []Operand{RelativeOffset(2)},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			code := mustHex(t, test.Code)

			// Add trailing noise to make sure
			// only the instruction is consumed.
			buf := append(code, 0xff, 0xff, 0xff, 0xff)
			got, err := Decode(buf, 0)
			if err != nil {
				t.Fatalf("Decode(% x): %v", code, err)
			}

			test.Want.Code = code
			if diff := cmp.Diff(test.Want, got, ignoreEncoding); diff != "" {
				t.Fatalf("Decode(% x): (-want, +got)\n%s", code, diff)
			}

			if got.Encoding == nil || got.Encoding.Mnemonic != got.Mnemonic {
				t.Fatalf("Decode(% x): got encoding %v for %s", code, got.Encoding, got.Mnemonic)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		Name   string
		Code   string
		Offset int
		Want   error
		Is     error
	}{
		{
			Name: "unrecognised opcode",
			Code: "ff",
			Want: &UnrecognizedOpcodeError{Offset: 0, Byte: 0xff},
			Is:   ErrUnrecognizedOpcode,
		},
		{
			Name:   "unrecognised opcode after valid code",
			Code:   "89 d9 0f",
			Offset: 2,
			Want:   &UnrecognizedOpcodeError{Offset: 2, Byte: 0x0f},
			Is:     ErrUnrecognizedOpcode,
		},
		{
			Name: "wrong opcode extension",
			Code: "c6 08 07",
			Want: &UnrecognizedOpcodeError{Offset: 0, Byte: 0xc6},
			Is:   ErrUnrecognizedOpcode,
		},
		{
			Name: "missing ModR/M byte",
			Code: "8b",
			Want: &TruncatedInstructionError{Offset: 0, Mnemonic: "mov", Need: 2, Have: 1},
			Is:   ErrTruncatedInstruction,
		},
		{
			Name: "ambiguous missing ModR/M byte",
			Code: "80",
			Want: &TruncatedInstructionError{Offset: 0, Need: 2, Have: 1},
			Is:   ErrTruncatedInstruction,
		},
		{
			Name: "missing data",
			Code: "80 2f",
			Want: &TruncatedInstructionError{Offset: 0, Mnemonic: "sub", Need: 3, Have: 2},
			Is:   ErrTruncatedInstruction,
		},
		{
			Name: "missing jump offset",
			Code: "74",
			Want: &TruncatedInstructionError{Offset: 0, Mnemonic: "je", Need: 2, Have: 1},
			Is:   ErrTruncatedInstruction,
		},
		{
			Name: "partial displacement",
			Code: "8b 2e 05",
			Want: &TruncatedInstructionError{Offset: 0, Mnemonic: "mov", Need: 4, Have: 3},
			Is:   ErrTruncatedInstruction,
		},
		{
			Name:   "partial data after displacement",
			Code:   "89 d9 c7 85 85 03 5b",
			Offset: 2,
			Want:   &TruncatedInstructionError{Offset: 2, Mnemonic: "mov", Need: 6, Have: 5},
			Is:     ErrTruncatedInstruction,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			code := mustHex(t, test.Code)
			inst, err := Decode(code, test.Offset)
			if err == nil {
				t.Fatalf("Decode(% x, %d): got %#v, want error", code, test.Offset, inst)
			}

			if !errors.Is(err, test.Is) {
				t.Fatalf("Decode(% x, %d): got error %v, want %v", code, test.Offset, err, test.Is)
			}

			if diff := cmp.Diff(test.Want, err); diff != "" {
				t.Fatalf("Decode(% x, %d): (-want, +got)\n%s", code, test.Offset, diff)
			}
		})
	}
}

func TestDecodeEOF(t *testing.T) {
	code := mustHex(t, "89 d9")
	if _, err := Decode(code, len(code)); err != io.EOF {
		t.Fatalf("Decode() at end of code: got error %v, want %v", err, io.EOF)
	}

	if _, err := Decode(nil, 0); err != io.EOF {
		t.Fatalf("Decode() of empty code: got error %v, want %v", err, io.EOF)
	}

	for _, offset := range []int{-1, 3} {
		_, err := Decode(code, offset)
		if err == nil || err == io.EOF {
			t.Fatalf("Decode() at offset %d: got error %v, want invalid offset", offset, err)
		}
	}
}

func TestDecodeAll(t *testing.T) {
	code := mustHex(t, "89 d9 b9 0c 00 83 c6 02 74 fe ff 89 d9")
	insts, err := DecodeAll(code)
	var unrecognised *UnrecognizedOpcodeError
	if !errors.As(err, &unrecognised) {
		t.Fatalf("DecodeAll(): got error %v, want *UnrecognizedOpcodeError", err)
	}

	if unrecognised.Offset != 10 || unrecognised.Byte != 0xff {
		t.Fatalf("DecodeAll(): got error %v, want offset 10", err)
	}

	var got []string
	var offsets []int
	for _, inst := range insts {
		got = append(got, inst.Mnemonic)
		offsets = append(offsets, inst.Offset)
	}

	want := []string{"mov", "mov", "add", "je"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("DecodeAll(): mnemonics (-want, +got)\n%s", diff)
	}

	wantOffsets := []int{0, 2, 5, 8}
	if diff := cmp.Diff(wantOffsets, offsets); diff != "" {
		t.Fatalf("DecodeAll(): offsets (-want, +got)\n%s", diff)
	}

	// Resynchronising past the bad byte
	// must decode the rest.
	inst, err := Decode(code, unrecognised.Offset+1)
	if err != nil {
		t.Fatalf("Decode(%d): %v", unrecognised.Offset+1, err)
	}

	if inst.Mnemonic != "mov" || inst.Len != 2 {
		t.Fatalf("Decode(%d): got %s with length %d, want mov with length 2", unrecognised.Offset+1, inst.Mnemonic, inst.Len)
	}
}

func TestEffectiveAddressDisplacement(t *testing.T) {
	// Use mov reg/mem to reg, with d=1,
	// w=1 and reg=ax, trying every mod
	// and rm combination.
	for mod := byte(0); mod < 4; mod++ {
		for rm := byte(0); rm < 8; rm++ {
			modrm := mod<<6 | rm
			code := []byte{0x8b, modrm, 0x34, 0x12}
			inst, err := Decode(code, 0)
			if err != nil {
				t.Fatalf("Decode(% x): %v", code[:2], err)
			}

			if mod == 0b11 {
				if _, ok := inst.Operands[1].(*Register); !ok {
					t.Errorf("Decode(% x): got operand %#v, want register", code[:2], inst.Operands[1])
				}

				if inst.Len != 2 {
					t.Errorf("Decode(% x): got length %d, want 2", code[:2], inst.Len)
				}

				continue
			}

			m, ok := inst.Operands[1].(*Memory)
			if !ok {
				t.Fatalf("Decode(% x): got operand %#v, want memory", code[:2], inst.Operands[1])
			}

			var want Memory
			switch {
			case mod == 0b00 && rm == 0b110:
				want = Memory{Displacement: 0x1234, DisplacementBits: 16}
			case mod == 0b00:
				want = Memory{Base: MemoryBases[rm]}
			case mod == 0b01:
				want = Memory{Base: MemoryBases[rm], Displacement: 0x0034, DisplacementBits: 8}
			case mod == 0b10:
				want = Memory{Base: MemoryBases[rm], Displacement: 0x1234, DisplacementBits: 16}
			}

			if diff := cmp.Diff(&want, m); diff != "" {
				t.Errorf("Decode(% x): (-want, +got)\n%s", code[:2], diff)
			}

			if wantLen := 2 + want.DisplacementBits/8; inst.Len != wantLen {
				t.Errorf("Decode(% x): got length %d, want %d", code[:2], inst.Len, wantLen)
			}
		}
	}
}

func TestRegisterSelection(t *testing.T) {
	// mov r/m, reg with mod=11 and
	// reg=rm, in both widths.
	for idx := byte(0); idx < 8; idx++ {
		for w := byte(0); w < 2; w++ {
			code := []byte{0x88 | w, 0b11_000_000 | idx<<3 | idx}
			inst, err := Decode(code, 0)
			if err != nil {
				t.Fatalf("Decode(% x): %v", code, err)
			}

			want := Registers8bit[idx]
			if w == 1 {
				want = Registers16bit[idx]
			}

			for _, op := range inst.Operands {
				reg, ok := op.(*Register)
				if !ok || reg != want {
					t.Errorf("Decode(% x): got operand %#v, want %s", code, op, want)
				}
			}

			if w == 0 && idx >= 4 && !want.High() {
				t.Errorf("register %s should be a high-byte register", want)
			}
		}
	}
}

func TestRelativeJumps(t *testing.T) {
	var jumps int
	for _, enc := range Encodings {
		if !enc.Has(FieldRelativeJump) {
			continue
		}

		jumps++
		opcode := enc.Bits[0].Value
		for raw := -128; raw < 128; raw++ {
			code := []byte{opcode, byte(int8(raw))}
			inst, err := Decode(code, 0)
			if err != nil {
				t.Fatalf("Decode(% x): %v", code, err)
			}

			if inst.Mnemonic != enc.Mnemonic || inst.Len != 2 {
				t.Fatalf("Decode(% x): got %s with length %d, want %s with length 2", code, inst.Mnemonic, inst.Len, enc.Mnemonic)
			}

			want := []Operand{RelativeOffset(raw + 2)}
			if diff := cmp.Diff(want, inst.Operands); diff != "" {
				t.Fatalf("Decode(% x): (-want, +got)\n%s", code, diff)
			}
		}
	}

	if jumps != 20 {
		t.Fatalf("found %d jump encodings, want 20", jumps)
	}
}

func TestDecodedLength(t *testing.T) {
	// Every instruction that decodes
	// must be between 2 and 6 bytes.
	tail := []byte{0x80, 0x81, 0x82, 0x83}
	for b0 := 0; b0 < 256; b0++ {
		for b1 := 0; b1 < 256; b1++ {
			code := append([]byte{byte(b0), byte(b1)}, tail...)
			inst, err := Decode(code, 0)
			if err != nil {
				continue
			}

			if inst.Len < 2 || inst.Len > 6 {
				t.Fatalf("Decode(% x): got length %d", code, inst.Len)
			}

			if len(inst.Operands) == 0 || len(inst.Operands) > 2 {
				t.Fatalf("Decode(% x): got %d operands", code, len(inst.Operands))
			}

			for _, op := range inst.Operands {
				if op == nil {
					t.Fatalf("Decode(% x): got nil operand", code)
				}
			}
		}
	}
}

func TestDecodeConcurrent(t *testing.T) {
	code := mustHex(t, "89 d9 b9 0c 00 83 c6 02 74 fe c7 85 85 03 5b 01 a1 fb 09")
	want, err := DecodeAll(code)
	if err != nil {
		t.Fatalf("DecodeAll(): %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([][]*Instruction, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = DecodeAll(code)
		}(i)
	}

	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("worker %d: DecodeAll(): %v", i, errs[i])
		}

		if diff := cmp.Diff(want, results[i], ignoreEncoding); diff != "" {
			t.Fatalf("worker %d: DecodeAll(): (-want, +got)\n%s", i, diff)
		}
	}
}
