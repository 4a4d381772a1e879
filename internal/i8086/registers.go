// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

import (
	"encoding/json"
	"fmt"
)

// Register contains information about
// an 8086 register, or one of the
// register pairs that can form the base
// of an effective address.
type Register struct {
	Name   string
	Offset uint8 // The byte offset within the containing 16-bit register.
}

func (r *Register) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Name)
}

func (r *Register) UnmarshalJSON(data []byte) error {
	var s string
	err := json.Unmarshal(data, &s)
	if err != nil {
		return err
	}

	got, ok := RegistersByName[s]
	if !ok {
		return fmt.Errorf("invalid register %q", s)
	}

	*r = *got

	return nil
}

func (r *Register) OperandType() OperandType { return TypeRegister }
func (r *Register) String() string           { return r.Name }

// High returns whether r is one of the
// high-byte aliases (ah, ch, dh, bh).
func (r *Register) High() bool {
	return r.Offset == 1
}

var (
	// 16-bit registers.
	AX = &Register{Name: "ax"}
	CX = &Register{Name: "cx"}
	DX = &Register{Name: "dx"}
	BX = &Register{Name: "bx"}
	SP = &Register{Name: "sp"}
	BP = &Register{Name: "bp"}
	SI = &Register{Name: "si"}
	DI = &Register{Name: "di"}

	// 8-bit registers.
	AL = &Register{Name: "al"}
	CL = &Register{Name: "cl"}
	DL = &Register{Name: "dl"}
	BL = &Register{Name: "bl"}
	AH = &Register{Name: "ah", Offset: 1}
	CH = &Register{Name: "ch", Offset: 1}
	DH = &Register{Name: "dh", Offset: 1}
	BH = &Register{Name: "bh", Offset: 1}

	// Pseudo register pairs, which only
	// appear as memory bases.
	BX_SI = &Register{Name: "bx+si"}
	BX_DI = &Register{Name: "bx+di"}
	BP_SI = &Register{Name: "bp+si"}
	BP_DI = &Register{Name: "bp+di"}
)

var (
	// Registers contains every register,
	// including the pseudo-register pairs.
	Registers = []*Register{
		AL, CL, DL, BL, AH, CH, DH, BH,
		AX, CX, DX, BX, SP, BP, SI, DI,
		BX_SI, BX_DI, BP_SI, BP_DI,
	}

	// Registers8bit contains the 8-bit
	// registers, indexed by ModR/M.reg.
	Registers8bit = [8]*Register{AL, CL, DL, BL, AH, CH, DH, BH}

	// Registers16bit contains the 16-bit
	// registers, indexed by ModR/M.reg.
	Registers16bit = [8]*Register{AX, CX, DX, BX, SP, BP, SI, DI}

	// MemoryBases contains the base
	// registers, indexed by ModR/M.rm.
	// Note that rm 0b110 with mod 0b00
	// is a direct address, not bp.
	MemoryBases = [8]*Register{BX_SI, BX_DI, BP_SI, BP_DI, SI, DI, BP, BX}
)

// RegistersByName maps each register's
// name to the register, for decoding
// JSON.
var RegistersByName = make(map[string]*Register)

func init() {
	for _, reg := range Registers {
		RegistersByName[reg.Name] = reg
	}
}

// register returns the register selected
// by a 3-bit ModR/M.reg (or ModR/M.rm with
// mod 0b11) field.
func register(reg uint16, wide bool) *Register {
	if wide {
		return Registers16bit[reg&7]
	}

	return Registers8bit[reg&7]
}
