// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

// Encodings contains every supported
// instruction encoding.
//
// The entries must be prefix-disjoint:
// no machine code may have the fixed
// shape of more than one entry, as the
// decoder stops at the first match.
// Where entries share an opcode byte,
// as with the immediate forms of add,
// sub, and cmp, they are distinguished
// by literal bits in the second byte.
var Encodings = []*Encoding{
	// Data transfer.
	mustParseEncoding("mov", "100010 d w | mod reg rm | disp"),
	mustParseEncoding("mov", "1100011 w | mod 000 rm | disp data"),
	mustParseEncoding("mov", "1011 w reg | data"),
	mustParseEncoding("mov", "1010000 w | addr d=1 mod=00 reg=000 rm=110"),
	mustParseEncoding("mov", "1010001 w | addr d=0 mod=00 reg=000 rm=110"),

	// Arithmetic.
	mustParseEncoding("add", "000000 d w | mod reg rm | disp"),
	mustParseEncoding("add", "100000 s w | mod 000 rm | disp data"),
	mustParseEncoding("add", "0000010 w | data reg=000"),
	mustParseEncoding("sub", "001010 d w | mod reg rm | disp"),
	mustParseEncoding("sub", "100000 s w | mod 101 rm | disp data"),
	mustParseEncoding("sub", "0010110 w | data reg=000"),
	mustParseEncoding("cmp", "001110 d w | mod reg rm | disp"),
	mustParseEncoding("cmp", "100000 s w | mod 111 rm | disp data"),
	mustParseEncoding("cmp", "0011110 w | data reg=000"),

	// Control transfer.
	mustParseEncoding("je", "01110100 | ip-inc8"),
	mustParseEncoding("jl", "01111100 | ip-inc8"),
	mustParseEncoding("jle", "01111110 | ip-inc8"),
	mustParseEncoding("jb", "01110010 | ip-inc8"),
	mustParseEncoding("jbe", "01110110 | ip-inc8"),
	mustParseEncoding("jp", "01111010 | ip-inc8"),
	mustParseEncoding("jo", "01110000 | ip-inc8"),
	mustParseEncoding("js", "01111000 | ip-inc8"),
	mustParseEncoding("jne", "01110101 | ip-inc8"),
	mustParseEncoding("jnl", "01111101 | ip-inc8"),
	mustParseEncoding("jg", "01111111 | ip-inc8"),
	mustParseEncoding("jnb", "01110011 | ip-inc8"),
	mustParseEncoding("ja", "01110111 | ip-inc8"),
	mustParseEncoding("jnp", "01111011 | ip-inc8"),
	mustParseEncoding("jno", "01110001 | ip-inc8"),
	mustParseEncoding("jns", "01111001 | ip-inc8"),
	mustParseEncoding("loop", "11100010 | ip-inc8"),
	mustParseEncoding("loopz", "11100001 | ip-inc8"),
	mustParseEncoding("loopnz", "11100000 | ip-inc8"),
	mustParseEncoding("jcxz", "11100011 | ip-inc8"),
}

// EncodingsByMnemonic maps each mnemonic
// to its encodings, in table order.
var EncodingsByMnemonic = make(map[string][]*Encoding)

// Mnemonics lists each mnemonic once, in
// table order.
var Mnemonics []string

func init() {
	for _, enc := range Encodings {
		if _, ok := EncodingsByMnemonic[enc.Mnemonic]; !ok {
			Mnemonics = append(Mnemonics, enc.Mnemonic)
		}

		EncodingsByMnemonic[enc.Mnemonic] = append(EncodingsByMnemonic[enc.Mnemonic], enc)
	}
}

func mustParseEncoding(mnemonic, syntax string) *Encoding {
	e, err := ParseEncoding(mnemonic, syntax)
	if err != nil {
		panic(err.Error())
	}

	return e
}
