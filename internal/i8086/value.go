// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package i8086

import (
	"golang.org/x/crypto/cryptobyte"
)

// ReadValue reads a displacement or
// immediate value from s, advancing it
// past the bytes read.
//
// If wide is set, two bytes are read in
// little-endian order. Otherwise, one
// byte is read and sign-extended to 16
// bits if signed is set.
//
// ReadValue reports whether it succeeded.
// On failure, s is not advanced.
func ReadValue(s *cryptobyte.String, wide, signed bool) (value uint16, ok bool) {
	if wide {
		var b []byte
		if !s.ReadBytes(&b, 2) {
			return 0, false
		}

		return uint16(b[1])<<8 | uint16(b[0]), true
	}

	var b uint8
	if !s.ReadUint8(&b) {
		return 0, false
	}

	if signed {
		return uint16(int16(int8(b))), true
	}

	return uint16(b), true
}

// valueLen returns the number of bytes
// ReadValue will consume.
func valueLen(wide bool) int {
	if wide {
		return 2
	}

	return 1
}
