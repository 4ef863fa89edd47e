// seehuhn.de/go/cffsubr - subroutinize and desubroutinize CFF font data
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cff

import (
	"math"

	"seehuhn.de/go/postscript/funit"
)

// encodeTokens returns the shortest encoding of the token sequence,
// together with the byte offset of every token boundary.  The returned
// offsets slice has one entry more than the token sequence; the final
// entry is the total length of the code.
func encodeTokens(tokens []token) ([]byte, []int, error) {
	var code []byte
	offsets := make([]int, 0, len(tokens)+1)
	for _, tk := range tokens {
		offsets = append(offsets, len(code))
		var err error
		code, err = tk.append(code)
		if err != nil {
			return nil, nil, err
		}
	}
	offsets = append(offsets, len(code))
	return code, offsets, nil
}

// append appends the encoding of the token to buf.
func (tk token) append(buf []byte) ([]byte, error) {
	switch {
	case tk.isNumber():
		return appendNumber(buf, tk.val)
	case tk.op == t2hintmask || tk.op == t2cntrmask:
		buf = append(buf, byte(tk.op))
		return append(buf, tk.mask...), nil
	default:
		return append(buf, tk.op.Bytes()...), nil
	}
}

// encodedLength returns the number of bytes the token occupies in a
// charstring.
func (tk token) encodedLength() int {
	switch {
	case tk.isNumber():
		if x16, ok := asInt16(tk.val); ok {
			return len(encodeInt(x16))
		}
		return 5
	case tk.op == t2hintmask || tk.op == t2cntrmask:
		return 1 + len(tk.mask)
	default:
		return len(tk.op.Bytes())
	}
}

// appendNumber appends the shortest Type 2 encoding of x to buf.
//
// Integers in [-107, 107] use one byte, integers with absolute value
// in [108, 1131] use two bytes, other integers in [-32768, 32767] use
// three bytes.  All other values use the five byte 16.16 fixed point
// form.  Values outside the 16.16 range cannot be encoded.
func appendNumber(buf []byte, x float64) ([]byte, error) {
	if x16, ok := asInt16(x); ok {
		return append(buf, encodeInt(x16)...), nil
	}

	if math.IsNaN(x) || x >= 32768 || x < -32768 {
		return nil, &RangeError{Value: x}
	}
	x32 := int32(math.Round(x * 65536))
	return append(buf, 255, byte(x32>>24), byte(x32>>16), byte(x32>>8), byte(x32)), nil
}

// asInt16 reports whether x is an integer which fits into the one, two
// and three byte operand encodings.
func asInt16(x float64) (funit.Int16, bool) {
	if x < -32768 || x > 32767 {
		return 0, false
	}
	x16 := funit.Int16(x)
	if math.Abs(float64(x16)-x) <= 0.5/65536 {
		return x16, true
	}
	return 0, false
}

func encodeInt(x funit.Int16) []byte {
	switch {
	case x >= -107 && x <= 107:
		return []byte{byte(x + 139)}
	case x > 107 && x <= 1131:
		x -= 108
		b1 := byte(x)
		x >>= 8
		b0 := byte(x + 247)
		return []byte{b0, b1}
	case x < -107 && x >= -1131:
		x = -108 - x
		b1 := byte(x)
		x >>= 8
		b0 := byte(x + 251)
		return []byte{b0, b1}
	default:
		return []byte{28, byte(x >> 8), byte(x)}
	}
}
