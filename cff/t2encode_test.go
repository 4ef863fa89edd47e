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
	"bytes"
	"errors"
	"math"
	"testing"

	"seehuhn.de/go/postscript/funit"
)

func TestAppendNumber(t *testing.T) {
	cases := []struct {
		val float64
		len int
	}{
		{0, 1},
		{-107, 1},
		{107, 1},
		{-108, 2},
		{108, 2},
		{-1131, 2},
		{1131, 2},
		{-1132, 3},
		{1132, 3},
		{-32768, 3},
		{32767, 3},
		{0.5, 5},
		{-0.25, 5},
		{107.5, 5},
	}

	info := &decodeInfo{version: VersionCFF}
	for _, test := range cases {
		buf, err := appendNumber(nil, test.val)
		if err != nil {
			t.Errorf("%g: %v", test.val, err)
			continue
		}
		if len(buf) != test.len {
			t.Errorf("%g: got %d bytes, want %d", test.val, len(buf), test.len)
		}

		// decoding must recover the value
		code := append(buf, byte(t2endchar))
		tokens, err := info.flatten(0, code)
		if err != nil {
			t.Errorf("%g: %v", test.val, err)
			continue
		}
		if tokens[0].val != test.val {
			t.Errorf("%g: decoded as %g", test.val, tokens[0].val)
		}
	}
}

func TestAppendNumberRange(t *testing.T) {
	for _, val := range []float64{32768, -32769, 40000, math.NaN()} {
		_, err := appendNumber(nil, val)
		var rangeErr *RangeError
		if !errors.As(err, &rangeErr) {
			t.Errorf("%g: got %v, want RangeError", val, err)
		}
	}
}

func TestEncodeTokens(t *testing.T) {
	tokens := []token{
		number(1), number(200), {op: t2hstem},
		{op: t2hintmask, mask: []byte{0x80}},
		number(0.5), number(-3000), {op: t2rmoveto},
		{op: t2flex1},
		{op: t2endchar},
	}

	code, offsets, err := encodeTokens(tokens)
	if err != nil {
		t.Fatal(err)
	}

	if len(offsets) != len(tokens)+1 {
		t.Fatalf("got %d offsets, want %d", len(offsets), len(tokens)+1)
	}
	if offsets[len(offsets)-1] != len(code) {
		t.Errorf("final offset is %d, want %d", offsets[len(offsets)-1], len(code))
	}
	for i, tk := range tokens {
		if offsets[i+1]-offsets[i] != tk.encodedLength() {
			t.Errorf("token %d: got %d bytes, want %d",
				i, offsets[i+1]-offsets[i], tk.encodedLength())
		}
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			t.Fatalf("offsets not increasing at %d", i)
		}
	}
}

func TestEncodeInt(t *testing.T) {
	cases := []struct {
		val  int16
		want []byte
	}{
		{0, []byte{139}},
		{-107, []byte{32}},
		{107, []byte{246}},
		{108, []byte{247, 0}},
		{1131, []byte{250, 255}},
		{-108, []byte{251, 0}},
		{-1131, []byte{254, 255}},
		{1132, []byte{28, 0x04, 0x6C}},
		{-1132, []byte{28, 0xFB, 0x94}},
		{32767, []byte{28, 0x7F, 0xFF}},
		{-32768, []byte{28, 0x80, 0x00}},
	}
	for _, test := range cases {
		got := encodeInt(funit.Int16(test.val))
		if !bytes.Equal(got, test.want) {
			t.Errorf("%d: got %v, want %v", test.val, got, test.want)
		}
	}
}
