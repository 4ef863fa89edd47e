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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlattenNumbers(t *testing.T) {
	cases := []struct {
		in  []byte
		val float64
	}{
		{[]byte{139}, 0},
		{[]byte{32}, -107},
		{[]byte{246}, 107},
		{[]byte{247, 0}, 108},
		{[]byte{250, 255}, 1131},
		{[]byte{251, 0}, -108},
		{[]byte{254, 255}, -1131},
		{[]byte{28, 0x7F, 0xFF}, 32767},
		{[]byte{28, 0x80, 0x00}, -32768},
		{[]byte{255, 0x00, 0x01, 0x80, 0x00}, 1.5},
		{[]byte{255, 0xFF, 0xFF, 0x80, 0x00}, -0.5},
	}

	info := &decodeInfo{version: VersionCFF}
	for _, test := range cases {
		code := append(append([]byte{}, test.in...), byte(t2endchar))
		tokens, err := info.flatten(0, code)
		if err != nil {
			t.Errorf("%v: %v", test.in, err)
			continue
		}
		if len(tokens) != 2 || !tokens[0].isNumber() {
			t.Errorf("%v: unexpected tokens %v", test.in, tokens)
			continue
		}
		if tokens[0].val != test.val {
			t.Errorf("%v: got %g, want %g", test.in, tokens[0].val, test.val)
		}
	}
}

func TestFlattenInlinesSubrs(t *testing.T) {
	// gsubr 0 draws a line, subr 0 calls gsubr 0
	gsubrs := cffIndex{
		{149, 159, byte(t2rlineto), byte(t2return)},
	}
	subrs := cffIndex{
		{32, byte(t2callgsubr), 169, 179, byte(t2rlineto), byte(t2return)},
	}
	info := &decodeInfo{
		subrs:   subrs,
		gsubrs:  gsubrs,
		version: VersionCFF,
	}

	code := []byte{140, 141, byte(t2rmoveto), 32, byte(t2callsubr), byte(t2endchar)}
	tokens, err := info.flatten(0, code)
	if err != nil {
		t.Fatal(err)
	}

	want := []token{
		number(1), number(2), {op: t2rmoveto},
		number(10), number(20), {op: t2rlineto},
		number(30), number(40), {op: t2rlineto},
		{op: t2endchar},
	}
	if d := cmp.Diff(want, tokens, cmp.AllowUnexported(token{})); d != "" {
		t.Errorf("tokens differ (-want +got):\n%s", d)
	}
}

func TestFlattenHintmask(t *testing.T) {
	// one hstem, plus one vstem implicitly declared by the arguments
	// in front of the hintmask operator
	code := []byte{
		140, 150, byte(t2hstem),
		141, 151, byte(t2hintmask), 0xA5,
		142, 143, byte(t2rmoveto),
		byte(t2endchar),
	}
	info := &decodeInfo{version: VersionCFF}
	tokens, err := info.flatten(0, code)
	if err != nil {
		t.Fatal(err)
	}

	var mask []byte
	for _, tk := range tokens {
		if tk.op == t2hintmask {
			mask = tk.mask
		}
	}
	if !bytes.Equal(mask, []byte{0xA5}) {
		t.Errorf("got mask %v, want [165]", mask)
	}

	// re-encoding must reproduce the input
	code2, _, err := encodeTokens(tokens)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(code, code2) {
		t.Errorf("got %v, want %v", code2, code)
	}
}

func TestFlattenErrors(t *testing.T) {
	cases := []struct {
		name string
		code []byte
	}{
		{"truncated int2", []byte{247}},
		{"truncated int3", []byte{28, 0}},
		{"truncated float", []byte{255, 0, 0}},
		{"missing endchar", []byte{139}},
		{"hintmask before stems", []byte{byte(t2hintmask), 0xFF, byte(t2endchar)}},
		{"truncated hintmask", []byte{140, 141, byte(t2hstem), byte(t2hintmask)}},
		{"callsubr without operand", []byte{byte(t2callsubr), byte(t2endchar)}},
		{"vsindex in CFF", []byte{139, byte(t2vsindex), byte(t2endchar)}},
		{"blend in CFF", []byte{139, byte(t2blend), byte(t2endchar)}},
	}

	info := &decodeInfo{version: VersionCFF}
	for _, test := range cases {
		_, err := info.flatten(0, test.code)
		var charErr *InvalidCharstringError
		if !errors.As(err, &charErr) {
			t.Errorf("%s: got %v, want InvalidCharstringError", test.name, err)
		}
	}
}

func TestFlattenRecursion(t *testing.T) {
	// subroutine 0 calls itself
	subrs := cffIndex{
		{32, byte(t2callsubr)},
	}
	info := &decodeInfo{subrs: subrs, version: VersionCFF}

	code := []byte{32, byte(t2callsubr), byte(t2endchar)}
	_, err := info.flatten(7, code)
	var recErr *RecursionError
	if !errors.As(err, &recErr) {
		t.Fatalf("got %v, want RecursionError", err)
	}
	if recErr.GID != 7 {
		t.Errorf("got GID %d, want 7", recErr.GID)
	}
}

func TestFlattenInvalidSubrIndex(t *testing.T) {
	info := &decodeInfo{version: VersionCFF}
	code := []byte{139, byte(t2callsubr), byte(t2endchar)}
	_, err := info.flatten(0, code)
	if err == nil {
		t.Fatal("missing error for out of range subroutine index")
	}
}

func TestFlattenBlend(t *testing.T) {
	info := &decodeInfo{
		version:    VersionCFF2,
		numRegions: func(vsIndex int) int { return 1 },
	}

	// one blended value: base 10, delta 5, count 1
	code := []byte{149, 144, 140, byte(t2blend), 159, byte(t2rmoveto)}
	tokens, err := info.flatten(0, code)
	if err != nil {
		t.Fatal(err)
	}

	want := []token{
		number(10), number(5), number(1), {op: t2blend},
		number(20), {op: t2rmoveto},
	}
	if d := cmp.Diff(want, tokens, cmp.AllowUnexported(token{})); d != "" {
		t.Errorf("tokens differ (-want +got):\n%s", d)
	}
}

func TestFlattenCFF2Errors(t *testing.T) {
	cases := []struct {
		name string
		code []byte
	}{
		{"endchar", []byte{byte(t2endchar)}},
		{"return", []byte{byte(t2return)}},
		{"dotsection", []byte{12, 0}},
		{"arithmetic", []byte{139, 139, 12, 10}},
	}

	info := &decodeInfo{version: VersionCFF2}
	for _, test := range cases {
		_, err := info.flatten(0, test.code)
		if err == nil {
			t.Errorf("%s: missing error", test.name)
		}
	}
}

func TestBias(t *testing.T) {
	cases := []struct {
		nSubrs, bias int
	}{
		{0, 107},
		{1239, 107},
		{1240, 1131},
		{33899, 1131},
		{33900, 32768},
	}
	for _, test := range cases {
		if got := bias(test.nSubrs); got != test.bias {
			t.Errorf("bias(%d) = %d, want %d", test.nSubrs, got, test.bias)
		}
	}
}
