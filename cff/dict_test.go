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
	"testing"

	"seehuhn.de/go/geom/matrix"
)

func TestDictRoundTrip(t *testing.T) {
	d := cffDict{
		opCharStrings: {int32(42)},
		opCIDCount:    {int32(100000)},
		opPrivate:     {int32(57), int32(12345)},
		opItalicAngle: {float64(-9.5)},
	}

	ss := &cffStrings{}
	blob := d.encode(ss)
	out, err := decodeDict(blob, VersionCFF)
	if err != nil {
		t.Fatal(err)
	}

	if x := out.getInt(opCharStrings, 0); x != 42 {
		t.Errorf("CharStrings: got %d, want 42", x)
	}
	if x := out.getInt(opCIDCount, 0); x != 100000 {
		t.Errorf("CIDCount: got %d, want 100000", x)
	}
	if x, y, ok := out.getPair(opPrivate); !ok || x != 57 || y != 12345 {
		t.Errorf("Private: got %d,%d,%t", x, y, ok)
	}
	if x := out.getFloat(opItalicAngle, 0); x != -9.5 {
		t.Errorf("ItalicAngle: got %g, want -9.5", x)
	}
}

func TestDictStrings(t *testing.T) {
	d := cffDict{
		opWeight:   {"Regular"},  // a standard string
		opFullName: {"Fun Font"}, // a custom string
	}

	ss := &cffStrings{}
	blob := d.encode(ss)
	out, err := decodeDict(blob, VersionCFF)
	if err != nil {
		t.Fatal(err)
	}

	if got := out.getStringValue(opWeight, ss); got != "Regular" {
		t.Errorf("Weight: got %q", got)
	}
	if got := out.getStringValue(opFullName, ss); got != "Fun Font" {
		t.Errorf("FullName: got %q", got)
	}
}

func TestDictROSFirst(t *testing.T) {
	// The ROS operator must precede all other top DICT entries.
	d := cffDict{
		opCharStrings: {int32(42)},
		opROS:         {"Adobe", "Identity", int32(0)},
	}
	ss := &cffStrings{}
	blob := d.encode(ss)

	out, err := decodeDict(blob, VersionCFF)
	if err != nil {
		t.Fatal(err)
	}
	if len(out[opROS]) != 3 {
		t.Fatalf("ROS: got %v", out[opROS])
	}

	// the last byte pair of the first entry must be the ROS opcode
	rosEnd := -1
	for i := 0; i+1 < len(blob); i++ {
		if blob[i] == 12 && blob[i+1] == byte(opROS&0xFF) {
			rosEnd = i
			break
		}
	}
	if rosEnd < 0 {
		t.Fatal("ROS opcode not found")
	}
	for i := 0; i < rosEnd; i++ {
		if blob[i] == byte(opCharStrings) {
			t.Error("CharStrings operator precedes ROS")
		}
	}
}

func TestDictFontMatrix(t *testing.T) {
	m := matrix.Matrix{0.002, 0, 0, 0.001, 0, 10}
	d := cffDict{}
	d.setFontMatrix(opFontMatrix, m, false)

	ss := &cffStrings{}
	out, err := decodeDict(d.encode(ss), VersionCFF)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.getFontMatrix(opFontMatrix); got != m {
		t.Errorf("got %v, want %v", got, m)
	}
}

func TestDictBlendOperands(t *testing.T) {
	// CFF2 DICT entries can contain blend operators between operands
	d := cffDict{
		opBlueValues: {int32(0), int32(10), dictBlend{}, int32(500)},
	}
	out, err := decodeDict(d.encode(nil), VersionCFF2)
	if err != nil {
		t.Fatal(err)
	}
	args := out[opBlueValues]
	if len(args) != 4 {
		t.Fatalf("got %v", args)
	}
	if _, ok := args[2].(dictBlend); !ok {
		t.Errorf("blend marker lost: %v", args)
	}
}
