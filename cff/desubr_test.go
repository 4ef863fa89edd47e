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
	"testing"
)

func TestDesubroutinize(t *testing.T) {
	gsubrs := cffIndex{
		{149, 159, byte(t2rlineto), byte(t2return)},
	}
	subrs := cffIndex{
		{169, 179, byte(t2rlineto), 32, byte(t2callgsubr), byte(t2return)},
	}
	f := &Font{
		Version: VersionCFF,
		Glyphs: []*Glyph{
			{Code: []byte{byte(t2endchar)}},
			{Code: []byte{140, 141, byte(t2rmoveto), 32, byte(t2callsubr), byte(t2endchar)}},
		},
		GlobalSubrs:  gsubrs,
		privateDicts: []cffDict{{}},
		localSubrs:   []cffIndex{subrs},
	}

	err := f.Desubroutinize()
	if err != nil {
		t.Fatal(err)
	}

	if f.HasSubroutines() {
		t.Error("subroutines left after desubroutinization")
	}
	want := []byte{
		140, 141, byte(t2rmoveto),
		169, 179, byte(t2rlineto),
		149, 159, byte(t2rlineto),
		byte(t2endchar),
	}
	if !bytes.Equal(f.Glyphs[1].Code, want) {
		t.Errorf("got % x, want % x", f.Glyphs[1].Code, want)
	}
}

func TestDesubroutinizeIdempotent(t *testing.T) {
	f := &Font{
		Version: VersionCFF,
		Glyphs: []*Glyph{
			{Code: []byte{140, 141, byte(t2rmoveto), 149, 159, byte(t2rlineto), byte(t2endchar)}},
		},
		privateDicts: []cffDict{{}},
		localSubrs:   []cffIndex{nil},
	}

	if err := f.Desubroutinize(); err != nil {
		t.Fatal(err)
	}
	first := append([]byte{}, f.Glyphs[0].Code...)

	if err := f.Desubroutinize(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.Glyphs[0].Code, first) {
		t.Errorf("second pass changed the charstring")
	}
}

func TestDesubroutinizeKeepsFontOnError(t *testing.T) {
	brokenCode := []byte{247} // truncated operand
	f := &Font{
		Version: VersionCFF,
		Glyphs: []*Glyph{
			{Code: []byte{byte(t2endchar)}},
			{Code: brokenCode},
		},
		GlobalSubrs:  cffIndex{{byte(t2return)}},
		privateDicts: []cffDict{{}},
		localSubrs:   []cffIndex{nil},
	}

	err := f.Desubroutinize()
	if err == nil {
		t.Fatal("missing error")
	}
	if len(f.GlobalSubrs) != 1 {
		t.Error("global subroutines modified after error")
	}
	if !bytes.Equal(f.Glyphs[1].Code, brokenCode) {
		t.Error("charstring modified after error")
	}
}
