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

func TestConvertToCFF2(t *testing.T) {
	f := testFontSimple()
	err := f.ConvertTo(VersionCFF2, nil)
	if err != nil {
		t.Fatal(err)
	}

	if f.Version != VersionCFF2 {
		t.Fatalf("got version %s", f.Version)
	}
	if f.FontInfo != nil {
		t.Error("font name kept")
	}
	if f.GlyphNames() != nil {
		t.Error("glyph names kept")
	}

	// glyph widths and endchar operators are removed
	cases := [][]byte{
		{},
		{140, 141, byte(t2rmoveto), 149, 159, byte(t2rlineto)},
		{142, 143, byte(t2rmoveto)},
	}
	for gid, want := range cases {
		if !bytes.Equal(f.Glyphs[gid].Code, want) {
			t.Errorf("glyph %d: got % x, want % x", gid, f.Glyphs[gid].Code, want)
		}
	}
}

func TestConvertToCFF2Seac(t *testing.T) {
	f := testFontSimple()
	// four arguments in front of endchar select an accented base glyph
	f.Glyphs[1].Code = []byte{140, 140, 140, 140, byte(t2endchar)}

	err := f.ConvertTo(VersionCFF2, nil)
	if err == nil {
		t.Fatal("missing error for accent composition")
	}
	if f.Version != VersionCFF {
		t.Error("font modified after error")
	}
}

func TestConvertToCFF1(t *testing.T) {
	f := testFontCFF2()
	opt := &ConvertOptions{
		FontName: "Foo",
		Widths:   []float64{500, 600},
	}
	err := f.ConvertTo(VersionCFF, opt)
	if err != nil {
		t.Fatal(err)
	}

	if f.Version != VersionCFF {
		t.Fatalf("got version %s", f.Version)
	}
	if f.FontInfo == nil || f.FontInfo.FontName != "Foo" {
		t.Errorf("got font info %v", f.FontInfo)
	}
	if !f.IsCID {
		t.Error("downgraded font is not CID-keyed")
	}
	if f.FDSelect == nil || f.FDSelect(0) != 0 {
		t.Error("missing FDSelect")
	}

	// the most frequent width becomes defaultWidthX; with only one other
	// width the nominal width is clamped to minWidth+107, so the width
	// operand for glyph 1 is -107 and encodes in a single byte
	pd := f.privateDicts[0]
	if got := pd.getFloat(opDefaultWidthX, 0); got != 500 {
		t.Errorf("defaultWidthX = %g, want 500", got)
	}
	if got := pd.getFloat(opNominalWidthX, 0); got != 707 {
		t.Errorf("nominalWidthX = %g, want 707", got)
	}
	cases := [][]byte{
		{byte(t2endchar)},
		{32, 140, 141, byte(t2rmoveto), 149, 159, byte(t2rlineto), byte(t2endchar)},
	}
	for gid, want := range cases {
		if !bytes.Equal(f.Glyphs[gid].Code, want) {
			t.Errorf("glyph %d: got % x, want % x", gid, f.Glyphs[gid].Code, want)
		}
	}
}

func TestConvertToCFF1Blend(t *testing.T) {
	f := testFontCFF2()
	f.varStore = []byte{
		0, 1, // format
		0, 0, 0, 0, // variationRegionListOffset
		0, 1, // itemVariationDataCount
		0, 0, 0, 12, // offset to subtable 0
		0, 0, 0, 0, 0, 1, // itemCount, wordDeltaCount, regionIndexCount = 1
	}
	f.Glyphs[1].Code = []byte{149, 144, 140, byte(t2blend), 159, byte(t2rmoveto)}

	err := f.ConvertTo(VersionCFF, nil)
	if err == nil {
		t.Fatal("missing error for variable outlines")
	}
	if f.Version != VersionCFF2 {
		t.Error("font modified after error")
	}
}

func TestConvertToCFF1DictBlend(t *testing.T) {
	f := testFontCFF2()
	f.privateDicts[0] = cffDict{
		opBlueValues: {int32(10), dictBlend{}},
	}

	err := f.ConvertTo(VersionCFF, nil)
	if err == nil {
		t.Fatal("missing error for variable private DICT")
	}
	if f.Version != VersionCFF2 {
		t.Error("font modified after error")
	}
}

func TestConvertSameVersion(t *testing.T) {
	f := testFontSimple()
	before := append([]byte{}, f.Glyphs[1].Code...)

	if err := f.ConvertTo(VersionCFF, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(f.Glyphs[1].Code, before) {
		t.Error("conversion to the same version changed the font")
	}
}

func TestConvertRoundTrip(t *testing.T) {
	f := testFontSimple()
	if err := f.ConvertTo(VersionCFF2, nil); err != nil {
		t.Fatal(err)
	}

	opt := &ConvertOptions{
		FontName: "Test",
		Widths:   []float64{500, 600, 600},
	}
	if err := f.ConvertTo(VersionCFF, opt); err != nil {
		t.Fatal(err)
	}

	// widths 500/600/600: defaultWidthX is 600 and the nominal width is
	// clamped to 500+107, so only glyph 0 carries a width operand
	cases := [][]byte{
		{32, byte(t2endchar)},
		{140, 141, byte(t2rmoveto), 149, 159, byte(t2rlineto), byte(t2endchar)},
		{142, 143, byte(t2rmoveto), byte(t2endchar)},
	}
	for gid, want := range cases {
		if !bytes.Equal(f.Glyphs[gid].Code, want) {
			t.Errorf("glyph %d: got % x, want % x", gid, f.Glyphs[gid].Code, want)
		}
	}
}
