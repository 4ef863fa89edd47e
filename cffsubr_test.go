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

package cffsubr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/postscript/type1"

	"seehuhn.de/go/cffsubr/cff"
	"seehuhn.de/go/cffsubr/internal/post"
)

// testFontCFF returns a flat CFF font where two glyphs share a long
// charstring tail, so that subroutinization always pays off.
func testFontCFF() *cff.Font {
	shared := []byte{
		149, 159, 5, // rlineto
		169, 179, 5,
		189, 199, 5,
		209, 219, 5,
		14, // endchar
	}
	code := func(prefix ...byte) []byte {
		return append(append([]byte{}, prefix...), shared...)
	}
	return &cff.Font{
		Version: cff.VersionCFF,
		FontInfo: &type1.FontInfo{
			FontName:           "Test",
			FontMatrix:         matrix.Matrix{0.001, 0, 0, 0.001, 0, 0},
			UnderlinePosition:  -100,
			UnderlineThickness: 50,
		},
		FontMatrix: matrix.Matrix{0.001, 0, 0, 0.001, 0, 0},
		Glyphs: []*cff.Glyph{
			{Name: ".notdef", Code: []byte{14}},
			{Name: "A", Code: code(140, 141, 21)},
			{Name: "B", Code: code(142, 143, 21)},
		},
	}
}

// testFontCFF2Table returns a flat CFF2 font.
func testFontCFF2Table() *cff.Font {
	return &cff.Font{
		Version:    cff.VersionCFF2,
		FontMatrix: matrix.Matrix{0.001, 0, 0, 0.001, 0, 0},
		Glyphs: []*cff.Glyph{
			{Code: nil},
			{Code: []byte{140, 141, 21, 149, 159, 5}},
			{Code: []byte{142, 143, 21}},
		},
	}
}

func mustEncode(t *testing.T, font *cff.Font) []byte {
	t.Helper()
	table, err := encodeTable(font)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

// testWrap embeds a CFF table into a minimal sfnt wrapper with glyph
// metrics for three glyphs.
func testWrap(tag string, table []byte) []byte {
	hhea := make([]byte, 36)
	binary.BigEndian.PutUint16(hhea[34:], 3) // numOfLongHorMetrics
	hmtx := make([]byte, 12)
	binary.BigEndian.PutUint16(hmtx[0:], 500)
	binary.BigEndian.PutUint16(hmtx[4:], 600)
	binary.BigEndian.PutUint16(hmtx[8:], 600)
	maxp := []byte{0, 0, 0x50, 0, 0, 3}

	file := &sfntFile{
		scalerType: scalerTypeCFF,
		tables: map[string][]byte{
			"head": make([]byte, 54),
			"hhea": hhea,
			"hmtx": hmtx,
			"maxp": maxp,
			tag:    table,
		},
	}
	return file.write()
}

func TestBareTable(t *testing.T) {
	font := testFontCFF()
	table := mustEncode(t, font)

	if got, err := HasSubroutines(table); err != nil || got {
		t.Fatalf("HasSubroutines = %t, %v", got, err)
	}

	subr, err := Subroutinize(table, nil)
	if err != nil {
		t.Fatal(err)
	}
	if isSFNT(subr) {
		t.Fatal("bare table came back wrapped")
	}
	if got, _ := HasSubroutines(subr); !got {
		t.Error("no subroutines extracted")
	}
	if len(subr) >= len(table) {
		t.Errorf("subroutinized table has %d bytes, flat table %d",
			len(subr), len(table))
	}

	flat, err := Desubroutinize(subr)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := HasSubroutines(flat); got {
		t.Error("subroutines left after desubroutinization")
	}
	out, err := cff.Read(bytes.NewReader(flat))
	if err != nil {
		t.Fatal(err)
	}
	for gid := range font.Glyphs {
		if !bytes.Equal(out.Glyphs[gid].Code, font.Glyphs[gid].Code) {
			t.Errorf("glyph %d: got % x, want % x",
				gid, out.Glyphs[gid].Code, font.Glyphs[gid].Code)
		}
	}
}

func TestWrappedFont(t *testing.T) {
	table := mustEncode(t, testFontCFF())
	data := testWrap("CFF ", table)

	out, err := Subroutinize(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !isSFNT(out) {
		t.Fatal("wrapped font came back bare")
	}
	if sum := tableChecksum(out); sum != 0xB1B0AFBA {
		t.Errorf("file checksum = %08x", sum)
	}

	file, err := readSFNT(out)
	if err != nil {
		t.Fatal(err)
	}
	inFile, _ := readSFNT(data)
	for _, tag := range []string{"hhea", "hmtx", "maxp"} {
		if !bytes.Equal(file.tables[tag], inFile.tables[tag]) {
			t.Errorf("table %q modified", tag)
		}
	}

	newTable, ok := file.tables["CFF "]
	if !ok {
		t.Fatal("CFF table missing")
	}
	if got, _ := HasSubroutines(newTable); !got {
		t.Error("no subroutines extracted")
	}
}

func TestWrappedConvertToCFF2(t *testing.T) {
	table := mustEncode(t, testFontCFF())
	data := testWrap("CFF ", table)

	opts := &Options{TargetVersion: VersionCFF2, KeepGlyphNames: true}
	out, err := Subroutinize(data, opts)
	if err != nil {
		t.Fatal(err)
	}

	file, err := readSFNT(out)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := file.tables["CFF "]; ok {
		t.Error("CFF table not removed")
	}
	newTable, ok := file.tables["CFF2"]
	if !ok {
		t.Fatal("CFF2 table missing")
	}
	font, err := cff.Read(bytes.NewReader(newTable))
	if err != nil {
		t.Fatal(err)
	}
	if font.Version != VersionCFF2 {
		t.Errorf("got version %s", font.Version)
	}

	// the glyph names move into a format 2.0 post table
	info, err := post.Read(file.tables["post"])
	if err != nil {
		t.Fatal(err)
	}
	want := []string{".notdef", "A", "B"}
	if len(info.Names) != len(want) {
		t.Fatalf("got %d glyph names, want %d", len(info.Names), len(want))
	}
	for i, name := range want {
		if info.Names[i] != name {
			t.Errorf("name %d = %q, want %q", i, info.Names[i], name)
		}
	}
}

func TestWrappedConvertDropNames(t *testing.T) {
	table := mustEncode(t, testFontCFF())
	data := testWrap("CFF ", table)

	opts := &Options{TargetVersion: VersionCFF2}
	out, err := Subroutinize(data, opts)
	if err != nil {
		t.Fatal(err)
	}

	file, err := readSFNT(out)
	if err != nil {
		t.Fatal(err)
	}
	info, err := post.Read(file.tables["post"])
	if err != nil {
		t.Fatal(err)
	}
	if info.Names != nil {
		t.Error("glyph names kept")
	}
}

func TestWrappedConvertToCFF(t *testing.T) {
	table := mustEncode(t, testFontCFF2Table())
	data := testWrap("CFF2", table)

	opts := &Options{TargetVersion: VersionCFF, FontName: "Foo"}
	out, err := Subroutinize(data, opts)
	if err != nil {
		t.Fatal(err)
	}

	file, err := readSFNT(out)
	if err != nil {
		t.Fatal(err)
	}
	newTable, ok := file.tables["CFF "]
	if !ok {
		t.Fatal("CFF table missing")
	}
	font, err := cff.Read(bytes.NewReader(newTable))
	if err != nil {
		t.Fatal(err)
	}
	if font.Version != VersionCFF {
		t.Errorf("got version %s", font.Version)
	}
	if !font.IsCID {
		t.Error("downgraded font is not CID-keyed")
	}
	if font.FontInfo.FontName != "Foo" {
		t.Errorf("got font name %q", font.FontInfo.FontName)
	}

	// the hmtx widths are folded into the charstrings: glyph 0 has
	// width 500 while defaultWidthX is 600
	want := []byte{32, 14}
	if !bytes.Equal(font.Glyphs[0].Code, want) {
		t.Errorf("glyph 0: got % x, want % x", font.Glyphs[0].Code, want)
	}
}

func TestNoCFFTable(t *testing.T) {
	file := &sfntFile{
		scalerType: scalerTypeTrueType,
		tables: map[string][]byte{
			"head": make([]byte, 54),
			"maxp": {0, 0, 0x50, 0, 0, 1},
		},
	}
	data := file.write()

	_, err := Subroutinize(data, nil)
	if !errors.Is(err, ErrNoCFFTable) {
		t.Errorf("got %v, want ErrNoCFFTable", err)
	}
	_, err = HasSubroutines(data)
	if !errors.Is(err, ErrNoCFFTable) {
		t.Errorf("got %v, want ErrNoCFFTable", err)
	}
}

func TestInvalidData(t *testing.T) {
	if _, err := Subroutinize([]byte{9, 9, 9, 9, 9, 9, 9, 9}, nil); err == nil {
		t.Error("missing error for garbage input")
	}
	if _, err := Desubroutinize(nil); err == nil {
		t.Error("missing error for empty input")
	}
}
