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

// Package cff implements reading and writing of CFF and CFF2 font data,
// together with subroutinization and desubroutinization of the Type 2
// charstrings contained in a font.
package cff

import (
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/postscript/type1"
)

// Font represents a CFF or CFF2 font program.
//
// A Font is obtained from [Read] and serialized using [Font.Write].
// The transformations in this package ([Font.Subroutinize],
// [Font.Desubroutinize], [Font.ConvertTo]) modify the Font in place;
// the byte slices the font was read from are never modified.
type Font struct {
	// Version distinguishes between `CFF ` and `CFF2` table data.
	Version Version

	// FontInfo contains the name and global metadata of the font.
	// This is only present for CFF fonts; CFF2 stores no names.
	FontInfo *type1.FontInfo

	// FontMatrix maps glyph space to text space.
	FontMatrix matrix.Matrix

	// Glyphs contains the glyph charstrings of the font, in glyph ID order.
	Glyphs []*Glyph

	// GlobalSubrs is the global subroutine INDEX.
	GlobalSubrs cffIndex

	// FDSelect maps glyph IDs to font DICTs.  This is nil for fonts
	// with a single font DICT.
	FDSelect FDSelectFn

	// IsCID indicates a CID-keyed CFF font (top DICT contains ROS).
	IsCID bool

	topDict      cffDict
	strings      *cffStrings
	fontDicts    []cffDict  // FDArray entries; nil for simple CFF fonts
	privateDicts []cffDict  // one per font DICT
	localSubrs   []cffIndex // one per font DICT

	charset    []int32 // SIDs (simple) or CIDs (CID-keyed); nil if predefined
	charsetID  int32   // predefined charset ID, used when charset == nil
	encoding   []byte  // raw encoding data; nil if predefined
	encodingID int32   // predefined encoding ID, used when encoding == nil

	varStore []byte // CFF2 VariationStore data, carried unchanged
}

// Glyph represents a single glyph of the font.
type Glyph struct {
	// Name is the glyph name.  This is empty for CID-keyed CFF fonts
	// and for CFF2.
	Name string

	// Code is the Type 2 charstring describing the glyph outline.
	Code []byte
}

// NumGlyphs returns the number of glyphs in the font.
func (f *Font) NumGlyphs() int {
	return len(f.Glyphs)
}

// GlyphNames returns the names of all glyphs, in glyph ID order.
// For CID-keyed and CFF2 fonts the result is nil.
func (f *Font) GlyphNames() []string {
	if f.IsCID || f.Version == VersionCFF2 {
		return nil
	}
	names := make([]string, len(f.Glyphs))
	for i, g := range f.Glyphs {
		names[i] = g.Name
	}
	return names
}

// HasSubroutines reports whether the global subroutine INDEX or any of
// the local subroutine INDEXes is non-empty.
func (f *Font) HasSubroutines() bool {
	if len(f.GlobalSubrs) > 0 {
		return true
	}
	for _, subrs := range f.localSubrs {
		if len(subrs) > 0 {
			return true
		}
	}
	return false
}

// numFontDicts returns the number of font DICTs.  This is at least 1.
func (f *Font) numFontDicts() int {
	if len(f.privateDicts) == 0 {
		return 1
	}
	return len(f.privateDicts)
}

// fdIndex returns the font DICT index for the given glyph.
func (f *Font) fdIndex(gid int) int {
	if f.FDSelect == nil {
		return 0
	}
	return f.FDSelect(gid)
}

// subrsForGlyph returns the local subroutine INDEX for the given glyph.
func (f *Font) subrsForGlyph(gid int) cffIndex {
	fd := f.fdIndex(gid)
	if fd < 0 || fd >= len(f.localSubrs) {
		return nil
	}
	return f.localSubrs[fd]
}
