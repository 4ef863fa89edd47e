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

// Package cffsubr subroutinizes and desubroutinizes the Type 2
// charstrings of CFF and CFF2 font data.
//
// The functions in this package accept either a bare `CFF `/`CFF2`
// table or a complete sfnt-wrapped font.  For a wrapped font, the CFF
// table is located by tag, rebuilt, and swapped back into the font;
// all other tables are left untouched.
package cffsubr

import (
	"bytes"
	"errors"

	"seehuhn.de/go/cffsubr/cff"
)

// Version selects a CFF table format.
type Version = cff.Version

// The supported table format versions.
const (
	VersionCFF  = cff.VersionCFF
	VersionCFF2 = cff.VersionCFF2
)

// ErrNoCFFTable indicates that an sfnt font contains neither a `CFF `
// nor a `CFF2` table.
var ErrNoCFFTable = errors.New("cffsubr: no CFF table found")

var errMalformedSFNT = errors.New("cffsubr: malformed sfnt font file")

// Options controls the behavior of [Subroutinize].
type Options struct {
	// TargetVersion selects the output table format.  The zero value
	// keeps the format of the input.
	TargetVersion Version

	// KeepGlyphNames applies when a CFF font inside an sfnt wrapper is
	// converted to CFF2, which has no glyph name field: if set, the
	// glyph names are moved into a format 2.0 "post" table; otherwise
	// the "post" table is replaced with a name-free format 3.0 table.
	KeepGlyphNames bool

	// FontName is the PostScript font name to use when converting a
	// CFF2 font to CFF.
	FontName string
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{KeepGlyphNames: true}
}

// Subroutinize rebuilds the subroutine INDEXes of the CFF table in data
// from scratch, minimizing the encoded size.  The output has the same
// shape as the input: a bare table yields a bare table, a complete font
// yields a complete font.
func Subroutinize(data []byte, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = NewOptions()
	}

	font, file, tag, err := open(data)
	if err != nil {
		return nil, err
	}

	target := opts.TargetVersion
	if target == 0 {
		target = font.Version
	}

	var names []string
	converted := target != font.Version
	if converted {
		copt := &cff.ConvertOptions{FontName: opts.FontName}
		if target == VersionCFF && file != nil {
			ww, err := file.glyphWidths(font.NumGlyphs())
			if err != nil {
				return nil, err
			}
			copt.Widths = ww
		}
		if target == VersionCFF2 && opts.KeepGlyphNames {
			names = font.GlyphNames()
		}
		err = font.ConvertTo(target, copt)
		if err != nil {
			return nil, err
		}
	}

	err = font.Subroutinize()
	if err != nil {
		return nil, err
	}

	table, err := encodeTable(font)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return table, nil
	}

	delete(file.tables, tag)
	file.tables[target.TableTag()] = table
	if converted && target == VersionCFF2 {
		file.setGlyphNames(names)
	}
	return file.write(), nil
}

// Desubroutinize inlines all subroutine calls of the CFF table in data
// and empties the subroutine INDEXes.  The output has the same shape as
// the input.
func Desubroutinize(data []byte) ([]byte, error) {
	font, file, tag, err := open(data)
	if err != nil {
		return nil, err
	}

	err = font.Desubroutinize()
	if err != nil {
		return nil, err
	}

	table, err := encodeTable(font)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return table, nil
	}

	file.tables[tag] = table
	return file.write(), nil
}

// HasSubroutines reports whether the CFF table in data has a non-empty
// global or local subroutine INDEX.
func HasSubroutines(data []byte) (bool, error) {
	font, _, _, err := open(data)
	if err != nil {
		return false, err
	}
	return font.HasSubroutines(), nil
}

// open parses the CFF table in data.  For sfnt-wrapped input the
// returned sfntFile and table tag describe the wrapper; for a bare
// table both are zero.
func open(data []byte) (*cff.Font, *sfntFile, string, error) {
	if !isSFNT(data) {
		font, err := cff.Read(bytes.NewReader(data))
		if err != nil {
			return nil, nil, "", err
		}
		return font, nil, "", nil
	}

	file, err := readSFNT(data)
	if err != nil {
		return nil, nil, "", err
	}
	tag, ok := file.cffTag()
	if !ok {
		return nil, nil, "", ErrNoCFFTable
	}
	font, err := cff.Read(bytes.NewReader(file.tables[tag]))
	if err != nil {
		return nil, nil, "", err
	}
	return font, file, tag, nil
}

func encodeTable(font *cff.Font) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := font.Write(buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
