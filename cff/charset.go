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
	"fmt"

	"seehuhn.de/go/cffsubr/parser"
)

// readCharset reads a charset at the current parser position.  For simple
// fonts the returned values are SIDs, for CID-keyed fonts they are CIDs.
// Entry 0 (for the .notdef glyph) is always 0.
func readCharset(p *parser.Parser, nGlyphs int) ([]int32, error) {
	format, err := p.ReadUInt8()
	if err != nil {
		return nil, err
	}

	charset := make([]int32, 0, nGlyphs)
	charset = append(charset, 0)
	switch format {
	case 0:
		for len(charset) < nGlyphs {
			sid, err := p.ReadUInt16()
			if err != nil {
				return nil, err
			}
			charset = append(charset, int32(sid))
		}
	case 1:
		for len(charset) < nGlyphs {
			first, err := p.ReadUInt16()
			if err != nil {
				return nil, err
			}
			nLeft, err := p.ReadUInt8()
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(nLeft)+1; i++ {
				charset = append(charset, int32(int(first)+i))
			}
		}
	case 2:
		for len(charset) < nGlyphs {
			first, err := p.ReadUInt16()
			if err != nil {
				return nil, err
			}
			nLeft, err := p.ReadUInt16()
			if err != nil {
				return nil, err
			}
			for i := 0; i < int(nLeft)+1; i++ {
				charset = append(charset, int32(int(first)+i))
			}
		}
	default:
		return nil, unsupported(fmt.Sprintf("charset format %d", format))
	}

	return charset[:nGlyphs], nil
}

// charsetFromNames builds a charset from the glyph names of a simple
// font.  The result is nil if the names follow the ISOAdobe charset,
// which can be referenced without storing a charset, or if the font
// has no glyph names at all.
func charsetFromNames(glyphs []*Glyph, ss *cffStrings) []int32 {
	hasNames := false
	isISOAdobe := len(glyphs) <= 229
	for gid, g := range glyphs {
		if gid > 0 && g.Name != "" {
			hasNames = true
		}
		if isISOAdobe && g.Name != stdString[gid] {
			isISOAdobe = false
		}
	}
	if !hasNames || isISOAdobe {
		return nil
	}

	charset := make([]int32, len(glyphs))
	for gid, g := range glyphs {
		if gid == 0 {
			continue
		}
		charset[gid] = ss.lookup(g.Name)
	}
	return charset
}

// encodeCharset returns the size-optimal binary form of a charset.
func encodeCharset(names []int32) ([]byte, error) {
	if len(names) == 0 || names[0] != 0 {
		return nil, invalidSince("invalid charset")
	}
	names = names[1:]

	// find runs of consecutive glyph names
	var runs []int
	for i := 0; i < len(names); i++ {
		if i == 0 || names[i] != names[i-1]+1 {
			runs = append(runs, i)
		}
	}
	runs = append(runs, len(names))

	length0 := 1 + 2*len(names) // length with format 0 encoding

	length1 := 1 + 3*(len(runs)-1) // length with format 1 encoding
	for i := 0; i < len(runs)-1; i++ {
		d := runs[i+1] - runs[i]
		for d > 256 {
			length1 += 3
			d -= 256
		}
	}

	length2 := 1 + 4*(len(runs)-1) // length with format 2 encoding

	var buf []byte
	if length0 <= length1 && length0 <= length2 {
		buf = make([]byte, length0)
		buf[0] = 0
		for i, name := range names {
			buf[2*i+1] = byte(name >> 8)
			buf[2*i+2] = byte(name)
		}
	} else if length1 < length2 {
		buf = make([]byte, length1)
		buf[0] = 1
		pos := 1
		for i := 0; i < len(runs)-1; i++ {
			name := names[runs[i]]
			dd := runs[i+1] - runs[i]
			for dd > 0 {
				d := dd - 1
				if d > 255 {
					d = 255
				}
				buf[pos] = byte(name >> 8)
				buf[pos+1] = byte(name)
				buf[pos+2] = byte(d)
				pos += 3
				name += int32(d + 1)
				dd -= d + 1
			}
		}
		buf = buf[:pos]
	} else {
		buf = make([]byte, length2)
		buf[0] = 2
		for i := 0; i < len(runs)-1; i++ {
			name := names[runs[i]]
			d := runs[i+1] - runs[i] - 1
			buf[4*i+1] = byte(name >> 8)
			buf[4*i+2] = byte(name)
			buf[4*i+3] = byte(d >> 8)
			buf[4*i+4] = byte(d)
		}
	}
	return buf, nil
}
