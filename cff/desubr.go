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

// flattenAll decodes all glyph charstrings into token sequences, with
// all subroutine calls inlined.
func (f *Font) flattenAll() ([][]token, error) {
	var numRegions func(int) int
	if f.Version == VersionCFF2 {
		numRegions = f.regionCounts()
	}

	infos := make([]*decodeInfo, f.numFontDicts())
	progs := make([][]token, len(f.Glyphs))
	for gid, g := range f.Glyphs {
		fd := f.fdIndex(gid)
		if fd < 0 || fd >= len(infos) {
			return nil, invalidSince("font DICT index out of range")
		}
		info := infos[fd]
		if info == nil {
			info = &decodeInfo{
				gsubrs:     f.GlobalSubrs,
				version:    f.Version,
				numRegions: numRegions,
			}
			if fd < len(f.localSubrs) {
				info.subrs = f.localSubrs[fd]
			}
			if fd < len(f.privateDicts) {
				info.vsIndex = int(f.privateDicts[fd].getInt(opVSIndex, 0))
			}
			infos[fd] = info
		}

		tokens, err := info.flatten(gid, g.Code)
		if err != nil {
			return nil, err
		}
		progs[gid] = tokens
	}
	return progs, nil
}

// Desubroutinize inlines all subroutine calls into the glyph charstrings
// and removes the global and local subroutine INDEXes.
//
// If an error occurs the font is left unchanged.
func (f *Font) Desubroutinize() error {
	progs, err := f.flattenAll()
	if err != nil {
		return err
	}

	codes := make([][]byte, len(progs))
	for gid, tokens := range progs {
		code, _, err := encodeTokens(tokens)
		if err != nil {
			return err
		}
		codes[gid] = code
	}

	for gid, g := range f.Glyphs {
		g.Code = codes[gid]
	}
	f.GlobalSubrs = nil
	for i := range f.localSubrs {
		f.localSubrs[i] = nil
	}
	return nil
}
