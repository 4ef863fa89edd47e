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
	"io"
)

// Write writes the binary form of the font, using the font's Version.
//
// All offsets are computed from scratch, using minimal offset sizes.
// Since several sections contain offsets to sections further back in the
// file, the offsets are determined using fixed-point iteration.
func (f *Font) Write(w io.Writer) error {
	if len(f.Glyphs) == 0 {
		return invalidSince("no glyphs")
	}
	if f.Version == VersionCFF2 {
		return f.writeV2(w)
	}
	return f.writeV1(w)
}

func (f *Font) writeV1(w io.Writer) error {
	numGlyphs := len(f.Glyphs)
	if numGlyphs > 0xFFFF {
		return unsupported("more than 65535 glyphs")
	}
	if f.FontInfo == nil {
		return invalidSince("missing font name")
	}

	strings := f.strings.Copy()
	topDict := f.topDict.Copy()
	delete(topDict, opCharset)
	delete(topDict, opEncoding)
	delete(topDict, opCharStrings)
	delete(topDict, opPrivate)
	delete(topDict, opFDArray)
	delete(topDict, opFDSelect)

	charStrings := make(cffIndex, numGlyphs)
	for i, g := range f.Glyphs {
		charStrings[i] = g.Code
	}

	var blobs [][]byte

	// section 0: header
	secHeader := len(blobs)
	blobs = append(blobs, []byte{
		1, // major
		0, // minor
		4, // hdrSize
		4, // offSize (updated below)
	})

	// section 1: Name INDEX
	blobs = append(blobs, cffIndex{[]byte(f.FontInfo.FontName)}.encode(VersionCFF))

	// section 2: top DICT INDEX
	secTopDictIndex := len(blobs)
	blobs = append(blobs, nil)

	// section 3: String INDEX
	// encoded below, once all strings are known
	secStringIndex := len(blobs)
	blobs = append(blobs, nil)

	// section 4: global subr INDEX
	blobs = append(blobs, f.GlobalSubrs.encode(VersionCFF))

	// section 5: encodings
	secEncoding := -1
	if !f.IsCID && f.encoding != nil {
		secEncoding = len(blobs)
		blobs = append(blobs, f.encoding)
	}

	// section 6: charsets
	secCharset := -1
	charset := f.charset
	if charset == nil && !f.IsCID && f.charsetID == 0 {
		charset = charsetFromNames(f.Glyphs, strings)
	}
	if charset != nil {
		charsetData, err := encodeCharset(charset)
		if err != nil {
			return err
		}
		secCharset = len(blobs)
		blobs = append(blobs, charsetData)
	}

	// section 7: FDSelect
	secFDSelect := -1
	if f.IsCID {
		if f.FDSelect == nil {
			return invalidSince("missing FDSelect")
		}
		secFDSelect = len(blobs)
		blobs = append(blobs, f.FDSelect.encode(numGlyphs))
	}

	// section 8: charstrings INDEX
	secCharStrings := len(blobs)
	blobs = append(blobs, charStrings.encode(VersionCFF))

	// section 9: font DICT INDEX
	numFonts := f.numFontDicts()
	var fontDicts []cffDict
	secFontDictIndex := -1
	if f.IsCID {
		fontDicts = make([]cffDict, numFonts)
		for i := range fontDicts {
			fontDict := f.fontDicts[i].Copy()
			delete(fontDict, opPrivate)
			fontDicts[i] = fontDict
		}
		secFontDictIndex = len(blobs)
		blobs = append(blobs, nil)
	}

	// section 10: private DICTs
	privateDicts := make([]cffDict, numFonts)
	secPrivateDicts := make([]int, numFonts)
	for i := range privateDicts {
		var privateDict cffDict
		if i < len(f.privateDicts) && f.privateDicts[i] != nil {
			privateDict = f.privateDicts[i].Copy()
		} else {
			privateDict = cffDict{}
		}
		delete(privateDict, opSubrs)
		privateDicts[i] = privateDict
		secPrivateDicts[i] = len(blobs)
		blobs = append(blobs, nil)
	}

	// section 11: local subr INDEXes
	secSubrs := make([]int, numFonts)
	for i := range secSubrs {
		secSubrs[i] = -1
		if i < len(f.localSubrs) && len(f.localSubrs[i]) > 0 {
			secSubrs[i] = len(blobs)
			blobs = append(blobs, f.localSubrs[i].encode(VersionCFF))
		}
	}

	numSections := len(blobs)

	cumsum := func() []int32 {
		res := make([]int32, numSections+1)
		for i := 0; i < numSections; i++ {
			res[i+1] = res[i] + int32(len(blobs[i]))
		}
		return res
	}

	offs := cumsum()
	for {
		// This loop terminates because the elements of offs are monotonically
		// increasing.

		blobs[secHeader][3] = offsSize(offs[numSections])

		var fontDictIndex cffIndex
		for i := 0; i < numFonts; i++ {
			secPrivateDict := secPrivateDicts[i]
			if secSubrs[i] >= 0 {
				privateDicts[i][opSubrs] = []interface{}{offs[secSubrs[i]] - offs[secPrivateDict]}
			}
			blobs[secPrivateDict] = privateDicts[i].encode(strings)
			pdSize := len(blobs[secPrivateDict])
			pdDesc := []interface{}{int32(pdSize), offs[secPrivateDict]}
			if f.IsCID {
				fontDicts[i][opPrivate] = pdDesc
				fontDictIndex = append(fontDictIndex, fontDicts[i].encode(strings))
			} else {
				topDict[opPrivate] = pdDesc
			}
		}
		if f.IsCID {
			blobs[secFontDictIndex] = fontDictIndex.encode(VersionCFF)
		}

		if secCharset >= 0 {
			topDict[opCharset] = []interface{}{offs[secCharset]}
		} else if f.charsetID != 0 {
			topDict[opCharset] = []interface{}{f.charsetID}
		}
		if secEncoding >= 0 {
			topDict[opEncoding] = []interface{}{offs[secEncoding]}
		} else if !f.IsCID && f.encodingID != 0 {
			topDict[opEncoding] = []interface{}{f.encodingID}
		}
		topDict[opCharStrings] = []interface{}{offs[secCharStrings]}
		if f.IsCID {
			topDict[opFDSelect] = []interface{}{offs[secFDSelect]}
			topDict[opFDArray] = []interface{}{offs[secFontDictIndex]}
		}
		topDictData := topDict.encode(strings)
		blobs[secTopDictIndex] = cffIndex{topDictData}.encode(VersionCFF)

		blobs[secStringIndex] = strings.encode()

		newOffs := cumsum()
		done := true
		for i := 0; i < numSections; i++ {
			if newOffs[i] != offs[i] {
				done = false
				break
			}
		}
		if done {
			break
		}

		offs = newOffs
	}

	for i := 0; i < numSections; i++ {
		_, err := w.Write(blobs[i])
		if err != nil {
			return err
		}
	}

	return nil
}

func (f *Font) writeV2(w io.Writer) error {
	numGlyphs := len(f.Glyphs)

	strings := &cffStrings{}
	topDict := f.topDict.Copy()
	delete(topDict, opCharStrings)
	delete(topDict, opFDArray)
	delete(topDict, opFDSelect)
	delete(topDict, opVStore)

	charStrings := make(cffIndex, numGlyphs)
	for i, g := range f.Glyphs {
		charStrings[i] = g.Code
	}

	var blobs [][]byte

	// section 0: header and top DICT data
	secHeader := len(blobs)
	blobs = append(blobs, nil)

	// section 1: global subr INDEX
	blobs = append(blobs, f.GlobalSubrs.encode(VersionCFF2))

	// section 2: VariationStore
	secVStore := -1
	if f.varStore != nil {
		vstore := make([]byte, 2+len(f.varStore))
		vstore[0] = byte(len(f.varStore) >> 8)
		vstore[1] = byte(len(f.varStore))
		copy(vstore[2:], f.varStore)
		secVStore = len(blobs)
		blobs = append(blobs, vstore)
	}

	// section 3: FDSelect
	secFDSelect := -1
	if f.FDSelect != nil {
		secFDSelect = len(blobs)
		blobs = append(blobs, f.FDSelect.encode(numGlyphs))
	}

	// section 4: charstrings INDEX
	secCharStrings := len(blobs)
	blobs = append(blobs, charStrings.encode(VersionCFF2))

	// section 5: font DICT INDEX
	numFonts := f.numFontDicts()
	fontDicts := make([]cffDict, numFonts)
	for i := range fontDicts {
		var fontDict cffDict
		if i < len(f.fontDicts) && f.fontDicts[i] != nil {
			fontDict = f.fontDicts[i].Copy()
		} else {
			fontDict = cffDict{}
		}
		delete(fontDict, opPrivate)
		fontDicts[i] = fontDict
	}
	secFontDictIndex := len(blobs)
	blobs = append(blobs, nil)

	// section 6: private DICTs
	privateDicts := make([]cffDict, numFonts)
	secPrivateDicts := make([]int, numFonts)
	for i := range privateDicts {
		var privateDict cffDict
		if i < len(f.privateDicts) && f.privateDicts[i] != nil {
			privateDict = f.privateDicts[i].Copy()
		} else {
			privateDict = cffDict{}
		}
		delete(privateDict, opSubrs)
		privateDicts[i] = privateDict
		secPrivateDicts[i] = len(blobs)
		blobs = append(blobs, nil)
	}

	// section 7: local subr INDEXes
	secSubrs := make([]int, numFonts)
	for i := range secSubrs {
		secSubrs[i] = -1
		if i < len(f.localSubrs) && len(f.localSubrs[i]) > 0 {
			secSubrs[i] = len(blobs)
			blobs = append(blobs, f.localSubrs[i].encode(VersionCFF2))
		}
	}

	numSections := len(blobs)

	cumsum := func() []int32 {
		res := make([]int32, numSections+1)
		for i := 0; i < numSections; i++ {
			res[i+1] = res[i] + int32(len(blobs[i]))
		}
		return res
	}

	offs := cumsum()
	for {
		var fontDictIndex cffIndex
		for i := 0; i < numFonts; i++ {
			secPrivateDict := secPrivateDicts[i]
			if secSubrs[i] >= 0 {
				privateDicts[i][opSubrs] = []interface{}{offs[secSubrs[i]] - offs[secPrivateDict]}
			}
			blobs[secPrivateDict] = privateDicts[i].encode(strings)
			pdSize := len(blobs[secPrivateDict])
			fontDicts[i][opPrivate] = []interface{}{int32(pdSize), offs[secPrivateDict]}
			fontDictIndex = append(fontDictIndex, fontDicts[i].encode(strings))
		}
		blobs[secFontDictIndex] = fontDictIndex.encode(VersionCFF2)

		topDict[opCharStrings] = []interface{}{offs[secCharStrings]}
		topDict[opFDArray] = []interface{}{offs[secFontDictIndex]}
		if secFDSelect >= 0 {
			topDict[opFDSelect] = []interface{}{offs[secFDSelect]}
		}
		if secVStore >= 0 {
			topDict[opVStore] = []interface{}{offs[secVStore]}
		}
		topDictData := topDict.encode(strings)
		if len(topDictData) > 0xFFFF {
			return invalidSince("top DICT too large")
		}
		header := []byte{
			2, // major
			0, // minor
			5, // hdrSize
			byte(len(topDictData) >> 8), byte(len(topDictData)),
		}
		blobs[secHeader] = append(header, topDictData...)

		newOffs := cumsum()
		done := true
		for i := 0; i < numSections; i++ {
			if newOffs[i] != offs[i] {
				done = false
				break
			}
		}
		if done {
			break
		}

		offs = newOffs
	}

	for i := 0; i < numSections; i++ {
		_, err := w.Write(blobs[i])
		if err != nil {
			return err
		}
	}

	return nil
}

func offsSize(i int32) byte {
	switch {
	case i < 1<<8:
		return 1
	case i < 1<<16:
		return 2
	case i < 1<<24:
		return 3
	default:
		return 4
	}
}
