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
	"math"

	"seehuhn.de/go/postscript/funit"
	"seehuhn.de/go/postscript/type1"

	"seehuhn.de/go/cffsubr/parser"
)

const (
	defaultUnderlinePosition  = -100
	defaultUnderlineThickness = 50
)

// Read reads a CFF or CFF2 font from r.
func Read(r parser.ReadSeekSizer) (*Font, error) {
	p := parser.New("cff", r)

	// section 0: header
	x, err := p.ReadUInt32()
	if err != nil {
		return nil, err
	}
	major := x >> 24
	minor := (x >> 16) & 0xFF
	hdrSize := int64((x >> 8) & 0xFF)
	switch major {
	case 1:
		offSize := x & 0xFF // only used to exclude non-CFF files
		if hdrSize < 4 || offSize > 4 {
			return nil, invalidSince("invalid header")
		}
		return readV1(p, hdrSize)
	case 2:
		if hdrSize < 5 {
			return nil, invalidSince("invalid header")
		}
		return readV2(p, hdrSize)
	default:
		return nil, unsupported(fmt.Sprintf("version %d.%d", major, minor))
	}
}

// readV1 reads the body of a CFF font, starting after the header.
func readV1(p *parser.Parser, nameIndexOffs int64) (*Font, error) {
	cff := &Font{
		Version: VersionCFF,
	}

	// section 1: Name INDEX
	err := p.SeekPos(nameIndexOffs)
	if err != nil {
		return nil, err
	}
	fontNames, err := readIndex(p, VersionCFF)
	if err != nil {
		return nil, err
	}
	if len(fontNames) == 0 {
		return nil, invalidSince("no font data")
	} else if len(fontNames) > 1 {
		return nil, unsupported("fontsets with more than one font")
	}
	cff.FontInfo = &type1.FontInfo{
		FontName: string(fontNames[0]),
	}

	// section 2: top DICT INDEX
	topDictIndex, err := readIndex(p, VersionCFF)
	if err != nil {
		return nil, err
	}
	if len(topDictIndex) != len(fontNames) {
		return nil, invalidSince("wrong number of top dicts")
	}

	// section 3: String INDEX
	stringIndex, err := readIndex(p, VersionCFF)
	if err != nil {
		return nil, err
	}
	strings := &cffStrings{
		data: make([]string, len(stringIndex)),
	}
	for i, s := range stringIndex {
		strings.data[i] = string(s)
	}
	cff.strings = strings

	// interlude: decode the top DICT
	topDict, err := decodeDict(topDictIndex[0], VersionCFF)
	if err != nil {
		return nil, err
	}
	if topDict.getInt(opCharstringType, 2) != 2 {
		return nil, unsupported("charstring type != 2")
	}
	cff.topDict = topDict
	cff.FontInfo.Version = topDict.getStringValue(opVersion, strings)
	cff.FontInfo.Notice = topDict.getStringValue(opNotice, strings)
	cff.FontInfo.Copyright = topDict.getStringValue(opCopyright, strings)
	cff.FontInfo.FullName = topDict.getStringValue(opFullName, strings)
	cff.FontInfo.FamilyName = topDict.getStringValue(opFamilyName, strings)
	cff.FontInfo.Weight = topDict.getStringValue(opWeight, strings)
	isFixedPitch := topDict.getInt(opIsFixedPitch, 0)
	cff.FontInfo.IsFixedPitch = isFixedPitch != 0
	italicAngle := topDict.getFloat(opItalicAngle, 0)
	cff.FontInfo.ItalicAngle = normaliseAngle(italicAngle)
	cff.FontInfo.UnderlinePosition = funit.Float64(topDict.getInt(opUnderlinePosition,
		defaultUnderlinePosition))
	cff.FontInfo.UnderlineThickness = funit.Float64(topDict.getInt(opUnderlineThickness,
		defaultUnderlineThickness))
	cff.FontMatrix = topDict.getFontMatrix(opFontMatrix)
	cff.FontInfo.FontMatrix = cff.FontMatrix

	// section 4: global subr INDEX
	gsubrs, err := readIndex(p, VersionCFF)
	if err != nil {
		return nil, err
	}
	cff.GlobalSubrs = gsubrs

	// section 5: encodings
	// read below, once we know whether the font is CID-keyed

	// read the CharStrings INDEX
	charStringsOffs := topDict.getInt(opCharStrings, 0)
	charStrings, err := readIndexAt(p, charStringsOffs, "CharStrings", VersionCFF)
	if err != nil {
		return nil, err
	}
	nGlyphs := len(charStrings)
	if nGlyphs == 0 {
		return nil, invalidSince("no charstrings")
	}

	_, isCIDFont := topDict[opROS]
	cff.IsCID = isCIDFont
	if isCIDFont {
		if len(topDict[opROS]) != 3 {
			return nil, invalidSince("wrong number of ROS values")
		}

		fdArrayOffs := topDict.getInt(opFDArray, 0)
		fdArrayIndex, err := readIndexAt(p, fdArrayOffs, "Font DICT", VersionCFF)
		if err != nil {
			return nil, err
		} else if len(fdArrayIndex) > 256 {
			return nil, invalidSince("too many Font DICTs")
		} else if len(fdArrayIndex) == 0 {
			return nil, invalidSince("no Font DICTs")
		}
		for _, fdBlob := range fdArrayIndex {
			fontDict, err := decodeDict(fdBlob, VersionCFF)
			if err != nil {
				return nil, err
			}
			privateDict, subrs, err := readPrivate(p, fontDict, VersionCFF)
			if err != nil {
				return nil, err
			}
			cff.fontDicts = append(cff.fontDicts, fontDict)
			cff.privateDicts = append(cff.privateDicts, privateDict)
			cff.localSubrs = append(cff.localSubrs, subrs)
		}

		fdSelectOffs := topDict.getInt(opFDSelect, 0)
		if fdSelectOffs < 4 {
			return nil, invalidSince("missing FDSelect")
		}
		err = p.SeekPos(int64(fdSelectOffs))
		if err != nil {
			return nil, err
		}
		cff.FDSelect, err = readFDSelect(p, nGlyphs, len(cff.privateDicts), VersionCFF)
		if err != nil {
			return nil, err
		}
	} else {
		privateDict, subrs, err := readPrivate(p, topDict, VersionCFF)
		if err != nil {
			return nil, err
		}
		cff.privateDicts = []cffDict{privateDict}
		cff.localSubrs = []cffIndex{subrs}
	}

	// read the charset
	charsetOffs := topDict.getInt(opCharset, 0)
	var charset []int32
	if charsetOffs > 2 {
		err = p.SeekPos(int64(charsetOffs))
		if err != nil {
			return nil, err
		}
		charset, err = readCharset(p, nGlyphs)
		if err != nil {
			return nil, err
		}
		cff.charset = charset
	} else if isCIDFont {
		if charsetOffs != 0 {
			return nil, invalidSince("missing charset")
		}
		// no charset means the identity mapping from GIDs to CIDs
		charset = make([]int32, nGlyphs)
		for i := range charset {
			charset[i] = int32(i)
		}
		cff.charset = charset
	} else {
		// predefined charsets are carried through unchanged
		cff.charsetID = charsetOffs
	}

	cff.Glyphs = make([]*Glyph, nGlyphs)
	for gid, code := range charStrings {
		glyph := &Glyph{Code: code}
		if !isCIDFont {
			switch {
			case charset != nil:
				name, err := strings.get(charset[gid])
				if err != nil {
					return nil, err
				}
				glyph.Name = name
			case charsetOffs == 0 && gid < nStdString:
				// the ISOAdobe charset assigns SIDs in glyph order
				glyph.Name = stdString[gid]
			}
		}
		cff.Glyphs[gid] = glyph
	}

	// read the encoding
	if !isCIDFont {
		encodingOffs := topDict.getInt(opEncoding, 0)
		if encodingOffs > 1 {
			err = p.SeekPos(int64(encodingOffs))
			if err != nil {
				return nil, err
			}
			cff.encoding, err = readEncodingData(p)
			if err != nil {
				return nil, err
			}
		} else {
			cff.encodingID = encodingOffs
		}
	}

	return cff, nil
}

// readV2 reads the body of a CFF2 font, starting after the first four
// header bytes.
func readV2(p *parser.Parser, hdrSize int64) (*Font, error) {
	cff := &Font{
		Version: VersionCFF2,
	}

	// the topDictLength field occupies header bytes 3 and 4
	err := p.SeekPos(3)
	if err != nil {
		return nil, err
	}
	topDictLength, err := p.ReadUInt16()
	if err != nil {
		return nil, err
	}

	err = p.SeekPos(hdrSize)
	if err != nil {
		return nil, err
	}
	topDictData := make([]byte, topDictLength)
	_, err = p.Read(topDictData)
	if err != nil {
		return nil, err
	}
	topDict, err := decodeDict(topDictData, VersionCFF2)
	if err != nil {
		return nil, err
	}
	cff.topDict = topDict
	cff.FontMatrix = topDict.getFontMatrix(opFontMatrix)
	cff.strings = &cffStrings{}

	// the global subr INDEX follows the top DICT data
	gsubrs, err := readIndex(p, VersionCFF2)
	if err != nil {
		return nil, err
	}
	cff.GlobalSubrs = gsubrs

	charStringsOffs := topDict.getInt(opCharStrings, 0)
	charStrings, err := readIndexAt(p, charStringsOffs, "CharStrings", VersionCFF2)
	if err != nil {
		return nil, err
	}
	nGlyphs := len(charStrings)
	if nGlyphs == 0 {
		return nil, invalidSince("no charstrings")
	}

	fdArrayOffs := topDict.getInt(opFDArray, 0)
	fdArrayIndex, err := readIndexAt(p, fdArrayOffs, "Font DICT", VersionCFF2)
	if err != nil {
		return nil, err
	} else if len(fdArrayIndex) == 0 {
		return nil, invalidSince("no Font DICTs")
	}
	for _, fdBlob := range fdArrayIndex {
		fontDict, err := decodeDict(fdBlob, VersionCFF2)
		if err != nil {
			return nil, err
		}
		privateDict, subrs, err := readPrivate(p, fontDict, VersionCFF2)
		if err != nil {
			return nil, err
		}
		cff.fontDicts = append(cff.fontDicts, fontDict)
		cff.privateDicts = append(cff.privateDicts, privateDict)
		cff.localSubrs = append(cff.localSubrs, subrs)
	}

	fdSelectOffs := topDict.getInt(opFDSelect, 0)
	if fdSelectOffs > 0 {
		err = p.SeekPos(int64(fdSelectOffs))
		if err != nil {
			return nil, err
		}
		cff.FDSelect, err = readFDSelect(p, nGlyphs, len(cff.privateDicts), VersionCFF2)
		if err != nil {
			return nil, err
		}
	} else if len(cff.fontDicts) > 1 {
		return nil, invalidSince("missing FDSelect")
	}

	vstoreOffs := topDict.getInt(opVStore, 0)
	if vstoreOffs > 0 {
		err = p.SeekPos(int64(vstoreOffs))
		if err != nil {
			return nil, err
		}
		length, err := p.ReadUInt16()
		if err != nil {
			return nil, err
		}
		vstore := make([]byte, length)
		_, err = p.Read(vstore)
		if err != nil {
			return nil, err
		}
		cff.varStore = vstore
	}

	cff.Glyphs = make([]*Glyph, nGlyphs)
	for gid, code := range charStrings {
		cff.Glyphs[gid] = &Glyph{Code: code}
	}

	return cff, nil
}

// readPrivate reads the private DICT referenced by the given DICT,
// together with the local subroutine INDEX, if any.
func readPrivate(p *parser.Parser, d cffDict, v Version) (cffDict, cffIndex, error) {
	size, offs, ok := d.getPair(opPrivate)
	if !ok {
		if v == VersionCFF2 {
			// CFF2 allows font DICTs without a private DICT
			return cffDict{}, nil, nil
		}
		return nil, nil, invalidSince("missing Private DICT")
	}
	if size < 0 || offs < 4 {
		return nil, nil, invalidSince("invalid Private DICT location")
	}

	err := p.SeekPos(int64(offs))
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, size)
	_, err = p.Read(buf)
	if err != nil {
		return nil, nil, err
	}
	privateDict, err := decodeDict(buf, v)
	if err != nil {
		return nil, nil, err
	}

	var subrs cffIndex
	if subrsOffs := privateDict.getInt(opSubrs, 0); subrsOffs > 0 {
		subrs, err = readIndexAt(p, offs+subrsOffs, "Subrs", v)
		if err != nil {
			return nil, nil, err
		}
	}

	return privateDict, subrs, nil
}

// readEncodingData reads a custom encoding at the current parser position
// and returns its raw bytes.  The encoding is carried through unchanged
// when the font is rewritten.
func readEncodingData(p *parser.Parser) ([]byte, error) {
	format, err := p.ReadUInt8()
	if err != nil {
		return nil, err
	}

	var body []byte
	switch format & 0x7F {
	case 0:
		nCodes, err := p.ReadUInt8()
		if err != nil {
			return nil, err
		}
		body = make([]byte, 1+int(nCodes))
		body[0] = nCodes
		_, err = p.Read(body[1:])
		if err != nil {
			return nil, err
		}
	case 1:
		nRanges, err := p.ReadUInt8()
		if err != nil {
			return nil, err
		}
		body = make([]byte, 1+2*int(nRanges))
		body[0] = nRanges
		_, err = p.Read(body[1:])
		if err != nil {
			return nil, err
		}
	default:
		return nil, unsupported(fmt.Sprintf("encoding format %d", format&0x7F))
	}

	var sups []byte
	if format&0x80 != 0 {
		nSups, err := p.ReadUInt8()
		if err != nil {
			return nil, err
		}
		sups = make([]byte, 1+3*int(nSups))
		sups[0] = nSups
		_, err = p.Read(sups[1:])
		if err != nil {
			return nil, err
		}
	}

	res := make([]byte, 0, 1+len(body)+len(sups))
	res = append(res, format)
	res = append(res, body...)
	res = append(res, sups...)
	return res, nil
}

// getStringValue resolves a SID-valued DICT entry to its string.
func (d cffDict) getStringValue(op dictOp, ss *cffStrings) string {
	sid, ok := d.getSID(op)
	if !ok {
		return ""
	}
	s, err := ss.get(sid)
	if err != nil {
		return ""
	}
	return s
}

func normaliseAngle(x float64) float64 {
	y := math.Mod(x+180, 360)
	if y < 0 {
		y += 360
	}
	return y - 180
}
