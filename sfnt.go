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
	"math/bits"
	"sort"

	"seehuhn.de/go/cffsubr/internal/post"
)

const (
	scalerTypeTrueType = 0x00010000
	scalerTypeCFF      = 0x4F54544F // "OTTO"
	scalerTypeApple    = 0x74727565 // "true"
)

// isSFNT reports whether the data starts with an sfnt file header.
func isSFNT(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	scalerType := binary.BigEndian.Uint32(data)
	switch scalerType {
	case scalerTypeTrueType, scalerTypeCFF, scalerTypeApple:
		return true
	}
	return false
}

// An sfntFile holds the decomposed tables of an sfnt font file.
type sfntFile struct {
	scalerType uint32
	tables     map[string][]byte
}

// readSFNT splits an sfnt font file into its tables.  All tables are
// kept verbatim, including tables this package knows nothing about.
func readSFNT(data []byte) (*sfntFile, error) {
	if len(data) < 12 {
		return nil, errMalformedSFNT
	}
	scalerType := binary.BigEndian.Uint32(data)
	numTables := int(binary.BigEndian.Uint16(data[4:]))
	if len(data) < 12+16*numTables {
		return nil, errMalformedSFNT
	}

	file := &sfntFile{
		scalerType: scalerType,
		tables:     make(map[string][]byte, numTables),
	}
	for i := 0; i < numTables; i++ {
		rec := data[12+16*i:]
		name := string(rec[:4])
		offset := binary.BigEndian.Uint32(rec[8:])
		length := binary.BigEndian.Uint32(rec[12:])
		if uint64(offset)+uint64(length) > uint64(len(data)) {
			return nil, errMalformedSFNT
		}
		file.tables[name] = data[offset : offset+length]
	}
	if len(file.tables) == 0 {
		return nil, errMalformedSFNT
	}
	return file, nil
}

// cffTag returns the tag of the font's CFF table, either "CFF " or
// "CFF2".
func (file *sfntFile) cffTag() (string, bool) {
	for _, tag := range []string{"CFF ", "CFF2"} {
		if _, ok := file.tables[tag]; ok {
			return tag, true
		}
	}
	return "", false
}

// write re-serializes the font file, with freshly computed table
// checksums and head table checksum adjustment.
func (file *sfntFile) write() []byte {
	numTables := len(file.tables)

	tableNames := make([]string, 0, numTables)
	for name := range file.tables {
		tableNames = append(tableNames, name)
	}

	// sort the table names in the recommended order
	sort.Slice(tableNames, func(i, j int) bool {
		iPrio := ttTableOrder[tableNames[i]]
		jPrio := ttTableOrder[tableNames[j]]
		if iPrio != jPrio {
			return iPrio > jPrio
		}
		return tableNames[i] < tableNames[j]
	})

	entrySelector := bits.Len(uint(numTables)) - 1
	header := offsets{
		ScalerType:    file.scalerType,
		NumTables:     uint16(numTables),
		SearchRange:   1 << (entrySelector + 4),
		EntrySelector: uint16(entrySelector),
		RangeShift:    uint16(16 * (numTables - 1<<entrySelector)),
	}

	// temporarily clear the checksum in the "head" table
	if headData, ok := file.tables["head"]; ok && len(headData) >= 12 {
		headData = append([]byte{}, headData...)
		binary.BigEndian.PutUint32(headData[8:12], 0)
		file.tables["head"] = headData
	}

	var totalSum uint32
	offset := uint32(12 + 16*numTables)
	records := make([]tableRecord, numTables)
	for i, name := range tableNames {
		body := file.tables[name]
		length := uint32(len(body))
		sum := tableChecksum(body)

		records[i].Tag = [4]byte{name[0], name[1], name[2], name[3]}
		records[i].CheckSum = sum
		records[i].Offset = offset
		records[i].Length = length

		totalSum += sum
		offset += 4 * ((length + 3) / 4)
	}
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Tag[:], records[j].Tag[:]) < 0
	})

	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.BigEndian, header)
	_ = binary.Write(buf, binary.BigEndian, records)
	totalSum += tableChecksum(buf.Bytes())

	// set the final checksum in the "head" table
	if headData, ok := file.tables["head"]; ok && len(headData) >= 12 {
		binary.BigEndian.PutUint32(headData[8:12], 0xB1B0AFBA-totalSum)
	}

	var pad [3]byte
	for _, name := range tableNames {
		body := file.tables[name]
		buf.Write(body)
		if k := len(body) % 4; k != 0 {
			buf.Write(pad[:4-k])
		}
	}
	return buf.Bytes()
}

func tableChecksum(body []byte) uint32 {
	var sum uint32
	for i := 0; i < len(body); i += 4 {
		var word uint32
		for j := 0; j < 4; j++ {
			word <<= 8
			if i+j < len(body) {
				word |= uint32(body[i+j])
			}
		}
		sum += word
	}
	return sum
}

// glyphWidths recovers the glyph advance widths from the "hhea" and
// "hmtx" tables.
func (file *sfntFile) glyphWidths(numGlyphs int) ([]float64, error) {
	hheaData := file.tables["hhea"]
	hmtxData := file.tables["hmtx"]
	if len(hheaData) < 36 || hmtxData == nil {
		return nil, nil
	}
	numHorMetrics := int(binary.BigEndian.Uint16(hheaData[34:]))

	widths := make([]float64, numGlyphs)
	var prevWidth uint16
	pos := 0
	for i := 0; i < numGlyphs; i++ {
		if i < numHorMetrics {
			if pos+2 > len(hmtxData) {
				return nil, errMalformedSFNT
			}
			prevWidth = binary.BigEndian.Uint16(hmtxData[pos:])
			pos += 4 // skip the left side bearing
		}
		widths[i] = float64(prevWidth)
	}
	return widths, nil
}

// setGlyphNames replaces the "post" table with one carrying the given
// glyph names (format 2.0), or with a name-free format 3.0 table if
// names is nil.  The header fields of an existing post table are
// preserved.
func (file *sfntFile) setGlyphNames(names []string) {
	info := &post.Info{}
	if old, err := post.Read(file.tables["post"]); err == nil {
		info = old
	}
	info.Names = names
	file.tables["post"] = info.Encode()
}

type offsets struct {
	ScalerType    uint32
	NumTables     uint16
	SearchRange   uint16
	EntrySelector uint16
	RangeShift    uint16
}

type tableRecord struct {
	Tag      [4]byte
	CheckSum uint32
	Offset   uint32
	Length   uint32
}

// https://docs.microsoft.com/en-us/typography/opentype/spec/recom#optimized-table-ordering
var ttTableOrder = map[string]int{
	"head": 95,
	"hhea": 90,
	"maxp": 85,
	"OS/2": 80,
	"hmtx": 75,
	"LTSH": 70,
	"VDMX": 65,
	"hdmx": 60,
	"cmap": 55,
	"fpgm": 50,
	"prep": 45,
	"cvt ": 40,
	"loca": 35,
	"glyf": 30,
	"kern": 25,
	"name": 20,
	"post": 15,
	"gasp": 10,
	"DSIG": 5,
}
