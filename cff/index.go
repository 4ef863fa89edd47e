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

	"seehuhn.de/go/cffsubr/parser"
)

// A cffIndex is the in-memory representation of a CFF INDEX structure.
type cffIndex [][]byte

// readIndex reads an INDEX structure at the current parser position.
// CFF uses a 16-bit element count, CFF2 a 32-bit count.
func readIndex(p *parser.Parser, v Version) (cffIndex, error) {
	var count int
	if v == VersionCFF2 {
		c32, err := p.ReadUInt32()
		if err != nil {
			return nil, err
		}
		if c32 >= 1<<29 {
			return nil, invalidSince("too many INDEX entries")
		}
		count = int(c32)
	} else {
		c16, err := p.ReadUInt16()
		if err != nil {
			return nil, err
		}
		count = int(c16)
	}
	if count == 0 {
		return nil, nil
	}

	offSize, err := p.ReadUInt8()
	if err != nil {
		return nil, err
	}
	if offSize < 1 || offSize > 4 {
		return nil, invalidSince("invalid INDEX offset size")
	}

	offsets := make([]uint32, 0, count+1)
	prevOffset := uint32(1)
	size := p.Size()
	for i := 0; i <= count; i++ {
		blob, err := p.ReadBytes(int(offSize))
		if err != nil {
			return nil, err
		}

		var offs uint32
		for _, x := range blob {
			offs = offs<<8 + uint32(x)
		}
		if offs < prevOffset || int64(offs) > size {
			return nil, invalidSince("invalid INDEX offset")
		}
		offsets = append(offsets, offs-1)
		prevOffset = offs
	}

	buf := make([]byte, offsets[count])
	_, err = p.Read(buf)
	if err != nil {
		return nil, err
	}

	res := make(cffIndex, count)
	for i := 0; i < count; i++ {
		res[i] = buf[offsets[i]:offsets[i+1]]
	}

	return res, nil
}

// readIndexAt reads an INDEX at the given table offset.
func readIndexAt(p *parser.Parser, offs int32, which string, v Version) (cffIndex, error) {
	if offs == 0 {
		return nil, invalidSince("missing " + which + " INDEX")
	}
	err := p.SeekPos(int64(offs))
	if err != nil {
		return nil, err
	}
	res, err := readIndex(p, v)
	if err != nil {
		return nil, invalidSince("invalid " + which + " INDEX")
	}
	return res, nil
}

// encode returns the binary form of the INDEX.
func (idx cffIndex) encode(v Version) []byte {
	count := len(idx)

	bodyLength := 0
	for _, blob := range idx {
		bodyLength += len(blob)
	}

	offSize := 1
	for bodyLength+1 >= 1<<(8*offSize) {
		offSize++
	}

	res := &bytes.Buffer{}
	if v == VersionCFF2 {
		res.Write([]byte{
			byte(count >> 24), byte(count >> 16), byte(count >> 8), byte(count),
		})
	} else {
		res.Write([]byte{byte(count >> 8), byte(count)})
	}
	if count == 0 {
		return res.Bytes()
	}
	res.WriteByte(byte(offSize))

	var buf [4]byte
	pos := uint32(1)
	for i := 0; i <= count; i++ {
		for j := 0; j < offSize; j++ {
			buf[j] = byte(pos >> (8 * (offSize - j - 1)))
		}
		res.Write(buf[:offSize])
		if i < count {
			pos += uint32(len(idx[i]))
		}
	}

	for i := 0; i < count; i++ {
		res.Write(idx[i])
	}

	return res.Bytes()
}

// Copy returns a copy of the INDEX where the slice structure is
// shared with the original.
func (idx cffIndex) Copy() cffIndex {
	res := make(cffIndex, len(idx))
	copy(res, idx)
	return res
}
