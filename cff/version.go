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

// Version selects between the two flavours of compact font format data.
type Version uint8

// The supported table versions.
const (
	VersionCFF  Version = 1 // `CFF ` tables, as described in Adobe TN#5176
	VersionCFF2 Version = 2 // `CFF2` tables
)

func (v Version) String() string {
	switch v {
	case VersionCFF:
		return "CFF"
	case VersionCFF2:
		return "CFF2"
	default:
		return "unknown"
	}
}

// TableTag returns the sfnt table tag for the version.
func (v Version) TableTag() string {
	if v == VersionCFF2 {
		return "CFF2"
	}
	return "CFF "
}
