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

// The VariationStore of a CFF2 font is carried through unchanged.  The only
// information needed from it is the number of variation regions per item
// variation data subtable, which determines the number of delta values
// consumed by a blend operator.

// regionCounts returns a function mapping a variation store index to the
// number of variation regions.  It returns nil if the font has no
// variation store.
func (f *Font) regionCounts() func(vsIndex int) int {
	data := f.varStore
	if len(data) < 8 {
		return nil
	}

	count := int(data[6])<<8 | int(data[7])
	counts := make([]int, 0, count)
	for i := 0; i < count; i++ {
		pos := 8 + 4*i
		if pos+4 > len(data) {
			break
		}
		offs := int(data[pos])<<24 | int(data[pos+1])<<16 |
			int(data[pos+2])<<8 | int(data[pos+3])
		if offs < 0 || offs+6 > len(data) {
			counts = append(counts, 0)
			continue
		}
		regionIndexCount := int(data[offs+4])<<8 | int(data[offs+5])
		counts = append(counts, regionIndexCount)
	}

	return func(vsIndex int) int {
		if vsIndex < 0 || vsIndex >= len(counts) {
			return 0
		}
		return counts[vsIndex]
	}
}
