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

	"seehuhn.de/go/postscript/type1"
)

// ConvertOptions gives additional information needed when changing the
// table format version of a font.
type ConvertOptions struct {
	// FontName is used as the PostScript name of the font when converting
	// to CFF.  CFF2 stores no font name.
	FontName string

	// Widths are the glyph advance widths, in glyph ID order.  They are
	// used when converting to CFF, which stores widths inside the
	// charstrings.  CFF2 fonts keep their widths in the hmtx table only.
	Widths []float64
}

// ConvertTo changes the table format version of the font.
//
// Converting to CFF2 removes glyph names, the font name and the glyph
// width operands from the charstrings.  Converting to CFF produces a
// CID-keyed font with the identity ROS, since CFF2 has no glyph names.
// Both directions inline all subroutines; use [Font.Subroutinize]
// afterwards to rebuild the subroutine INDEXes.
//
// If an error occurs the font is left unchanged.
func (f *Font) ConvertTo(version Version, opt *ConvertOptions) error {
	if opt == nil {
		opt = &ConvertOptions{}
	}
	switch version {
	case f.Version:
		return nil
	case VersionCFF2:
		return f.toCFF2()
	case VersionCFF:
		return f.toCFF1(opt)
	default:
		return unsupported(fmt.Sprintf("version %d", version))
	}
}

func (f *Font) toCFF2() error {
	progs, err := f.flattenAll()
	if err != nil {
		return err
	}

	codes := make([][]byte, len(progs))
	for gid, tokens := range progs {
		tokens, _, _ = splitWidth(tokens)

		out := make([]token, 0, len(tokens))
		numRun := 0
		for _, tk := range tokens {
			switch {
			case tk.isNumber():
				numRun++
				out = append(out, tk)
				continue
			case tk.op == t2endchar:
				if numRun >= 4 {
					return unsupported("seac accent composition in CFF2")
				}
				// CFF2 charstrings end with the data
			case tk.op == t2dotsection:
				// deprecated no-op, dropped
			case tk.op >= t2and && tk.op <= t2roll:
				return unsupported(fmt.Sprintf("operator %s in CFF2", tk.op))
			default:
				out = append(out, tk)
			}
			numRun = 0
		}

		code, _, err := encodeTokens(out)
		if err != nil {
			return err
		}
		codes[gid] = code
	}

	privateDicts := make([]cffDict, len(f.privateDicts))
	for i, pd := range f.privateDicts {
		pd = pd.Copy()
		delete(pd, opDefaultWidthX)
		delete(pd, opNominalWidthX)
		delete(pd, opForceBold)
		privateDicts[i] = pd
	}

	topDict := cffDict{}
	topDict.setFontMatrix(opFontMatrix, f.FontMatrix, false)

	f.Version = VersionCFF2
	for gid, g := range f.Glyphs {
		g.Name = ""
		g.Code = codes[gid]
	}
	f.FontInfo = nil
	f.GlobalSubrs = nil
	f.localSubrs = make([]cffIndex, f.numFontDicts())
	f.IsCID = false
	f.topDict = topDict
	f.strings = &cffStrings{}
	f.privateDicts = privateDicts
	f.charset, f.charsetID = nil, 0
	f.encoding, f.encodingID = nil, 0
	f.varStore = nil
	return nil
}

func (f *Font) toCFF1(opt *ConvertOptions) error {
	progs, err := f.flattenAll()
	if err != nil {
		return err
	}

	for _, pd := range f.privateDicts {
		if dictHasBlend(pd) {
			return unsupported("variable private DICT values in CFF")
		}
	}

	var ww []float64
	if len(opt.Widths) == len(f.Glyphs) {
		ww = opt.Widths
	}
	defaultWidth, nominalWidth := selectWidths(ww)

	codes := make([][]byte, len(progs))
	for gid, tokens := range progs {
		out := make([]token, 0, len(tokens)+2)
		if ww != nil && ww[gid] != defaultWidth {
			out = append(out, number(ww[gid]-nominalWidth))
		}
		for _, tk := range tokens {
			switch tk.op {
			case t2blend:
				return unsupported("variable glyph outlines in CFF")
			case t2vsindex:
				// drop the operator together with its operand
				out = out[:len(out)-1]
			default:
				out = append(out, tk)
			}
		}
		out = append(out, token{op: t2endchar})

		code, _, err := encodeTokens(out)
		if err != nil {
			return err
		}
		codes[gid] = code
	}

	numFonts := f.numFontDicts()
	privateDicts := make([]cffDict, numFonts)
	for i := 0; i < numFonts; i++ {
		pd := cffDict{}
		if i < len(f.privateDicts) && f.privateDicts[i] != nil {
			pd = f.privateDicts[i].Copy()
		}
		delete(pd, opVSIndex)
		if ww != nil {
			pd[opDefaultWidthX] = []interface{}{defaultWidth}
			pd[opNominalWidthX] = []interface{}{nominalWidth}
		}
		privateDicts[i] = pd
	}

	fontName := opt.FontName
	if fontName == "" {
		fontName = "Unnamed"
	}

	// CFF2 has no glyph names, so the downgraded font is CID-keyed with
	// the identity mapping.
	charset := make([]int32, len(f.Glyphs))
	for i := range charset {
		charset[i] = int32(i)
	}

	topDict := cffDict{}
	topDict[opROS] = []interface{}{"Adobe", "Identity", int32(0)}
	topDict[opCIDCount] = []interface{}{int32(len(f.Glyphs))}
	topDict.setFontMatrix(opFontMatrix, f.FontMatrix, false)

	f.Version = VersionCFF
	for gid, g := range f.Glyphs {
		g.Name = ""
		g.Code = codes[gid]
	}
	f.FontInfo = &type1.FontInfo{FontName: fontName}
	f.GlobalSubrs = nil
	f.localSubrs = make([]cffIndex, numFonts)
	f.IsCID = true
	if f.FDSelect == nil {
		f.FDSelect = func(gid int) int { return 0 }
	}
	f.topDict = topDict
	f.strings = &cffStrings{}
	f.privateDicts = privateDicts
	f.charset, f.charsetID = charset, 0
	f.encoding, f.encodingID = nil, 0
	f.varStore = nil
	return nil
}

// splitWidth separates the optional glyph width from a flattened CFF
// charstring.  The width is present if the operand count in front of
// the first operator exceeds what the operator consumes.
func splitWidth(tokens []token) ([]token, float64, bool) {
	n := 0
	for _, tk := range tokens {
		if tk.isNumber() {
			n++
			continue
		}

		hasWidth := false
		switch tk.op {
		case t2hstem, t2vstem, t2hstemhm, t2vstemhm, t2hintmask, t2cntrmask:
			hasWidth = n%2 == 1
		case t2rmoveto:
			hasWidth = n > 2
		case t2hmoveto, t2vmoveto:
			hasWidth = n > 1
		case t2endchar:
			hasWidth = n == 1 || n == 5
		}
		if hasWidth {
			return tokens[1:], tokens[0].val, true
		}
		return tokens, 0, false
	}
	return tokens, 0, false
}

// selectWidths chooses the defaultWidthX and nominalWidthX values for a
// set of glyph widths.  The default width is the most frequent width;
// the nominal width is chosen so that as many width operands as
// possible fit into the short operand encodings.
func selectWidths(ww []float64) (float64, float64) {
	if len(ww) == 0 {
		return 0, 0
	} else if len(ww) == 1 {
		return ww[0], ww[0]
	}

	widthHist := make(map[float64]int32)
	var mostFrequentCount int32
	var defaultWidth float64
	for _, w := range ww {
		widthHist[w]++
		if widthHist[w] > mostFrequentCount {
			defaultWidth = w
			mostFrequentCount = widthHist[w]
		}
	}
	if int(mostFrequentCount) == len(ww) {
		// all glyphs share one width, no width operands will be emitted
		return defaultWidth, defaultWidth
	}

	var sum float64
	minWidth := math.Inf(+1)
	maxWidth := math.Inf(-1)
	for _, w := range ww {
		if w == defaultWidth {
			continue
		}
		sum += w
		if w < minWidth {
			minWidth = w
		}
		if w > maxWidth {
			maxWidth = w
		}
	}
	nominalWidth := math.Round(sum / float64(len(ww)))
	if nominalWidth < minWidth+107 {
		nominalWidth = minWidth + 107
	} else if nominalWidth > maxWidth-107 {
		nominalWidth = maxWidth - 107
	}
	return defaultWidth, nominalWidth
}

func dictHasBlend(d cffDict) bool {
	for _, args := range d {
		for _, arg := range args {
			if _, ok := arg.(dictBlend); ok {
				return true
			}
		}
	}
	return false
}
