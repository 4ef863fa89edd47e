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
)

// maxStack is the Type 2 argument stack size for CFF fonts.
// CFF2 allows larger stacks, to make room for blend deltas.
const (
	maxStack   = 48
	maxStackV2 = 513
)

// maxCallDepth is the maximum number of nested charstrings, including
// the glyph charstring itself.
const maxCallDepth = 10

// A token is one syntactic element of a Type 2 charstring: a number,
// an operator, or a hintmask/cntrmask operator together with its
// mask data bytes.
type token struct {
	op   t2op    // t2number for numeric tokens
	val  float64 // value of a numeric token
	mask []byte  // data bytes of a hintmask/cntrmask token
}

// t2number is a pseudo-opcode marking numeric tokens.
const t2number t2op = 0xFFFF

func (tk token) isNumber() bool {
	return tk.op == t2number
}

func number(x float64) token {
	return token{op: t2number, val: x}
}

// decodeInfo holds the context needed to decode the charstrings of one
// font DICT.
type decodeInfo struct {
	subrs   cffIndex
	gsubrs  cffIndex
	version Version

	// vsIndex is the initial variation store index, from the private DICT.
	// Only used for CFF2.
	vsIndex int

	// numRegions returns the number of variation regions for a variation
	// store index.  Only used for CFF2 fonts containing blend operators.
	numRegions func(vsIndex int) int
}

// flatten decodes the given charstring into a token sequence, recursively
// inlining all subroutine calls.  The returned tokens contain no callsubr,
// callgsubr or return operators.
func (info *decodeInfo) flatten(gid int, code []byte) ([]token, error) {
	var tokens []token

	// argN is the number of elements the Type 2 argument stack would
	// hold at this point.  This is needed to determine the size of
	// hintmask operators and to locate subroutine indices.
	argN := 0
	nStems := 0
	vsIndex := info.vsIndex

	stackLimit := maxStack
	if info.version == VersionCFF2 {
		stackLimit = maxStackV2
	}

	bad := func(code []byte, origLen int, reason string) error {
		return &InvalidCharstringError{
			GID:    gid,
			Offset: origLen - len(code),
			Reason: reason,
		}
	}

	cmdStack := [][]byte{code}
	origLen := len(code)
	for len(cmdStack) > 0 {
		cmdStack, code = cmdStack[:len(cmdStack)-1], cmdStack[len(cmdStack)-1]
		origLen = len(code) + 1 // best effort after returning from a subr

	opLoop:
		for len(code) > 0 {
			if argN > stackLimit {
				return nil, bad(code, origLen, "type 2 stack overflow")
			}

			op := t2op(code[0])

			if op >= 32 && op <= 246 {
				tokens = append(tokens, number(float64(int16(op)-139)))
				argN++
				code = code[1:]
				continue
			} else if op >= 247 && op <= 250 {
				if len(code) < 2 {
					return nil, bad(code, origLen, "incomplete operand")
				}
				val := (int16(op)-247)*256 + int16(code[1]) + 108
				tokens = append(tokens, number(float64(val)))
				argN++
				code = code[2:]
				continue
			} else if op >= 251 && op <= 254 {
				if len(code) < 2 {
					return nil, bad(code, origLen, "incomplete operand")
				}
				val := (251-int16(op))*256 - int16(code[1]) - 108
				tokens = append(tokens, number(float64(val)))
				argN++
				code = code[2:]
				continue
			} else if op == 28 {
				if len(code) < 3 {
					return nil, bad(code, origLen, "incomplete operand")
				}
				val := int16(code[1])<<8 | int16(code[2])
				tokens = append(tokens, number(float64(val)))
				argN++
				code = code[3:]
				continue
			} else if op == 255 {
				if len(code) < 5 {
					return nil, bad(code, origLen, "incomplete operand")
				}
				val := int32(code[1])<<24 | int32(code[2])<<16 | int32(code[3])<<8 | int32(code[4])
				tokens = append(tokens, number(float64(val)/65536))
				argN++
				code = code[5:]
				continue
			}

			if op == 12 {
				if len(code) < 2 {
					return nil, bad(code, origLen, "incomplete escape opcode")
				}
				op = op<<8 | t2op(code[1])
				code = code[2:]
			} else {
				code = code[1:]
			}

			switch op {
			case t2rmoveto, t2hmoveto, t2vmoveto,
				t2rlineto, t2hlineto, t2vlineto,
				t2rrcurveto, t2rcurveline, t2rlinecurve,
				t2hhcurveto, t2vvcurveto, t2hvcurveto, t2vhcurveto,
				t2flex, t2flex1, t2hflex, t2hflex1:
				tokens = append(tokens, token{op: op})
				argN = 0

			case t2dotsection:
				if info.version == VersionCFF2 {
					return nil, bad(code, origLen, "dotsection in CFF2")
				}
				tokens = append(tokens, token{op: op})
				argN = 0

			case t2hstem, t2vstem, t2hstemhm, t2vstemhm:
				nStems += argN / 2
				tokens = append(tokens, token{op: op})
				argN = 0

			case t2hintmask, t2cntrmask:
				// stem widths directly before a hintmask declare
				// vstem hints, without needing a vstem operator
				nStems += argN / 2
				if nStems == 0 {
					return nil, bad(code, origLen, "hintmask before stems")
				}
				k := (nStems + 7) / 8
				if k > len(code) {
					return nil, bad(code, origLen, "incomplete hintmask")
				}
				mask := make([]byte, k)
				copy(mask, code[:k])
				tokens = append(tokens, token{op: op, mask: mask})
				code = code[k:]
				argN = 0

			case t2vsindex:
				if info.version != VersionCFF2 {
					return nil, bad(code, origLen, "vsindex in CFF")
				}
				if argN < 1 {
					return nil, bad(code, origLen, "type 2 stack underflow")
				}
				last := tokens[len(tokens)-1]
				if !last.isNumber() {
					return nil, unsupported("computed vsindex")
				}
				vsIndex = int(last.val)
				tokens = append(tokens, token{op: op})
				argN = 0

			case t2blend:
				if info.version != VersionCFF2 {
					return nil, bad(code, origLen, "blend in CFF")
				}
				if argN < 1 {
					return nil, bad(code, origLen, "type 2 stack underflow")
				}
				last := tokens[len(tokens)-1]
				if !last.isNumber() {
					return nil, unsupported("computed blend count")
				}
				n := int(last.val)
				if info.numRegions == nil {
					return nil, invalidSince("blend without variation store")
				}
				k := info.numRegions(vsIndex)
				need := n*(k+1) + 1
				if n < 0 || argN < need {
					return nil, bad(code, origLen, "type 2 stack underflow")
				}
				tokens = append(tokens, token{op: op})
				argN -= need - n // blend leaves the n base values

			case t2callsubr, t2callgsubr:
				if argN < 1 {
					return nil, bad(code, origLen, "type 2 stack underflow")
				}
				last := tokens[len(tokens)-1]
				if !last.isNumber() {
					return nil, unsupported("computed subroutine index")
				}
				tokens = tokens[:len(tokens)-1]
				argN--

				cmdStack = append(cmdStack, code)
				if len(cmdStack) > maxCallDepth {
					return nil, &RecursionError{GID: gid}
				}

				var err error
				if op == t2callsubr {
					code, err = getSubr(info.subrs, int(last.val))
				} else {
					code, err = getSubr(info.gsubrs, int(last.val))
				}
				if err != nil {
					return nil, err
				}
				origLen = len(code)

			case t2return:
				if info.version == VersionCFF2 {
					return nil, bad(code, origLen, "return in CFF2")
				}
				break opLoop

			case t2endchar:
				if info.version == VersionCFF2 {
					return nil, bad(code, origLen, "endchar in CFF2")
				}
				tokens = append(tokens, token{op: op})
				return tokens, nil

			case t2abs, t2neg, t2sqrt, t2not, t2exch, t2index, t2get:
				if info.version == VersionCFF2 {
					return nil, bad(code, origLen, fmt.Sprintf("opcode %s in CFF2", op))
				}
				tokens = append(tokens, token{op: op})

			case t2add, t2sub, t2div, t2mul, t2and, t2or, t2eq, t2drop, t2put:
				if info.version == VersionCFF2 {
					return nil, bad(code, origLen, fmt.Sprintf("opcode %s in CFF2", op))
				}
				tokens = append(tokens, token{op: op})
				argN--

			case t2dup, t2random:
				if info.version == VersionCFF2 {
					return nil, bad(code, origLen, fmt.Sprintf("opcode %s in CFF2", op))
				}
				tokens = append(tokens, token{op: op})
				argN++

			case t2roll:
				if info.version == VersionCFF2 {
					return nil, bad(code, origLen, "opcode roll in CFF2")
				}
				tokens = append(tokens, token{op: op})
				argN -= 2

			case t2ifelse:
				if info.version == VersionCFF2 {
					return nil, bad(code, origLen, "opcode ifelse in CFF2")
				}
				tokens = append(tokens, token{op: op})
				argN -= 3

			default:
				return nil, bad(code, origLen,
					fmt.Sprintf("unsupported type 2 opcode %d", op))
			}

			if argN < 0 {
				return nil, bad(code, origLen, "type 2 stack underflow")
			}
		} // end of opLoop
	}

	if info.version == VersionCFF2 {
		// CFF2 charstrings end with the data, there is no endchar
		return tokens, nil
	}

	// The normal exit for CFF fonts is via the t2endchar case above.
	return nil, &InvalidCharstringError{
		GID:    gid,
		Reason: "incomplete type 2 charstring",
	}
}

// bias returns the offset used when encoding subroutine indices
// as charstring operands.
func bias(nSubrs int) int {
	if nSubrs < 1240 {
		return 107
	} else if nSubrs < 33900 {
		return 1131
	}
	return 32768
}

func getSubr(subrs cffIndex, biased int) ([]byte, error) {
	idx := biased + bias(len(subrs))
	if idx < 0 || idx >= len(subrs) {
		return nil, errInvalidSubroutine
	}
	return subrs[idx], nil
}

type t2op uint16

func (op t2op) Bytes() []byte {
	if op > 255 {
		return []byte{byte(op >> 8), byte(op)}
	}
	return []byte{byte(op)}
}

func (op t2op) String() string {
	switch op {
	case t2hstem:
		return "hstem"
	case t2vstem:
		return "vstem"
	case t2vmoveto:
		return "vmoveto"
	case t2rlineto:
		return "rlineto"
	case t2hlineto:
		return "hlineto"
	case t2vlineto:
		return "vlineto"
	case t2rrcurveto:
		return "rrcurveto"
	case t2callsubr:
		return "callsubr"
	case t2return:
		return "return"
	case t2endchar:
		return "endchar"
	case t2vsindex:
		return "vsindex"
	case t2blend:
		return "blend"
	case t2hstemhm:
		return "hstemhm"
	case t2hintmask:
		return "hintmask"
	case t2cntrmask:
		return "cntrmask"
	case t2rmoveto:
		return "rmoveto"
	case t2hmoveto:
		return "hmoveto"
	case t2vstemhm:
		return "vstemhm"
	case t2rcurveline:
		return "rcurveline"
	case t2rlinecurve:
		return "rlinecurve"
	case t2vvcurveto:
		return "vvcurveto"
	case t2hhcurveto:
		return "hhcurveto"
	case t2shortint:
		return "int3"
	case t2callgsubr:
		return "callgsubr"
	case t2vhcurveto:
		return "vhcurveto"
	case t2hvcurveto:
		return "hvcurveto"
	case t2dotsection:
		return "dotsection"
	case t2and:
		return "and"
	case t2or:
		return "or"
	case t2not:
		return "not"
	case t2abs:
		return "abs"
	case t2add:
		return "add"
	case t2sub:
		return "sub"
	case t2div:
		return "div"
	case t2neg:
		return "neg"
	case t2eq:
		return "eq"
	case t2drop:
		return "drop"
	case t2put:
		return "put"
	case t2get:
		return "get"
	case t2ifelse:
		return "ifelse"
	case t2random:
		return "random"
	case t2mul:
		return "mul"
	case t2sqrt:
		return "sqrt"
	case t2dup:
		return "dup"
	case t2exch:
		return "exch"
	case t2index:
		return "index"
	case t2roll:
		return "roll"
	case t2hflex:
		return "hflex"
	case t2flex:
		return "flex"
	case t2hflex1:
		return "hflex1"
	case t2flex1:
		return "flex1"
	case t2number:
		return "number"
	case 255:
		return "float4"
	}
	if 32 <= op && op <= 246 {
		return fmt.Sprintf("int1(%d)", op)
	}
	if 247 <= op && op <= 254 {
		return fmt.Sprintf("int2(%d)", op)
	}
	return fmt.Sprintf("t2op(%d)", op)
}

const (
	t2hstem      t2op = 0x0001
	t2vstem      t2op = 0x0003
	t2vmoveto    t2op = 0x0004
	t2rlineto    t2op = 0x0005
	t2hlineto    t2op = 0x0006
	t2vlineto    t2op = 0x0007
	t2rrcurveto  t2op = 0x0008
	t2callsubr   t2op = 0x000a
	t2return     t2op = 0x000b
	t2endchar    t2op = 0x000e
	t2vsindex    t2op = 0x000f // CFF2 only
	t2blend      t2op = 0x0010 // CFF2 only
	t2hstemhm    t2op = 0x0012
	t2hintmask   t2op = 0x0013
	t2cntrmask   t2op = 0x0014
	t2rmoveto    t2op = 0x0015
	t2hmoveto    t2op = 0x0016
	t2vstemhm    t2op = 0x0017
	t2rcurveline t2op = 0x0018
	t2rlinecurve t2op = 0x0019
	t2vvcurveto  t2op = 0x001a
	t2hhcurveto  t2op = 0x001b
	t2shortint   t2op = 0x001c
	t2callgsubr  t2op = 0x001d
	t2vhcurveto  t2op = 0x001e
	t2hvcurveto  t2op = 0x001f

	t2dotsection t2op = 0x0c00
	t2and        t2op = 0x0c03
	t2or         t2op = 0x0c04
	t2not        t2op = 0x0c05
	t2abs        t2op = 0x0c09
	t2add        t2op = 0x0c0a
	t2sub        t2op = 0x0c0b
	t2div        t2op = 0x0c0c
	t2neg        t2op = 0x0c0e
	t2eq         t2op = 0x0c0f
	t2drop       t2op = 0x0c12
	t2put        t2op = 0x0c14
	t2get        t2op = 0x0c15
	t2ifelse     t2op = 0x0c16
	t2random     t2op = 0x0c17
	t2mul        t2op = 0x0c18
	t2sqrt       t2op = 0x0c1a
	t2dup        t2op = 0x0c1b
	t2exch       t2op = 0x0c1c
	t2index      t2op = 0x0c1d
	t2roll       t2op = 0x0c1e
	t2hflex      t2op = 0x0c22
	t2flex       t2op = 0x0c23
	t2hflex1     t2op = 0x0c24
	t2flex1      t2op = 0x0c25
)

var errInvalidSubroutine = invalidSince("invalid type 2 subroutine index")
