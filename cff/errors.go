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

import "fmt"

// InvalidFontError indicates a problem with the font data in the container
// structures of a CFF or CFF2 font.
type InvalidFontError struct {
	Reason string
}

func (err *InvalidFontError) Error() string {
	return "cff: " + err.Reason
}

func invalidSince(reason string) error {
	return &InvalidFontError{Reason: reason}
}

// InvalidCharstringError indicates a problem inside a Type 2 charstring.
// GID is the index of the affected glyph, Offset the byte position within
// the charstring at which decoding failed.
type InvalidCharstringError struct {
	GID    int
	Offset int
	Reason string
}

func (err *InvalidCharstringError) Error() string {
	return fmt.Sprintf("cff: glyph %d+%d: %s", err.GID, err.Offset, err.Reason)
}

// RecursionError indicates that a charstring exceeded the Type 2 subroutine
// call depth limit of 10.
type RecursionError struct {
	GID int
}

func (err *RecursionError) Error() string {
	return fmt.Sprintf("cff: glyph %d: maximum call stack size exceeded", err.GID)
}

// RangeError indicates that a number cannot be represented in any of the
// Type 2 charstring operand encodings.
type RangeError struct {
	Value float64
}

func (err *RangeError) Error() string {
	return fmt.Sprintf("cff: operand %g out of range", err.Value)
}

// NotSupportedError indicates that the font file seems valid but uses a
// CFF feature which is not supported by this library, or a feature which
// cannot be represented in the requested output version.
type NotSupportedError struct {
	Feature string
}

func (err *NotSupportedError) Error() string {
	return fmt.Sprintf("cff: %q not supported", err.Feature)
}

func unsupported(feature string) error {
	return &NotSupportedError{Feature: feature}
}
