// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package item implements the SECS-II data item grammar: the recursive
// tagged union (L, A, B, BOOLEAN, I1/I2/I4/I8, U1/U2/U4/U8, F4/F8) that
// forms the body of every SECS-II message.
package item

import "fmt"

// Format is the SECS-II item format code, the high six bits of the
// item's format byte. See SEMI E5, table 2.
type Format byte

// The standard SECS-II format codes.
const (
	FormatList    Format = 0x00 // L
	FormatBinary  Format = 0x20 // B
	FormatBoolean Format = 0x24 // BOOLEAN
	FormatASCII   Format = 0x40 // A
	FormatI8      Format = 0x60 // I8
	FormatI1      Format = 0x64 // I1
	FormatI2      Format = 0x68 // I2
	FormatI4      Format = 0x70 // I4
	FormatF8      Format = 0x80 // F8
	FormatF4      Format = 0x90 // F4
	FormatU8      Format = 0xA0 // U8
	FormatU1      Format = 0xA4 // U1
	FormatU2      Format = 0xA8 // U2
	FormatU4      Format = 0xB0 // U4
)

func (f Format) String() string {
	switch f {
	case FormatList:
		return "L"
	case FormatBinary:
		return "B"
	case FormatBoolean:
		return "BOOLEAN"
	case FormatASCII:
		return "A"
	case FormatI8:
		return "I8"
	case FormatI1:
		return "I1"
	case FormatI2:
		return "I2"
	case FormatI4:
		return "I4"
	case FormatF8:
		return "F8"
	case FormatF4:
		return "F4"
	case FormatU8:
		return "U8"
	case FormatU1:
		return "U1"
	case FormatU2:
		return "U2"
	case FormatU4:
		return "U4"
	default:
		return fmt.Sprintf("Format(0x%02x)", byte(f))
	}
}

// MaxListLen is the largest number of elements a list item may declare,
// imposed by the 3-byte length field (2^24-1).
const MaxListLen = 1<<24 - 1

// MaxNestingDepth bounds recursive list decode. Deeper nesting is
// rejected with ErrNestingTooDeep rather than overflowing the stack on
// a hostile or corrupt frame.
const MaxNestingDepth = 32

// Item is a single SECS-II data item. Exactly one of the typed fields
// is meaningful, selected by Fmt. Items are immutable once decoded or
// constructed; callers that need a different value build a new Item.
type Item struct {
	Fmt  Format
	List []Item
	A    string
	B    []byte
	Bool []bool
	I1   []int8
	I2   []int16
	I4   []int32
	I8   []int64
	U1   []uint8
	U2   []uint16
	U4   []uint32
	U8   []uint64
	F4   []float32
	F8   []float64
}

// L constructs a list item.
func L(items ...Item) Item { return Item{Fmt: FormatList, List: items} }

// Ascii constructs an ASCII string item.
func Ascii(s string) Item { return Item{Fmt: FormatASCII, A: s} }

// Bin constructs a binary item.
func Bin(b ...byte) Item { return Item{Fmt: FormatBinary, B: b} }

// Boolean constructs a boolean item.
func Boolean(v ...bool) Item { return Item{Fmt: FormatBoolean, Bool: v} }

// U1Item constructs a U1 item.
func U1Item(v ...uint8) Item { return Item{Fmt: FormatU1, U1: v} }

// U2Item constructs a U2 item.
func U2Item(v ...uint16) Item { return Item{Fmt: FormatU2, U2: v} }

// U4Item constructs a U4 item.
func U4Item(v ...uint32) Item { return Item{Fmt: FormatU4, U4: v} }

// U8Item constructs a U8 item.
func U8Item(v ...uint64) Item { return Item{Fmt: FormatU8, U8: v} }

// I1Item constructs an I1 item.
func I1Item(v ...int8) Item { return Item{Fmt: FormatI1, I1: v} }

// I2Item constructs an I2 item.
func I2Item(v ...int16) Item { return Item{Fmt: FormatI2, I2: v} }

// I4Item constructs an I4 item.
func I4Item(v ...int32) Item { return Item{Fmt: FormatI4, I4: v} }

// I8Item constructs an I8 item.
func I8Item(v ...int64) Item { return Item{Fmt: FormatI8, I8: v} }

// F4Item constructs an F4 item.
func F4Item(v ...float32) Item { return Item{Fmt: FormatF4, F4: v} }

// F8Item constructs an F8 item.
func F8Item(v ...float64) Item { return Item{Fmt: FormatF8, F8: v} }

// Len reports the item's element count: list length for FormatList,
// byte/string length for A/B, slice length otherwise.
func (it Item) Len() int {
	switch it.Fmt {
	case FormatList:
		return len(it.List)
	case FormatASCII:
		return len(it.A)
	case FormatBinary:
		return len(it.B)
	case FormatBoolean:
		return len(it.Bool)
	case FormatI1:
		return len(it.I1)
	case FormatI2:
		return len(it.I2)
	case FormatI4:
		return len(it.I4)
	case FormatI8:
		return len(it.I8)
	case FormatU1:
		return len(it.U1)
	case FormatU2:
		return len(it.U2)
	case FormatU4:
		return len(it.U4)
	case FormatU8:
		return len(it.U8)
	case FormatF4:
		return len(it.F4)
	case FormatF8:
		return len(it.F8)
	default:
		return 0
	}
}
