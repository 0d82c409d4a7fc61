package item

import "bytes"

// Equal reports whether two items are structurally identical: same
// format and same element values, recursively for lists. Byte slices
// and string contents are compared by value, not by identity.
func Equal(a, b Item) bool {
	if a.Fmt != b.Fmt {
		return false
	}
	switch a.Fmt {
	case FormatList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case FormatASCII:
		return a.A == b.A
	case FormatBinary:
		return bytes.Equal(a.B, b.B)
	case FormatBoolean:
		return equalSlice(a.Bool, b.Bool)
	case FormatI1:
		return equalSlice(a.I1, b.I1)
	case FormatI2:
		return equalSlice(a.I2, b.I2)
	case FormatI4:
		return equalSlice(a.I4, b.I4)
	case FormatI8:
		return equalSlice(a.I8, b.I8)
	case FormatU1:
		return bytes.Equal(a.U1, b.U1)
	case FormatU2:
		return equalSlice(a.U2, b.U2)
	case FormatU4:
		return equalSlice(a.U4, b.U4)
	case FormatU8:
		return equalSlice(a.U8, b.U8)
	case FormatF4:
		return equalSlice(a.F4, b.F4)
	case FormatF8:
		return equalSlice(a.F8, b.F8)
	default:
		return false
	}
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
