package item

import "errors"

// ErrMalformed is returned when a declared item length overruns the
// remaining buffer, or a format byte is not one of the recognized
// SECS-II format codes.
var ErrMalformed = errors.New("item: malformed item")

// ErrNestingTooDeep is returned when a list's elements nest deeper than
// MaxNestingDepth.
var ErrNestingTooDeep = errors.New("item: nesting too deep")

// ErrListTooLong is returned when a list declares more than MaxListLen
// elements.
var ErrListTooLong = errors.New("item: list too long")
