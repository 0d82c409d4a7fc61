package model

import "errors"

// ErrUnknownID is returned when an operation references an SVID, ECID,
// ALID or CEID that was not registered at boot.
var ErrUnknownID = errors.New("model: unknown id")

// ErrReadOnly is returned when a write targets a read-only SVID.
var ErrReadOnly = errors.New("model: read-only")

// ErrOutOfRange is returned when an ECID write falls outside [Min, Max].
var ErrOutOfRange = errors.New("model: value out of range")
