package message

import "errors"

// ErrNoHandler names a primary whose (stream, function) has no
// registered handler. The dispatcher does not return it: it answers
// such a primary with S9F5 when W=1 and drops it otherwise.
var ErrNoHandler = errors.New("message: no handler registered for stream/function")

// ErrPhaseViolation names a primary the GEM phase gate does not admit
// (spec.md §4.4). The dispatcher does not return it: an inbound primary
// is answered instead, and SendPrimary returns gem.ErrPhaseViolation.
var ErrPhaseViolation = errors.New("message: stream/function not admitted in current phase")

// ErrUnknownCommand names an RCMD with no registered HostCommand. The
// S2F41 handler does not return it; it answers such an RCMD with
// HCACK=1.
var ErrUnknownCommand = errors.New("message: unrecognized remote command")

// ErrTransactionTimeout is returned to a caller of SendPrimary when no
// reply to a W=1 primary arrives within T3.
var ErrTransactionTimeout = errors.New("message: T3 reply timer expired")

// ErrNotConnected names the case where there is no way to transmit a
// frame. SendPrimary does not return it; a failed transmit returns the
// Sender's own error.
var ErrNotConnected = errors.New("message: not connected")

// ErrConnectionLost is delivered to every SendPrimary call still
// waiting on a reply when the underlying HSMS connection drops, via
// Dispatcher.CancelAll (spec.md §4.4/§4.8 cascade).
var ErrConnectionLost = errors.New("message: connection lost while awaiting reply")
