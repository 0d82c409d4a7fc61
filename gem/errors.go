package gem

import "errors"

// ErrPhaseViolation is returned by Gate.Admit when a message arrives
// below the phase its stream/function requires.
var ErrPhaseViolation = errors.New("gem: message not permitted in current phase")

// ErrInvalidTransition is returned by Gate/Control/Process transition
// methods when the requested transition is not adjacent to the
// current state.
var ErrInvalidTransition = errors.New("gem: invalid state transition")

// ErrLiturgyIncomplete is returned by Gate.ToInitialized when the
// configured Online-initialization liturgy has not yet been satisfied.
var ErrLiturgyIncomplete = errors.New("gem: online initialization liturgy incomplete")
