package hsms

import "errors"

// ErrShortRead is returned when the TCP connection closes mid-frame.
var ErrShortRead = errors.New("hsms: short read, connection closed mid-frame")

// ErrLengthOverflow is returned when a frame declares a length greater
// than the configured MaxFrameLength.
var ErrLengthOverflow = errors.New("hsms: declared frame length exceeds configured cap")

// ErrBadSType is returned when a control message carries an
// unrecognized s-type.
var ErrBadSType = errors.New("hsms: unrecognized s-type")

// ErrT8Expired is returned when the gap between bytes of one frame
// exceeds T8.
var ErrT8Expired = errors.New("hsms: T8 inter-character timer expired")

// ErrT7Expired is returned when Select does not complete within T7 of
// TCP connection establishment.
var ErrT7Expired = errors.New("hsms: T7 not-selected timer expired")

// ErrT6Expired is returned when a Select.rsp or Linktest.rsp is not
// received within T6 of the corresponding request.
var ErrT6Expired = errors.New("hsms: T6 control timer expired")

// ErrT3Timeout names a W=1 primary left unanswered within T3. Nothing
// in this module returns it: message.Dispatcher.SendPrimary reports a
// T3 expiry as message.ErrTransactionTimeout.
var ErrT3Timeout = errors.New("hsms: T3 reply timer expired")

// ErrConnectionLost is the Err of the EventDisconnected that a
// Separate (sent or received) produces, and is returned by
// InitiateSelect/InitiateDeselect when the session ends while they
// wait. A read error is reported as that error instead.
var ErrConnectionLost = errors.New("hsms: connection lost")

// ErrNotSelected is returned when a send is attempted while the
// session is not in the Selected state.
var ErrNotSelected = errors.New("hsms: session is not selected")
