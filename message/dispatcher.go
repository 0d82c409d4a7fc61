package message

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aimfab/gem/clog"
	"github.com/aimfab/gem/gem"
	"github.com/aimfab/gem/hsms"
	"github.com/aimfab/gem/item"
)

// Sender is the subset of *hsms.Conn the dispatcher needs to transmit
// frames, kept narrow so tests can substitute a fake.
type Sender interface {
	Send(hsms.Frame) error
}

// HandlerFunc processes one admitted primary and optionally returns
// the reply to send back (nil when the primary carries W=0, or when
// the handler chooses not to reply).
type HandlerFunc func(ctx context.Context, h *Handle, msg Message) (*Message, error)

type key struct {
	Stream   byte
	Function byte
}

// Dispatcher routes inbound SECS-II primaries to registered handlers,
// gated by the GEM communication phase, and correlates replies to
// outstanding SendPrimary calls by system bytes within T3 (spec.md
// §4.8). It is the message.Dispatcher named throughout spec.md §5.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[key]HandlerFunc

	sender    Sender
	gate      *gem.Gate
	handle    *Handle
	sessionID uint16
	deviceID  uint16
	t3        time.Duration
	log       clog.Clog

	sysCounter uint32

	txMu sync.Mutex
	tx   map[uint32]chan txResult

	// OnTimeout and OnRoundTrip, when set, are invoked from SendPrimary
	// on a T3 timeout and on a successful reply respectively, letting
	// the caller (device.Device) feed telemetry.Metrics without this
	// package importing it.
	OnTimeout   func()
	OnRoundTrip func(time.Duration)
}

// txResult is delivered on a SendPrimary caller's wait channel: either
// the matching reply, or an error (e.g. ErrConnectionLost) when
// CancelAll resolves it instead.
type txResult struct {
	msg Message
	err error
}

// NewDispatcher constructs a Dispatcher for one device session.
func NewDispatcher(sender Sender, g *gem.Gate, h *Handle, sessionID, deviceID uint16, t3 time.Duration) *Dispatcher {
	d := &Dispatcher{
		handlers:  map[key]HandlerFunc{},
		sender:    sender,
		gate:      g,
		handle:    h,
		sessionID: sessionID,
		deviceID:  deviceID,
		t3:        t3,
		log:       clog.Clog{},
		tx:        map[uint32]chan txResult{},
	}
	registerDefaultHandlers(d)
	return d
}

// SetLogger installs the log provider used for dispatcher diagnostics.
func (d *Dispatcher) SetLogger(l clog.Clog) { d.log = l }

// SetMetricsHooks installs the callbacks invoked from SendPrimary on a
// T3 timeout and on a successful round trip. Either may be nil.
func (d *Dispatcher) SetMetricsHooks(onTimeout func(), onRoundTrip func(time.Duration)) {
	d.OnTimeout = onTimeout
	d.OnRoundTrip = onRoundTrip
}

// HasPending reports whether any SendPrimary call is still waiting on
// a reply, consulted by hsms.Conn before accepting a Deselect.req
// (spec.md §4.3).
func (d *Dispatcher) HasPending() bool {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return len(d.tx) > 0
}

// CancelAll resolves every outstanding SendPrimary call with err,
// instead of letting each hit its own T3 timeout. Used when the
// underlying HSMS connection is lost (spec.md §4.4/§4.8 cascade).
func (d *Dispatcher) CancelAll(err error) {
	d.txMu.Lock()
	pending := d.tx
	d.tx = map[uint32]chan txResult{}
	d.txMu.Unlock()
	for _, ch := range pending {
		select {
		case ch <- txResult{err: err}:
		default:
		}
	}
}

// RegisterHandler installs (or replaces) the handler for (stream,
// function).
func (d *Dispatcher) RegisterHandler(stream, function byte, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[key{stream, function}] = fn
}

func (d *Dispatcher) handlerFor(stream, function byte) (HandlerFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.handlers[key{stream, function}]
	return fn, ok
}

func (d *Dispatcher) nextSystemBytes() uint32 {
	return atomic.AddUint32(&d.sysCounter, 1)
}

// OnFrame is the hsms.MessageHandler callback wired to the underlying
// Conn: it runs on the Conn's read goroutine and must not block, so
// reply correlation hands off over a buffered channel and primary
// handling is dispatched onto its own goroutine.
func (d *Dispatcher) OnFrame(f hsms.Frame) {
	msg, err := messageFromFrame(f)
	if err != nil {
		d.log.Error("message: malformed frame dropped: %v", err)
		return
	}

	// Only a secondary (even function) can answer a pending SendPrimary;
	// a primary whose system bytes match a pending transaction is still
	// handled as a primary.
	if msg.Function%2 == 0 && d.deliverReply(msg) {
		return
	}

	go d.handlePrimary(context.Background(), msg)
}

func (d *Dispatcher) deliverReply(msg Message) bool {
	d.txMu.Lock()
	ch, ok := d.tx[msg.SystemBytes]
	if ok {
		delete(d.tx, msg.SystemBytes)
	}
	d.txMu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- txResult{msg: msg}:
	default:
	}
	return true
}

func (d *Dispatcher) handlePrimary(ctx context.Context, msg Message) {
	if err := d.gate.Admit(msg.Stream, msg.Function); err != nil {
		if msg.WBit {
			if msg.Stream == 2 && (msg.Function == 33 || msg.Function == 35 || msg.Function == 37) {
				// S2F33/35/37 answer with their own ack code (1, denied)
				// rather than S9F5.
				d.sendReply(msg.Reply(msg.Function+1, itemPtr(item.U1Item(1))))
			} else {
				d.sendReply(msg.Reply(9, s9f5(msg)))
			}
		}
		return
	}

	fn, ok := d.handlerFor(msg.Stream, msg.Function)
	if !ok {
		if msg.WBit {
			d.sendReply(msg.Reply(9, s9f5(msg)))
		}
		return
	}

	reply, err := fn(ctx, d.handle, msg)
	if err != nil {
		d.log.Error("message: handler for S%dF%d failed: %v", msg.Stream, msg.Function, err)
		return
	}
	if msg.WBit && reply != nil {
		d.sendReply(*reply)
	}
}

func (d *Dispatcher) sendReply(msg Message) {
	f, err := frameFromMessage(d.sessionID, msg)
	if err != nil {
		d.log.Error("message: failed to encode reply: %v", err)
		return
	}
	if err := d.sender.Send(f); err != nil {
		d.log.Error("message: failed to send reply: %v", err)
	}
}

// SendPrimary transmits a W=1 primary and blocks until the matching
// reply arrives, T3 expires, or ctx is cancelled (spec.md §4.8).
func (d *Dispatcher) SendPrimary(ctx context.Context, stream, function byte, body *item.Item) (*Message, error) {
	if err := d.gate.Admit(stream, function); err != nil {
		return nil, err
	}

	sysBytes := d.nextSystemBytes()
	msg := Message{Stream: stream, Function: function, WBit: true, SystemBytes: sysBytes, DeviceID: d.deviceID, Body: body}
	f, err := frameFromMessage(d.sessionID, msg)
	if err != nil {
		return nil, err
	}

	ch := make(chan txResult, 1)
	d.txMu.Lock()
	d.tx[sysBytes] = ch
	d.txMu.Unlock()
	defer func() {
		d.txMu.Lock()
		delete(d.tx, sysBytes)
		d.txMu.Unlock()
	}()

	if err := d.sender.Send(f); err != nil {
		return nil, err
	}

	start := time.Now()
	timer := time.NewTimer(d.t3)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if d.OnRoundTrip != nil {
			d.OnRoundTrip(time.Since(start))
		}
		return &res.msg, nil
	case <-timer.C:
		if d.OnTimeout != nil {
			d.OnTimeout()
		}
		return nil, ErrTransactionTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendEvent transmits an S6F11 (or any other W=1 notification) and
// discards a late reply past T3 rather than propagating the timeout,
// matching spec.md §4.7's "no retry" rule for event reports.
func (d *Dispatcher) SendEvent(ctx context.Context, stream, function byte, body *item.Item) {
	if _, err := d.SendPrimary(ctx, stream, function, body); err != nil {
		d.log.Warn("message: S%dF%d event report not acknowledged: %v", stream, function, err)
	}
}

func frameFromMessage(sessionID uint16, msg Message) (hsms.Frame, error) {
	var body []byte
	if msg.Body != nil {
		b, err := item.Encode(*msg.Body)
		if err != nil {
			return hsms.Frame{}, err
		}
		body = b
	}
	return hsms.NewDataMessage(sessionID, msg.Stream, msg.Function, msg.WBit, msg.SystemBytes, body), nil
}

func messageFromFrame(f hsms.Frame) (Message, error) {
	msg := Message{
		Stream:      f.Header.StreamNumber(),
		Function:    f.Header.Function,
		WBit:        f.Header.WBit(),
		SystemBytes: f.Header.SystemBytes,
		DeviceID:    f.Header.SessionID,
	}
	if len(f.Body) == 0 {
		return msg, nil
	}
	it, rest, err := item.Decode(f.Body)
	if err != nil {
		return Message{}, fmt.Errorf("message: decoding body: %w", err)
	}
	if len(rest) != 0 {
		return Message{}, fmt.Errorf("message: %d trailing bytes after root item", len(rest))
	}
	msg.Body = &it
	return msg, nil
}

// s9f5 builds the S9F5 "unrecognized stream type/function type" body:
// the 10-byte header of the offending message, per SEMI E5.
func s9f5(msg Message) *item.Item {
	b := item.Bin(
		byte(msg.DeviceID>>8), byte(msg.DeviceID),
		streamByte(msg), msg.Function,
		0, byte(hsmsDataSType),
		byte(msg.SystemBytes>>24), byte(msg.SystemBytes>>16), byte(msg.SystemBytes>>8), byte(msg.SystemBytes),
	)
	return &b
}

const hsmsDataSType = 0

func streamByte(msg Message) byte {
	s := msg.Stream
	if msg.WBit {
		s |= 0x80
	}
	return s
}
