// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package hsms

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// State is the HSMS connection state (SEMI E37): NotConnected,
// Connected (TCP up, not yet Selected), or Selected.
type State int

const (
	NotConnected State = iota
	Connected
	Selected
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case Connected:
		return "Connected"
	case Selected:
		return "Selected"
	default:
		return "Unknown"
	}
}

// EventKind identifies a Conn lifecycle event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventSelected
	EventDeselected
	EventDisconnected
)

// Event is delivered on Conn.Events() as the connection state machine
// advances.
type Event struct {
	Kind EventKind
	Err  error // set for EventDisconnected when caused by an error
}

// MessageHandler is invoked by Conn's read loop for each data message
// (s-type 0) received while Selected. It runs on the read goroutine
// and must not block.
type MessageHandler func(Frame)

// Conn drives one HSMS session state machine over an already-accepted
// or already-dialed net.Conn. It owns the socket exclusively: the
// caller must not read from or write to conn directly once Run starts.
type Conn struct {
	conn      net.Conn
	cfg       Config
	sessionID uint16
	role      Role

	mu    sync.Mutex
	state State

	events  chan Event
	sysByte uint32 // atomic counter for control-message system bytes

	onMessage MessageHandler

	// pendingCheck reports whether the caller (device.Device, via its
	// message dispatcher) still has outstanding primary transactions.
	// nil means "none", preserving the always-accept behavior until a
	// caller wires one in with SetPendingCheck.
	pendingCheck func() bool

	t7 *resettableTimer
	t6 *resettableTimer
	lt *resettableTimer

	selectWait chan byte // receives Select.rsp status; nil when no Select.req outstanding
	deselWait  chan byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps conn in an HSMS session state machine. onMessage is
// called for every data message received while Selected; it must not
// block the read loop.
func NewConn(conn net.Conn, cfg Config, sessionID uint16, role Role, onMessage MessageHandler) *Conn {
	return &Conn{
		conn:      conn,
		cfg:       cfg,
		sessionID: sessionID,
		role:      role,
		state:     Connected,
		events:    make(chan Event, 16),
		onMessage: onMessage,
		t7:        newResettableTimer(),
		t6:        newResettableTimer(),
		lt:        newResettableTimer(),
		done:      make(chan struct{}),
	}
}

// SetPendingCheck installs the predicate handleDeselectReq consults
// before accepting a Deselect.req: when it reports true, the session
// rejects the request (status=1) and stays Selected rather than
// dropping transactions the caller is still waiting on.
func (c *Conn) SetPendingCheck(fn func() bool) {
	c.mu.Lock()
	c.pendingCheck = fn
	c.mu.Unlock()
}

// Events returns the channel of lifecycle events. The caller should
// drain it continuously; it is closed when the read loop exits.
func (c *Conn) Events() <-chan Event { return c.events }

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Conn) nextSystemBytes() uint32 {
	return atomic.AddUint32(&c.sysByte, 1)
}

// Run drives the session until ctx is cancelled or the connection is
// lost. It starts T7 (cancelled on Select) and, once Selected, the
// linktest ticker (cancelled on Deselect/Separate/close). Active-role
// callers must call InitiateSelect separately once Run is reading.
func (c *Conn) Run(ctx context.Context) {
	defer close(c.events)
	defer c.conn.Close()

	c.t7.Reset(c.cfg.T7)
	readErrs := make(chan error, 1)
	frames := make(chan Frame, 1)
	go c.readLoop(frames, readErrs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case f := <-frames:
			c.handleFrame(f)
		case err := <-readErrs:
			c.disconnect(err)
			return
		case <-c.t7.C():
			if c.State() == Connected {
				c.disconnect(ErrT7Expired)
				return
			}
		case <-c.t6.C():
			// Select.rsp or Linktest.rsp did not arrive in time.
			c.disconnect(ErrT6Expired)
			return
		case <-c.lt.C():
			c.sendLinktest()
		}
	}
}

func (c *Conn) readLoop(frames chan<- Frame, errs chan<- error) {
	for {
		f, err := ReadFrame(c.conn, c.cfg.T8, c.cfg.MaxFrameLength)
		if err != nil {
			select {
			case errs <- err:
			case <-c.done:
			}
			return
		}
		select {
		case frames <- f:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) handleFrame(f Frame) {
	switch f.Header.SType {
	case STypeSelectReq:
		c.handleSelectReq(f)
	case STypeSelectRsp:
		c.handleSelectRsp(f)
	case STypeDeselectReq:
		c.handleDeselectReq(f)
	case STypeDeselectRsp:
		c.handleDeselectRsp(f)
	case STypeLinktestReq:
		c.send(NewLinktestRsp(f.Header.SystemBytes))
	case STypeLinktestRsp:
		c.t6.Stop()
		if c.State() == Selected {
			c.lt.Reset(c.cfg.LinkTestInterval)
		}
	case STypeSeparateReq:
		c.disconnect(ErrConnectionLost)
	case STypeRejectReq:
		// Nothing outstanding to correlate generically; surfaced via logs upstream.
	case STypeDataMessage:
		if c.State() != Selected {
			return
		}
		if c.onMessage != nil {
			c.onMessage(f)
		}
	}
}

func (c *Conn) handleSelectReq(f Frame) {
	if c.State() == Selected {
		c.send(NewSelectRsp(c.sessionID, f.Header.SystemBytes, 1))
		return
	}
	c.t7.Stop()
	c.send(NewSelectRsp(c.sessionID, f.Header.SystemBytes, 0))
	c.setState(Selected)
	c.lt.Reset(c.cfg.LinkTestInterval)
	c.emit(Event{Kind: EventSelected})
}

func (c *Conn) handleSelectRsp(f Frame) {
	if c.selectWait == nil {
		return
	}
	c.t6.Stop()
	select {
	case c.selectWait <- f.Header.Function:
	default:
	}
	if f.Header.Function == 0 {
		c.t7.Stop()
		c.setState(Selected)
		c.lt.Reset(c.cfg.LinkTestInterval)
		c.emit(Event{Kind: EventSelected})
	}
}

func (c *Conn) handleDeselectReq(f Frame) {
	c.mu.Lock()
	check := c.pendingCheck
	c.mu.Unlock()
	if check != nil && check() {
		c.send(NewDeselectRsp(c.sessionID, f.Header.SystemBytes, 1))
		return
	}
	c.send(NewDeselectRsp(c.sessionID, f.Header.SystemBytes, 0))
	c.lt.Stop()
	c.setState(Connected)
	c.t7.Reset(c.cfg.T7)
	c.emit(Event{Kind: EventDeselected})
}

func (c *Conn) handleDeselectRsp(f Frame) {
	if c.deselWait == nil {
		return
	}
	c.t6.Stop()
	select {
	case c.deselWait <- f.Header.Function:
	default:
	}
	if f.Header.Function == 0 {
		c.lt.Stop()
		c.setState(Connected)
		c.t7.Reset(c.cfg.T7)
		c.emit(Event{Kind: EventDeselected})
	}
}

// InitiateSelect sends Select.req (active role) and blocks until
// Select.rsp arrives or T6 expires. status is the Select.rsp status
// byte (0 = accepted) when err is nil from a timeout perspective.
func (c *Conn) InitiateSelect(ctx context.Context) (status byte, err error) {
	c.selectWait = make(chan byte, 1)
	defer func() { c.selectWait = nil }()

	c.send(NewSelectReq(c.sessionID, c.nextSystemBytes()))
	c.t6.Reset(c.cfg.T6)
	select {
	case status = <-c.selectWait:
		return status, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.done:
		return 0, ErrConnectionLost
	case <-time.After(c.cfg.T6):
		return 0, ErrT6Expired
	}
}

// InitiateDeselect sends Deselect.req and blocks for the response.
func (c *Conn) InitiateDeselect(ctx context.Context) (status byte, err error) {
	c.deselWait = make(chan byte, 1)
	defer func() { c.deselWait = nil }()

	c.send(NewDeselectReq(c.sessionID, c.nextSystemBytes()))
	c.t6.Reset(c.cfg.T6)
	select {
	case status = <-c.deselWait:
		return status, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.done:
		return 0, ErrConnectionLost
	case <-time.After(c.cfg.T6):
		return 0, ErrT6Expired
	}
}

func (c *Conn) sendLinktest() {
	c.send(NewLinktestReq(c.nextSystemBytes()))
	c.t6.Reset(c.cfg.T6)
}

// Send writes a data-message frame. Returns ErrNotSelected if the
// session is not currently Selected.
func (c *Conn) Send(f Frame) error {
	if c.State() != Selected {
		return ErrNotSelected
	}
	return c.send(f)
}

func (c *Conn) send(f Frame) error {
	return WriteFrame(c.conn, f)
}

// Separate sends Separate.req and immediately tears down the
// connection, as SEMI E37 treats Separate as unilateral.
func (c *Conn) Separate() {
	c.send(NewSeparateReq(c.sessionID, c.nextSystemBytes()))
	c.disconnect(ErrConnectionLost)
}

func (c *Conn) disconnect(err error) {
	c.setState(NotConnected)
	c.t7.Stop()
	c.t6.Stop()
	c.lt.Stop()
	c.emit(Event{Kind: EventDisconnected, Err: err})
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) emit(e Event) {
	select {
	case c.events <- e:
	default:
		// events channel is sized generously; a full channel means the
		// consumer has stopped draining, which Run's ctx cancellation
		// path already covers.
	}
}
