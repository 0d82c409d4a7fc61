package message

import (
	"context"
	"sync"
	"time"

	"github.com/aimfab/gem/alarm"
	"github.com/aimfab/gem/gem"
	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/model"
	"github.com/aimfab/gem/report"
)

// HostCommand implements one remote command (RCMD) registered for
// S2F41/S2F42 dispatch. It returns the HCACK code to embed in S2F42;
// a non-nil err makes the caller answer HCACK=3 instead. The S2F42
// parameter-ack list is always sent empty (spec.md §12).
type HostCommand func(ctx context.Context, params item.Item) (hcack byte, err error)

// Handle is the write-capable view of one device's data model, threaded
// through every handler so S1-S6 processing can read and mutate
// registry/report/alarm/control/process state without each handler
// importing five packages directly.
type Handle struct {
	Registry *model.Registry
	Reports  *report.Engine
	Alarms   *alarm.Engine
	Gate     *gem.Gate
	Control  *gem.Control
	Process  *gem.Process

	MDLN    string
	SoftRev string

	// Clock returns the equipment's current time-of-day; overridable in
	// tests. Now adds the offset installed by SetClock to its reading.
	Clock func() time.Time

	clockMu sync.Mutex
	offset  time.Duration

	cmdMu    sync.RWMutex
	commands map[string]HostCommand
}

// NewHandle constructs a Handle wiring the given subsystems together.
func NewHandle(registry *model.Registry, reports *report.Engine, alarms *alarm.Engine, g *gem.Gate, c *gem.Control, p *gem.Process) *Handle {
	return &Handle{
		Registry: registry,
		Reports:  reports,
		Alarms:   alarms,
		Gate:     g,
		Control:  c,
		Process:  p,
		Clock:    time.Now,
		commands: map[string]HostCommand{},
	}
}

// RegisterHostCommand wires an RCMD name to its handler, consumed by
// the S2F41 handler (spec.md §12's supplemented host-command path).
func (h *Handle) RegisterHostCommand(rcmd string, fn HostCommand) {
	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()
	if h.commands == nil {
		h.commands = map[string]HostCommand{}
	}
	h.commands[rcmd] = fn
}

func (h *Handle) hostCommand(rcmd string) (HostCommand, bool) {
	h.cmdMu.RLock()
	defer h.cmdMu.RUnlock()
	fn, ok := h.commands[rcmd]
	return fn, ok
}

// Now returns the equipment's adjusted clock reading, applying any
// offset installed by SetClock.
func (h *Handle) Now() time.Time {
	h.clockMu.Lock()
	off := h.offset
	h.clockMu.Unlock()
	return h.Clock().Add(off)
}

// SetClock implements S2F31: it records the delta between the host's
// asserted time and the equipment's own clock, so future Now() calls
// report the host-synchronized time without touching the system clock.
// TIACK is always 0 (accepted); a malformed timestamp is caught by the
// caller before SetClock is invoked.
func (h *Handle) SetClock(hostTime time.Time) (tiack byte) {
	h.clockMu.Lock()
	h.offset = hostTime.Sub(h.Clock())
	h.clockMu.Unlock()
	return 0
}
