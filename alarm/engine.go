// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package alarm implements the alarm engine of spec.md §4.9: ALID
// active-state tracking and S5F1 edge emission.
package alarm

import (
	"time"

	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/model"
)

// activeBit marks bit 7 of ALCD: set on an alarm becoming active,
// clear on an alarm being cleared. See spec.md §4.9 and §6.
const activeBit byte = 0x80

// Emitter sends an S5F1 primary (reply-expected) built from the given
// payload. The caller (package message/device) owns the actual wire
// send and T3-gated reply correlation; Engine only constructs the
// payload and the transition.
type Emitter func(payload item.Item) error

// Engine tracks the active/inactive state of every registered ALID and
// emits S5F1 on edges. Set/clear are idempotent: a duplicate set or
// clear against an alarm already in that state is a no-op, emitting
// nothing.
type Engine struct {
	registry *model.Registry
	emit     Emitter
	now      func() time.Time
}

// NewEngine constructs an Engine over registry, sending alarm reports
// through emit. emit may be nil and installed later via SetEmitter,
// for callers that must construct the engine before the thing that
// sends S5F1 exists.
func NewEngine(registry *model.Registry, emit Emitter) *Engine {
	return &Engine{registry: registry, emit: emit, now: time.Now}
}

// SetEmitter installs (or replaces) the Emitter used for subsequent
// S5F1 edges.
func (e *Engine) SetEmitter(emit Emitter) { e.emit = emit }

// SetAlarm transitions alid to active if it was previously inactive,
// emitting S5F1 {ALCD=priority|0x80, ALID=alid, ALTX=text}. A set
// against an already-active alarm is a no-op.
func (e *Engine) SetAlarm(alid uint32, text string) error {
	a, ok := e.registry.ALID(alid)
	if !ok {
		return model.ErrUnknownID
	}
	if a.Active {
		return nil
	}
	if _, err := e.registry.SetAlarmActive(alid, true, e.now()); err != nil {
		return err
	}
	if e.emit == nil {
		return nil
	}
	return e.emit(item.L(
		item.U1Item(a.Priority|activeBit),
		item.U4Item(alid),
		item.Ascii(text),
	))
}

// ClearAlarm transitions alid to inactive if it was previously active,
// emitting S5F1 with ALCD carrying only the priority (bit 7 clear). A
// clear against an already-inactive alarm is a no-op.
func (e *Engine) ClearAlarm(alid uint32) error {
	a, ok := e.registry.ALID(alid)
	if !ok {
		return model.ErrUnknownID
	}
	if !a.Active {
		return nil
	}
	if _, err := e.registry.SetAlarmActive(alid, false, e.now()); err != nil {
		return err
	}
	if e.emit == nil {
		return nil
	}
	return e.emit(item.L(
		item.U1Item(a.Priority&^activeBit),
		item.U4Item(alid),
		item.Ascii(""),
	))
}

// ActiveSet returns the ALIDs of every currently active alarm, backing
// the AlarmsSet SVID.
func (e *Engine) ActiveSet() []uint32 {
	active := e.registry.ActiveAlarms()
	out := make([]uint32, 0, len(active))
	for _, a := range active {
		out = append(out, a.ID)
	}
	return out
}
