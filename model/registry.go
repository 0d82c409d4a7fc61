// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package model

import (
	"sync"
	"time"

	"github.com/aimfab/gem/item"
)

// Registry is the single process-wide typed registry of SVIDs, ECIDs,
// ALIDs and CEIDs for one device. Reads are O(1) lookups returning a
// copy of the current value; writes are serialized per map via a
// single mutex, matching spec.md §4.6's "single mutex per map, OR a
// per-entity lock" allowance. Registry is safe for concurrent use.
type Registry struct {
	svidMu sync.RWMutex
	svids  map[uint32]SVID

	ecidMu sync.RWMutex
	ecids  map[uint32]ECID

	alidMu sync.RWMutex
	alids  map[uint32]ALID

	ceidMu sync.RWMutex
	ceids  map[uint32]CEID

	subMu sync.Mutex
	subs  []Subscriber
}

// NewRegistry constructs an empty Registry. Use the Bootstrap* methods
// to load the configured SVID/ECID/ALID/CEID tables.
func NewRegistry() *Registry {
	return &Registry{
		svids: map[uint32]SVID{},
		ecids: map[uint32]ECID{},
		alids: map[uint32]ALID{},
		ceids: map[uint32]CEID{},
	}
}

// Subscribe registers fn to be called with every committed SVID/ECID
// write. fn runs synchronously on the writer's goroutine and must not
// block.
func (r *Registry) Subscribe(fn Subscriber) {
	r.subMu.Lock()
	r.subs = append(r.subs, fn)
	r.subMu.Unlock()
}

func (r *Registry) publish(ev ChangeEvent) {
	r.subMu.Lock()
	subs := append([]Subscriber(nil), r.subs...)
	r.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// BootstrapSVIDs loads the configured SVID table. device.New calls it
// once at device start; nothing reloads or re-validates the table at a
// later Communicating transition.
func (r *Registry) BootstrapSVIDs(svids []SVID) {
	r.svidMu.Lock()
	defer r.svidMu.Unlock()
	for _, s := range svids {
		r.svids[s.ID] = s
	}
}

// BootstrapECIDs loads the configured ECID table.
func (r *Registry) BootstrapECIDs(ecids []ECID) {
	r.ecidMu.Lock()
	defer r.ecidMu.Unlock()
	for _, e := range ecids {
		r.ecids[e.ID] = e
	}
}

// BootstrapALIDs loads the configured ALID table.
func (r *Registry) BootstrapALIDs(alids []ALID) {
	r.alidMu.Lock()
	defer r.alidMu.Unlock()
	for _, a := range alids {
		r.alids[a.ID] = a
	}
}

// BootstrapCEIDs loads the configured CEID table.
func (r *Registry) BootstrapCEIDs(ceids []CEID) {
	r.ceidMu.Lock()
	defer r.ceidMu.Unlock()
	for _, c := range ceids {
		r.ceids[c.ID] = c
	}
}

// SVID returns a copy of the named status variable.
func (r *Registry) SVID(id uint32) (SVID, bool) {
	r.svidMu.RLock()
	defer r.svidMu.RUnlock()
	s, ok := r.svids[id]
	return s, ok
}

// AllSVIDs returns a copy of every registered SVID, for S1F3/S1F11-
// style "namelist" replies.
func (r *Registry) AllSVIDs() []SVID {
	r.svidMu.RLock()
	defer r.svidMu.RUnlock()
	out := make([]SVID, 0, len(r.svids))
	for _, s := range r.svids {
		out = append(out, s)
	}
	return out
}

// SetSVID commits a new value for a writable SVID and notifies
// subscribers. Returns ErrUnknownID or ErrReadOnly.
func (r *Registry) SetSVID(id uint32, v item.Item) error {
	r.svidMu.Lock()
	s, ok := r.svids[id]
	if !ok {
		r.svidMu.Unlock()
		return ErrUnknownID
	}
	if s.ReadOnly {
		r.svidMu.Unlock()
		return ErrReadOnly
	}
	old := s.Value
	s.Value = v
	r.svids[id] = s
	r.svidMu.Unlock()
	r.publish(ChangeEvent{Kind: KindSVID, ID: id, Old: old, New: v})
	return nil
}

// ECID returns a copy of the named equipment constant.
func (r *Registry) ECID(id uint32) (ECID, bool) {
	r.ecidMu.RLock()
	defer r.ecidMu.RUnlock()
	e, ok := r.ecids[id]
	return e, ok
}

// AllECIDs returns a copy of every registered ECID.
func (r *Registry) AllECIDs() []ECID {
	r.ecidMu.RLock()
	defer r.ecidMu.RUnlock()
	out := make([]ECID, 0, len(r.ecids))
	for _, e := range r.ecids {
		out = append(out, e)
	}
	return out
}

// SetECID commits a new value for an equipment constant from S2F15,
// enforcing [Min, Max]. Returns ErrUnknownID or ErrOutOfRange.
func (r *Registry) SetECID(id uint32, v item.Item) error {
	r.ecidMu.Lock()
	e, ok := r.ecids[id]
	if !ok {
		r.ecidMu.Unlock()
		return ErrUnknownID
	}
	if !withinRange(v, e.Min, e.Max) {
		r.ecidMu.Unlock()
		return ErrOutOfRange
	}
	old := e.Value
	e.Value = v
	r.ecids[id] = e
	r.ecidMu.Unlock()
	r.publish(ChangeEvent{Kind: KindECID, ID: id, Old: old, New: v})
	return nil
}

// ALID returns a copy of one alarm's current definition and state.
func (r *Registry) ALID(id uint32) (ALID, bool) {
	r.alidMu.RLock()
	defer r.alidMu.RUnlock()
	a, ok := r.alids[id]
	return a, ok
}

// SetAlarmActive commits the active flag and LastSetAt for one alarm.
// It is the model-level primitive the alarm engine calls; the
// idempotency and S5F1-emission policy live in package alarm.
func (r *Registry) SetAlarmActive(id uint32, active bool, at time.Time) (ALID, error) {
	r.alidMu.Lock()
	defer r.alidMu.Unlock()
	a, ok := r.alids[id]
	if !ok {
		return ALID{}, ErrUnknownID
	}
	a.Active = active
	a.LastSetAt = at
	r.alids[id] = a
	return a, nil
}

// ActiveAlarms returns every alarm currently active, backing the
// AlarmsSet SVID invariant (spec.md §3, §8).
func (r *Registry) ActiveAlarms() []ALID {
	r.alidMu.RLock()
	defer r.alidMu.RUnlock()
	var out []ALID
	for _, a := range r.alids {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

// CEID returns a copy of one collection event's definition and enable
// bit.
func (r *Registry) CEID(id uint32) (CEID, bool) {
	r.ceidMu.RLock()
	defer r.ceidMu.RUnlock()
	c, ok := r.ceids[id]
	return c, ok
}

// AllCEIDs returns a copy of every registered CEID.
func (r *Registry) AllCEIDs() []CEID {
	r.ceidMu.RLock()
	defer r.ceidMu.RUnlock()
	out := make([]CEID, 0, len(r.ceids))
	for _, c := range r.ceids {
		out = append(out, c)
	}
	return out
}

// SetCEIDEnabled commits one CEID's enable bit. Returns ErrUnknownID
// if ceid is not registered.
func (r *Registry) SetCEIDEnabled(id uint32, enabled bool) error {
	r.ceidMu.Lock()
	defer r.ceidMu.Unlock()
	c, ok := r.ceids[id]
	if !ok {
		return ErrUnknownID
	}
	c.Enabled = enabled
	r.ceids[id] = c
	return nil
}

// SetAllCEIDsEnabled implements the bulk form of S2F37 (CEED applies
// to every registered CEID).
func (r *Registry) SetAllCEIDsEnabled(enabled bool) {
	r.ceidMu.Lock()
	defer r.ceidMu.Unlock()
	for id, c := range r.ceids {
		c.Enabled = enabled
		r.ceids[id] = c
	}
}

// withinRange reports whether v falls within [min, max] for the
// numeric item formats SECS-II equipment constants use. Non-numeric
// formats (A, B, L) are always considered in range, since SEMI E30
// bounds are only meaningful for numeric ECIDs.
func withinRange(v, min, max item.Item) bool {
	vf, ok := asFloat(v)
	if !ok {
		return true
	}
	if minf, ok := asFloat(min); ok && vf < minf {
		return false
	}
	if maxf, ok := asFloat(max); ok && vf > maxf {
		return false
	}
	return true
}

func asFloat(it item.Item) (float64, bool) {
	switch it.Fmt {
	case item.FormatI1:
		if len(it.I1) == 1 {
			return float64(it.I1[0]), true
		}
	case item.FormatI2:
		if len(it.I2) == 1 {
			return float64(it.I2[0]), true
		}
	case item.FormatI4:
		if len(it.I4) == 1 {
			return float64(it.I4[0]), true
		}
	case item.FormatI8:
		if len(it.I8) == 1 {
			return float64(it.I8[0]), true
		}
	case item.FormatU1:
		if len(it.U1) == 1 {
			return float64(it.U1[0]), true
		}
	case item.FormatU2:
		if len(it.U2) == 1 {
			return float64(it.U2[0]), true
		}
	case item.FormatU4:
		if len(it.U4) == 1 {
			return float64(it.U4[0]), true
		}
	case item.FormatU8:
		if len(it.U8) == 1 {
			return float64(it.U8[0]), true
		}
	case item.FormatF4:
		if len(it.F4) == 1 {
			return float64(it.F4[0]), true
		}
	case item.FormatF8:
		if len(it.F8) == 1 {
			return float64(it.F8[0]), true
		}
	}
	return 0, false
}
