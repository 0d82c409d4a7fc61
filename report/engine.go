// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package report implements the GEM report/event engine: RPTID
// definitions, CEID event linkage, event-enable bits, and S6F11
// payload construction (spec.md §4.7).
package report

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/model"
	"github.com/rs/xid"
)

// Ack codes for S2F34/S2F36/S2F38, per spec.md §4.7/§6.
const (
	DRACKAccepted          byte = 0
	DRACKDenied            byte = 1 // generic denial
	DRACKInvalidFormat     byte = 2
	DRACKRptidStillLinked  byte = 3
	DRACKUnknownVID        byte = 4
	DRACKInvalidReportDefn byte = 5

	LRACKAccepted    byte = 0
	LRACKDenied      byte = 1
	LRACKInvalidData byte = 2
	LRACKInsufficient byte = 3
	LRACKUnknownCEID byte = 4
	LRACKUnknownRPT  byte = 5

	ERACKAccepted byte = 0
	ERACKDenied   byte = 1
)

// Report is one materialized report instance: [rptid, [items...]] as
// described in spec.md §4.7.
type Report struct {
	RPTID uint32
	Items []item.Item
}

// EventReport is the fully materialized S6F11 payload:
// [dataid, ceid, [reports...]].
type EventReport struct {
	DataID uint32
	CEID   uint32
	Reports []Report
}

// Engine holds report definitions (RPTID -> [VID]) and event linkage
// (CEID -> [RPTID]) for one device, guarded by a single mutex since
// mutation is rare (host reconfiguration) and reads must see coherent
// (definition, linkage, enable-bit) triples, per spec.md §5.
type Engine struct {
	mu       sync.Mutex
	reports  map[uint32][]uint32 // rptid -> ordered vids
	linkage  map[uint32][]uint32 // ceid -> ordered rptids

	registry *model.Registry
	dataID   uint32
}

// NewEngine constructs an empty Engine over registry. The dataid
// sequence is seeded from a fresh xid so a restarted process does not
// reuse dataids a previous process (or another device instance) may
// have already advertised to the host, absent a persisted seed.
func NewEngine(registry *model.Registry) *Engine {
	return &Engine{
		reports:  map[uint32][]uint32{},
		linkage:  map[uint32][]uint32{},
		registry: registry,
		dataID:   seedDataID(),
	}
}

func seedDataID() uint32 {
	id := xid.New()
	b := id.Bytes()
	// Fold the 12-byte xid down to a 32-bit seed; any of its bytes
	// changing between processes is enough to avoid a cross-restart
	// collision in the advertised dataid stream.
	var seed uint32
	for i, x := range b {
		seed ^= uint32(x) << (8 * uint(i%4))
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

// Reset wipes all report definitions and all linkages, as S2F33 with
// RPTID=0 and an empty vid list does.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports = map[uint32][]uint32{}
	e.linkage = map[uint32][]uint32{}
}

// DefineReport implements S2F33's per-report semantics and returns the
// DRACK to send in S2F34.
func (e *Engine) DefineReport(rptid uint32, vids []uint32) byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rptid == 0 && len(vids) == 0 {
		e.reports = map[uint32][]uint32{}
		e.linkage = map[uint32][]uint32{}
		return DRACKAccepted
	}
	if len(vids) == 0 {
		if e.isLinkedLocked(rptid) {
			return DRACKRptidStillLinked
		}
		delete(e.reports, rptid)
		return DRACKAccepted
	}
	for _, vid := range vids {
		if _, ok := e.registry.SVID(vid); !ok {
			if _, ok := e.registry.ECID(vid); !ok {
				return DRACKUnknownVID
			}
		}
	}
	e.reports[rptid] = append([]uint32(nil), vids...)
	return DRACKAccepted
}

func (e *Engine) isLinkedLocked(rptid uint32) bool {
	for _, rptids := range e.linkage {
		for _, id := range rptids {
			if id == rptid {
				return true
			}
		}
	}
	return false
}

// LinkEventReport implements S2F35 and returns the LRACK to send in
// S2F36.
func (e *Engine) LinkEventReport(ceid uint32, rptids []uint32) byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.registry.CEID(ceid); !ok {
		return LRACKUnknownCEID
	}
	if len(rptids) == 0 {
		delete(e.linkage, ceid)
		return LRACKAccepted
	}
	for _, rptid := range rptids {
		if _, ok := e.reports[rptid]; !ok {
			return LRACKUnknownRPT
		}
	}
	e.linkage[ceid] = append([]uint32(nil), rptids...)
	return LRACKAccepted
}

// EnableEvent implements the single-CEID form of S2F37 and returns the
// ERACK to send in S2F38.
func (e *Engine) EnableEvent(ceid uint32, enable bool) byte {
	if err := e.registry.SetCEIDEnabled(ceid, enable); err != nil {
		return ERACKDenied
	}
	return ERACKAccepted
}

// EnableAllEvents implements the bulk form of S2F37 (CEED applies to
// every registered CEID).
func (e *Engine) EnableAllEvents(enable bool) byte {
	e.registry.SetAllCEIDsEnabled(enable)
	return ERACKAccepted
}

// Trigger materializes an S6F11 payload for ceid if it is enabled and
// linked; returns (nil, false) otherwise (a no-op per spec.md §4.7).
// The referenced VIDs are read under the engine's lock so the whole
// payload reflects one atomic snapshot, per spec.md §5(b).
func (e *Engine) Trigger(ceid uint32) (*EventReport, bool) {
	c, ok := e.registry.CEID(ceid)
	if !ok || !c.Enabled {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	rptids, ok := e.linkage[ceid]
	if !ok || len(rptids) == 0 {
		return nil, false
	}

	reports := make([]Report, 0, len(rptids))
	for _, rptid := range rptids {
		vids := e.reports[rptid]
		items := make([]item.Item, 0, len(vids))
		for _, vid := range vids {
			items = append(items, e.readVID(vid))
		}
		reports = append(reports, Report{RPTID: rptid, Items: items})
	}

	return &EventReport{
		DataID:  atomic.AddUint32(&e.dataID, 1),
		CEID:    ceid,
		Reports: reports,
	}, true
}

func (e *Engine) readVID(vid uint32) item.Item {
	if s, ok := e.registry.SVID(vid); ok {
		return s.Value
	}
	if ec, ok := e.registry.ECID(vid); ok {
		return ec.Value
	}
	return item.Item{}
}

// Payload builds the S6F11 root item: [dataid, ceid, [[rptid, [items]]...]].
func (ev *EventReport) Payload() item.Item {
	reportItems := make([]item.Item, 0, len(ev.Reports))
	for _, r := range ev.Reports {
		reportItems = append(reportItems, item.L(item.U4Item(r.RPTID), item.L(r.Items...)))
	}
	return item.L(item.U4Item(ev.DataID), item.U4Item(ev.CEID), item.L(reportItems...))
}

// DefinedReportIDs returns the currently defined RPTIDs, sorted, for
// diagnostics and tests.
func (e *Engine) DefinedReportIDs() []uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]uint32, 0, len(e.reports))
	for id := range e.reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
