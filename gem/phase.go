// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package gem implements the SEMI E30 communication/control/process
// state model layered on top of an HSMS session: the six-phase
// communication gate, the control-state lattice, and the
// dicing-tool process-state lattice.
package gem

import (
	"fmt"
	"sync"
)

// Phase is one of the six GEM communication phases. Forward
// transitions are strictly sequential; any cause that drops the TCP
// link resets Phase to NotConnected from any phase.
type Phase int

const (
	NotConnected Phase = iota
	HsmsConnected
	HsmsSelected
	Communicating
	Online
	Initialized
)

func (p Phase) String() string {
	switch p {
	case NotConnected:
		return "NotConnected"
	case HsmsConnected:
		return "HsmsConnected"
	case HsmsSelected:
		return "HsmsSelected"
	case Communicating:
		return "Communicating"
	case Online:
		return "Online"
	case Initialized:
		return "Initialized"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Liturgy tracks the configurable subset of the Online-initialization
// liturgy that gates Online -> Initialized (spec.md §4.4).
type Liturgy struct {
	RequireReports    bool
	RequireLinks      bool
	RequireEventEnable bool
	RequireTrace      bool
	RequireClockSet   bool

	reportsDefined bool
	linksLinked    bool
	eventEnabled   bool
	traceSetup     bool
	clockSet       bool
}

// DefaultLiturgy requires a non-empty S2F33, a non-empty S2F35 and at
// least one S2F37, matching the minimum liturgy named in spec.md §4.4.
func DefaultLiturgy() Liturgy {
	return Liturgy{RequireReports: true, RequireLinks: true, RequireEventEnable: true}
}

func (l *Liturgy) markReports() { l.reportsDefined = true }
func (l *Liturgy) markLinks()   { l.linksLinked = true }
func (l *Liturgy) markEnable()  { l.eventEnabled = true }
func (l *Liturgy) markTrace()   { l.traceSetup = true }
func (l *Liturgy) markClock()   { l.clockSet = true }

func (l *Liturgy) satisfied() bool {
	if l.RequireReports && !l.reportsDefined {
		return false
	}
	if l.RequireLinks && !l.linksLinked {
		return false
	}
	if l.RequireEventEnable && !l.eventEnabled {
		return false
	}
	if l.RequireTrace && !l.traceSetup {
		return false
	}
	if l.RequireClockSet && !l.clockSet {
		return false
	}
	return true
}

func (l *Liturgy) reset() { *l = Liturgy{RequireReports: l.RequireReports, RequireLinks: l.RequireLinks, RequireEventEnable: l.RequireEventEnable, RequireTrace: l.RequireTrace, RequireClockSet: l.RequireClockSet} }

// Gate owns the phase variable for one device and vetoes inbound SECS
// messages whose stream/function is not permitted in the current
// phase. Gate is safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	phase   Phase
	liturgy Liturgy
}

// NewGate constructs a Gate starting at NotConnected.
func NewGate(liturgy Liturgy) *Gate {
	return &Gate{phase: NotConnected, liturgy: liturgy}
}

// Phase returns the current phase.
func (g *Gate) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// ToHsmsConnected advances NotConnected -> HsmsConnected.
func (g *Gate) ToHsmsConnected() error { return g.advance(NotConnected, HsmsConnected) }

// ToHsmsSelected advances HsmsConnected -> HsmsSelected.
func (g *Gate) ToHsmsSelected() error { return g.advance(HsmsConnected, HsmsSelected) }

// ToCommunicating advances HsmsSelected -> Communicating, e.g. after a
// successful S1F13/S1F14 exchange with COMMACK=0.
func (g *Gate) ToCommunicating() error { return g.advance(HsmsSelected, Communicating) }

// ToOnline advances Communicating -> Online, e.g. after S1F17/S1F18
// with ONLACK in {0, 2}.
func (g *Gate) ToOnline() error { return g.advance(Communicating, Online) }

// ToInitialized advances Online -> Initialized, but only once the
// configured liturgy subset has been satisfied.
func (g *Gate) ToInitialized() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != Online {
		return ErrInvalidTransition
	}
	if !g.liturgy.satisfied() {
		return ErrLiturgyIncomplete
	}
	g.phase = Initialized
	return nil
}

func (g *Gate) advance(from, to Phase) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != from {
		return ErrInvalidTransition
	}
	g.phase = to
	return nil
}

// Drop resets the phase to NotConnected from any phase, matching the
// "any cause that drops the TCP link" rule. It is idempotent.
func (g *Gate) Drop() {
	g.mu.Lock()
	g.phase = NotConnected
	g.liturgy.reset()
	g.mu.Unlock()
}

// MarkReportsDefined, MarkLinksLinked, MarkEventEnabled, MarkTraceSetup
// and MarkClockSet record completion of one liturgy step toward
// Online -> Initialized.
func (g *Gate) MarkReportsDefined() { g.mu.Lock(); g.liturgy.markReports(); g.mu.Unlock() }
func (g *Gate) MarkLinksLinked()    { g.mu.Lock(); g.liturgy.markLinks(); g.mu.Unlock() }
func (g *Gate) MarkEventEnabled()   { g.mu.Lock(); g.liturgy.markEnable(); g.mu.Unlock() }
func (g *Gate) MarkTraceSetup()     { g.mu.Lock(); g.liturgy.markTrace(); g.mu.Unlock() }
func (g *Gate) MarkClockSet()       { g.mu.Lock(); g.liturgy.markClock(); g.mu.Unlock() }

// requiredPhase returns the minimum phase required to admit the given
// (stream, function), per spec.md §4.4's admission matrix. Streams not
// named explicitly default conservatively to Online, except S5 (alarm
// reporting), which the matrix requires only Communicating.
func requiredPhase(stream, function byte) Phase {
	switch stream {
	case 1:
		switch function {
		case 1, 13, 14, 15, 16:
			return HsmsSelected
		case 17, 18:
			return Communicating
		default:
			return HsmsSelected
		}
	case 2:
		switch function {
		case 33, 34, 35, 36, 37, 38, 23, 24:
			return Online
		default:
			return Communicating
		}
	case 5:
		return Communicating
	case 6, 7, 10:
		return Online
	default:
		return Online
	}
}

// Admit reports whether the given (stream, function) is permitted in
// the current phase. See requiredPhase for the admission matrix.
func (g *Gate) Admit(stream, function byte) error {
	g.mu.Lock()
	phase := g.phase
	g.mu.Unlock()
	if phase < requiredPhase(stream, function) {
		return ErrPhaseViolation
	}
	return nil
}
