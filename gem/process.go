// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package gem

import (
	"fmt"
	"sync"
)

// ProcessState is one state of the dicing-tool workflow lattice:
// Init -> Idle -> Setup -> Ready -> Executing ->
// {Paused -> Executing | Completing -> Completed | Aborting -> Aborted} -> Idle (via Reset).
type ProcessState int

const (
	Init ProcessState = iota
	Idle
	Setup
	Ready
	Executing
	Paused
	Completing
	Aborting
	Completed
	Aborted
)

func (s ProcessState) String() string {
	switch s {
	case Init:
		return "Init"
	case Idle:
		return "Idle"
	case Setup:
		return "Setup"
	case Ready:
		return "Ready"
	case Executing:
		return "Executing"
	case Paused:
		return "Paused"
	case Completing:
		return "Completing"
	case Aborting:
		return "Aborting"
	case Completed:
		return "Completed"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("ProcessState(%d)", int(s))
	}
}

func (s ProcessState) isTerminal() bool { return s == Completed || s == Aborted }

// Process drives the process-state lattice for one device. It is safe
// for concurrent use.
type Process struct {
	mu    sync.Mutex
	state ProcessState
}

// NewProcess constructs a Process starting at Init.
func NewProcess() *Process { return &Process{state: Init} }

// State returns the current process state.
func (p *Process) State() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// BootComplete transitions Init -> Idle, once at process start.
func (p *Process) BootComplete() error { return p.advance(Init, Idle) }

// BeginSetup transitions Idle -> Setup.
func (p *Process) BeginSetup() error { return p.advance(Idle, Setup) }

// SetupComplete transitions Setup -> Ready.
func (p *Process) SetupComplete() error { return p.advance(Setup, Ready) }

// Start transitions Ready -> Executing. Per spec.md §4.5, the trigger
// additionally requires IsRemoteEnabled && phase == Initialized; the
// caller evaluates both and passes the combined result since Process
// has no visibility into Control or Gate.
func (p *Process) Start(remoteAndInitialized bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Ready {
		return ErrInvalidTransition
	}
	if !remoteAndInitialized {
		return ErrInvalidTransition
	}
	p.state = Executing
	return nil
}

// Pause transitions Executing -> Paused; valid only in Executing.
func (p *Process) Pause() error { return p.advance(Executing, Paused) }

// Resume transitions Paused -> Executing.
func (p *Process) Resume() error { return p.advance(Paused, Executing) }

// Complete transitions Executing -> Completing, beginning the normal
// end-of-process sequence.
func (p *Process) Complete() error { return p.advance(Executing, Completing) }

// FinishComplete transitions Completing -> Completed.
func (p *Process) FinishComplete() error { return p.advance(Completing, Completed) }

// Abort transitions any non-terminal state to Aborting. The caller is
// responsible for finishing cleanup and calling FinishAbort within the
// configured bounded cleanup window.
func (p *Process) Abort() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.isTerminal() {
		return ErrInvalidTransition
	}
	p.state = Aborting
	return nil
}

// FinishAbort transitions Aborting -> Aborted.
func (p *Process) FinishAbort() error { return p.advance(Aborting, Aborted) }

// Reset transitions a terminal state (Completed or Aborted) back to
// Idle, ready for the next run.
func (p *Process) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.isTerminal() {
		return ErrInvalidTransition
	}
	p.state = Idle
	return nil
}

func (p *Process) advance(from, to ProcessState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != from {
		return ErrInvalidTransition
	}
	p.state = to
	return nil
}
