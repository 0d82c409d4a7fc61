package hsms

import "time"

// resettableTimer wraps time.Timer with atomic-free reset semantics
// suitable for a single-goroutine select loop: Stop drains a pending
// fire before Reset rearms it, so a stale tick never leaks into the
// next state.
type resettableTimer struct {
	t       *time.Timer
	running bool
}

func newResettableTimer() *resettableTimer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return &resettableTimer{t: t}
}

func (r *resettableTimer) C() <-chan time.Time { return r.t.C }

// Reset arms the timer to fire after d, cancelling any previous arm.
func (r *resettableTimer) Reset(d time.Duration) {
	r.Stop()
	r.t.Reset(d)
	r.running = true
}

// Stop disarms the timer. Safe to call when already stopped.
func (r *resettableTimer) Stop() {
	if !r.running {
		return
	}
	if !r.t.Stop() {
		select {
		case <-r.t.C:
		default:
		}
	}
	r.running = false
}
