package device

import (
	"testing"

	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/model"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	cfg := DefaultConfig("127.0.0.1:0")
	seed := Seed{
		SVIDs: []model.SVID{{ID: 1, Name: "Foo", Value: item.U4Item(1)}},
		ALIDs: []model.ALID{{ID: 500, Name: "ChuckVacLost", Priority: 2}},
		CEIDs: []model.CEID{{ID: 200, Name: "ControlStateChange"}},
	}
	d, err := New(cfg, seed, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNewDeviceWiresSubsystems(t *testing.T) {
	d := newTestDevice(t)
	if d.Registry == nil || d.Reports == nil || d.Alarms == nil || d.Gate == nil || d.Control == nil || d.Process == nil {
		t.Fatal("expected every subsystem wired")
	}
	if d.Dispatcher() == nil {
		t.Fatal("expected dispatcher wired")
	}
}

func TestSetAlarmWithoutConnectionDoesNotPanic(t *testing.T) {
	d := newTestDevice(t)
	// No connection is established; the alarm engine's Emitter calls
	// dispatcher.SendEvent, which the phase gate (still NotConnected)
	// refuses with gem.ErrPhaseViolation; that is logged, not panicked
	// or returned.
	if err := d.SetAlarm(500, "chuck vacuum lost"); err != nil {
		t.Fatalf("SetAlarm returned error: %v", err)
	}
	if len(d.Alarms.ActiveSet()) != 1 {
		t.Fatal("expected alarm marked active regardless of transmission outcome")
	}
	if err := d.ClearAlarm(500); err != nil {
		t.Fatalf("ClearAlarm returned error: %v", err)
	}
}
