package model

import (
	"testing"
	"time"

	"github.com/aimfab/gem/item"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.BootstrapSVIDs([]SVID{
		{ID: 720, Name: "ControlMode", DataType: item.FormatU1, Value: item.U1Item(1)},
		{ID: 721, Name: "ControlState", DataType: item.FormatU1, Value: item.U1Item(4), ReadOnly: true},
	})
	r.BootstrapECIDs([]ECID{
		{ID: 1, Name: "BladeSpeedLimit", DataType: item.FormatU4,
			Value: item.U4Item(1000), Min: item.U4Item(0), Max: item.U4Item(5000)},
	})
	r.BootstrapALIDs([]ALID{{ID: 12001, Name: "DoorOpen", Priority: 1}})
	r.BootstrapCEIDs([]CEID{{ID: 200, Name: "ControlStateChange", Enabled: true}})
	return r
}

func TestSetSVIDReadOnlyRejected(t *testing.T) {
	r := newTestRegistry()
	if err := r.SetSVID(721, item.U1Item(9)); err != ErrReadOnly {
		t.Fatalf("got %v, want ErrReadOnly", err)
	}
	if err := r.SetSVID(999, item.U1Item(1)); err != ErrUnknownID {
		t.Fatalf("got %v, want ErrUnknownID", err)
	}
}

func TestSetSVIDNotifiesSubscribers(t *testing.T) {
	r := newTestRegistry()
	var got ChangeEvent
	r.Subscribe(func(ev ChangeEvent) { got = ev })
	if err := r.SetSVID(720, item.U1Item(2)); err != nil {
		t.Fatal(err)
	}
	if got.ID != 720 || got.Kind != KindSVID {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestSetECIDRangeEnforced(t *testing.T) {
	r := newTestRegistry()
	if err := r.SetECID(1, item.U4Item(6000)); err != ErrOutOfRange {
		t.Fatalf("got %v, want ErrOutOfRange", err)
	}
	if err := r.SetECID(1, item.U4Item(2500)); err != nil {
		t.Fatal(err)
	}
}

func TestActiveAlarmsInvariant(t *testing.T) {
	r := newTestRegistry()
	if len(r.ActiveAlarms()) != 0 {
		t.Fatal("no alarms should be active initially")
	}
	if _, err := r.SetAlarmActive(12001, true, time.Now()); err != nil {
		t.Fatal(err)
	}
	active := r.ActiveAlarms()
	if len(active) != 1 || active[0].ID != 12001 {
		t.Fatalf("unexpected active set: %+v", active)
	}
}
