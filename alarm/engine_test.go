package alarm

import (
	"testing"

	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/model"
)

func TestSetClearIdempotentEdges(t *testing.T) {
	reg := model.NewRegistry()
	reg.BootstrapALIDs([]model.ALID{{ID: 12001, Name: "DoorOpen", Priority: 1}})

	var emitted []item.Item
	e := NewEngine(reg, func(p item.Item) error {
		emitted = append(emitted, p)
		return nil
	})

	if err := e.SetAlarm(12001, "Door open"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetAlarm(12001, "Door open"); err != nil {
		t.Fatal(err)
	}
	if len(emitted) != 1 {
		t.Fatalf("expected exactly one S5F1 on set edge, got %d", len(emitted))
	}

	if err := e.ClearAlarm(12001); err != nil {
		t.Fatal(err)
	}
	if err := e.ClearAlarm(12001); err != nil {
		t.Fatal(err)
	}
	if len(emitted) != 2 {
		t.Fatalf("expected exactly one additional S5F1 on clear edge, got %d total", len(emitted))
	}

	a, _ := reg.ALID(12001)
	if a.Active {
		t.Fatal("alarm should be inactive after clear")
	}
}

func TestActiveSetInvariant(t *testing.T) {
	reg := model.NewRegistry()
	reg.BootstrapALIDs([]model.ALID{
		{ID: 1, Priority: 1},
		{ID: 2, Priority: 2},
	})
	e := NewEngine(reg, func(item.Item) error { return nil })
	e.SetAlarm(1, "a")
	if got := e.ActiveSet(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("ActiveSet = %v", got)
	}
	e.SetAlarm(2, "b")
	if got := e.ActiveSet(); len(got) != 2 {
		t.Fatalf("ActiveSet = %v", got)
	}
}
