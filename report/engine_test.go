package report

import (
	"testing"

	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/model"
)

func newTestEngine() (*Engine, *model.Registry) {
	reg := model.NewRegistry()
	reg.BootstrapSVIDs([]model.SVID{
		{ID: 720, Name: "ControlMode", DataType: item.FormatU1, Value: item.U1Item(1)},
		{ID: 721, Name: "ControlState", DataType: item.FormatU1, Value: item.U1Item(4)},
	})
	reg.BootstrapCEIDs([]model.CEID{{ID: 200, Name: "ControlStateChange", Enabled: false}})
	return NewEngine(reg), reg
}

func TestDefineLinkEnableTrigger(t *testing.T) {
	e, reg := newTestEngine()

	if ack := e.DefineReport(1000, []uint32{720, 721}); ack != DRACKAccepted {
		t.Fatalf("DefineReport ack = %d", ack)
	}
	if ack := e.DefineReport(1001, nil); ack != DRACKAccepted {
		t.Fatalf("DefineReport stub ack = %d", ack)
	}
	if ack := e.LinkEventReport(200, []uint32{1000}); ack != LRACKAccepted {
		t.Fatalf("LinkEventReport ack = %d", ack)
	}
	if ack := e.EnableEvent(200, true); ack != ERACKAccepted {
		t.Fatalf("EnableEvent ack = %d", ack)
	}

	reg.SetSVID(720, item.U1Item(2))
	ev, ok := e.Trigger(200)
	if !ok {
		t.Fatal("expected trigger to fire")
	}
	if len(ev.Reports) != 1 || len(ev.Reports[0].Items) != 2 {
		t.Fatalf("unexpected event report: %+v", ev)
	}
}

func TestDefineReportUnknownVID(t *testing.T) {
	e, _ := newTestEngine()
	if ack := e.DefineReport(1000, []uint32{999}); ack != DRACKUnknownVID {
		t.Fatalf("ack = %d, want DRACKUnknownVID", ack)
	}
}

func TestDefineReportDeleteWhileLinkedRejected(t *testing.T) {
	e, _ := newTestEngine()
	e.DefineReport(1000, []uint32{720})
	e.LinkEventReport(200, []uint32{1000})
	if ack := e.DefineReport(1000, nil); ack != DRACKRptidStillLinked {
		t.Fatalf("ack = %d, want DRACKRptidStillLinked", ack)
	}
}

func TestLinkEventReportUnknownRPT(t *testing.T) {
	e, _ := newTestEngine()
	if ack := e.LinkEventReport(200, []uint32{9999}); ack != LRACKUnknownRPT {
		t.Fatalf("ack = %d, want LRACKUnknownRPT", ack)
	}
}

func TestEnableDisableTriggerRoundTrip(t *testing.T) {
	e, _ := newTestEngine()
	e.DefineReport(1000, []uint32{720})
	e.LinkEventReport(200, []uint32{1000})

	e.EnableEvent(200, true)
	if _, ok := e.Trigger(200); !ok {
		t.Fatal("expected trigger to fire while enabled")
	}
	e.EnableEvent(200, false)
	if _, ok := e.Trigger(200); ok {
		t.Fatal("expected no trigger while disabled")
	}
}
