package message

import (
	"context"
	"testing"
	"time"

	"github.com/aimfab/gem/alarm"
	"github.com/aimfab/gem/gem"
	"github.com/aimfab/gem/hsms"
	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/model"
	"github.com/aimfab/gem/report"
)

type loopbackSender struct {
	d *Dispatcher
}

func (l *loopbackSender) Send(f hsms.Frame) error {
	go l.d.OnFrame(f)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *gem.Gate) {
	t.Helper()
	reg := model.NewRegistry()
	reg.BootstrapSVIDs([]model.SVID{{ID: 1, Name: "Foo", Value: item.U4Item(7)}})
	rep := report.NewEngine(reg)
	al := alarm.NewEngine(reg, func(item.Item) error { return nil })
	g := gem.NewGate(gem.DefaultLiturgy())
	g.ToHsmsConnected()
	g.ToHsmsSelected()

	h := NewHandle(reg, rep, al, g, gem.NewControl(gem.OnlineRemote), gem.NewProcess())
	h.MDLN = "DICER-1"
	h.SoftRev = "1.0"

	d := NewDispatcher(nil, g, h, 0, 0, 200*time.Millisecond)
	d.sender = &loopbackSender{d: d}
	return d, g
}

func TestS1F1RoundTrip(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reply, err := d.SendPrimary(ctx, 1, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Stream != 1 || reply.Function != 2 {
		t.Fatalf("reply = %v", reply)
	}
	if len(reply.Body.List) != 2 || reply.Body.List[0].A != "DICER-1" {
		t.Fatalf("unexpected S1F2 body: %+v", reply.Body)
	}
}

func TestT3TimeoutWhenNoHandler(t *testing.T) {
	d, g := newTestDispatcher(t)
	// S99F99 needs Online to pass the gate; below that SendPrimary
	// refuses it before sending.
	g.ToCommunicating()
	g.ToOnline()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := d.SendPrimary(ctx, 99, 99, nil)
	if err != ErrTransactionTimeout {
		t.Fatalf("err = %v, want ErrTransactionTimeout", err)
	}
}

func TestPhaseGateRejectsBeforeCommunicating(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// S2F33 requires Online; the test gate only reached HsmsSelected.
	_, err := d.SendPrimary(ctx, 2, 33, itemPtr(item.L(item.U4Item(1), item.L())))
	if err != gem.ErrPhaseViolation {
		t.Fatalf("err = %v, want ErrPhaseViolation", err)
	}
}

type blackholeSender struct{}

func (blackholeSender) Send(hsms.Frame) error { return nil }

func TestCancelAllResolvesPendingSendPrimary(t *testing.T) {
	d, g := newTestDispatcher(t)
	g.ToCommunicating()
	g.ToOnline()
	d.sender = blackholeSender{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		_, err := d.SendPrimary(ctx, 2, 33, itemPtr(item.L(item.U4Item(1), item.L())))
		errc <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !d.HasPending() {
		if time.Now().After(deadline) {
			t.Fatal("SendPrimary did not register a pending transaction in time")
		}
		time.Sleep(time.Millisecond)
	}

	d.CancelAll(ErrConnectionLost)

	select {
	case err := <-errc:
		if err != ErrConnectionLost {
			t.Fatalf("err = %v, want ErrConnectionLost", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SendPrimary did not return after CancelAll")
	}

	if d.HasPending() {
		t.Fatal("HasPending still true after CancelAll")
	}
}

func TestS2F23TraceInitializeMarksLiturgyStep(t *testing.T) {
	d, g := newTestDispatcher(t)
	g.ToCommunicating()
	g.ToOnline()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	body := item.L(item.U4Item(1), item.Ascii("1"), item.U4Item(0), item.U4Item(0), item.L())
	reply, err := d.SendPrimary(ctx, 2, 23, &body)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Function != 24 {
		t.Fatalf("reply function = %d", reply.Function)
	}
	if ack, _ := uint32Of(*reply.Body); ack != 0 {
		t.Fatalf("TIAACK = %d", ack)
	}
}

func TestS2F31DateTimeSetAdjustsClock(t *testing.T) {
	d, g := newTestDispatcher(t)
	g.ToCommunicating()
	g.ToOnline()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	body := item.Ascii("20260730120000")
	reply, err := d.SendPrimary(ctx, 2, 31, &body)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Function != 32 {
		t.Fatalf("reply function = %d", reply.Function)
	}
	if ack, _ := uint32Of(*reply.Body); ack != 0 {
		t.Fatalf("TIACK = %d", ack)
	}
	if got := d.handle.Now(); got.Year() != 2026 || got.Month() != time.July || got.Day() != 30 {
		t.Fatalf("Now() = %v, want 2026-07-30", got)
	}
}

func TestS2F31DateTimeSetRejectsMalformedTimestamp(t *testing.T) {
	d, g := newTestDispatcher(t)
	g.ToCommunicating()
	g.ToOnline()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	body := item.Ascii("not-a-timestamp")
	reply, err := d.SendPrimary(ctx, 2, 31, &body)
	if err != nil {
		t.Fatal(err)
	}
	if ack, _ := uint32Of(*reply.Body); ack != 1 {
		t.Fatalf("TIACK = %d, want 1", ack)
	}
}

func TestS2F33DefineReportViaDispatch(t *testing.T) {
	d, g := newTestDispatcher(t)
	g.ToCommunicating()
	g.ToOnline()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	body := item.L(item.U4Item(1), item.L(item.L(item.U4Item(1000), item.L(item.U4Item(1)))))
	reply, err := d.SendPrimary(ctx, 2, 33, &body)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Function != 34 {
		t.Fatalf("reply function = %d", reply.Function)
	}
	if ack, _ := uint32Of(*reply.Body); ack != 0 {
		t.Fatalf("DRACK = %d", ack)
	}
}
