package gem

import "testing"

func TestGateSequentialAdvance(t *testing.T) {
	g := NewGate(DefaultLiturgy())
	if err := g.ToHsmsConnected(); err != nil {
		t.Fatal(err)
	}
	if err := g.ToCommunicating(); err != ErrInvalidTransition {
		t.Fatalf("skipping HsmsSelected should fail, got %v", err)
	}
	if err := g.ToHsmsSelected(); err != nil {
		t.Fatal(err)
	}
	if err := g.ToCommunicating(); err != nil {
		t.Fatal(err)
	}
	if err := g.ToOnline(); err != nil {
		t.Fatal(err)
	}
	if err := g.ToInitialized(); err != ErrLiturgyIncomplete {
		t.Fatalf("expected ErrLiturgyIncomplete, got %v", err)
	}
	g.MarkReportsDefined()
	g.MarkLinksLinked()
	g.MarkEventEnabled()
	if err := g.ToInitialized(); err != nil {
		t.Fatal(err)
	}
	if g.Phase() != Initialized {
		t.Fatalf("phase = %v", g.Phase())
	}
}

func TestGateDropCascades(t *testing.T) {
	g := NewGate(DefaultLiturgy())
	g.ToHsmsConnected()
	g.ToHsmsSelected()
	g.ToCommunicating()
	g.Drop()
	if g.Phase() != NotConnected {
		t.Fatalf("phase after drop = %v", g.Phase())
	}
}

func TestAdmissionMatrix(t *testing.T) {
	g := NewGate(DefaultLiturgy())
	if err := g.Admit(1, 1); err == nil {
		t.Fatal("S1F1 should be rejected before HsmsSelected")
	}
	g.ToHsmsConnected()
	g.ToHsmsSelected()
	if err := g.Admit(1, 1); err != nil {
		t.Fatalf("S1F1 should be admitted once HsmsSelected: %v", err)
	}
	if err := g.Admit(2, 33); err == nil {
		t.Fatal("S2F33 should require Online")
	}
}

func TestControlLattice(t *testing.T) {
	c := NewControl(OnlineRemote)
	if ack := c.RequestOnline(); ack != 0 {
		t.Fatalf("RequestOnline ack = %d", ack)
	}
	if c.State() != OnlineRemote {
		t.Fatalf("state = %v", c.State())
	}
	if err := c.SwitchLocal(); err != nil {
		t.Fatal(err)
	}
	if c.State() != OnlineLocal {
		t.Fatalf("state = %v", c.State())
	}
	if ack := c.RequestOffline(false); ack != 0 {
		t.Fatalf("RequestOffline ack = %d", ack)
	}
	if c.State() != EquipmentOffline {
		t.Fatalf("state = %v", c.State())
	}
}

func TestControlSubscribeFiresOnModeSwitch(t *testing.T) {
	c := NewControl(OnlineRemote)
	c.RequestOnline()

	var got []ModeChange
	c.Subscribe(func(ch ModeChange) { got = append(got, ch) })

	if err := c.SwitchLocal(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].From != OnlineRemote || got[0].To != OnlineLocal {
		t.Fatalf("subscriber saw %+v", got)
	}

	// Switching to the state already held must not re-fire.
	if err := c.SwitchLocal(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("subscriber fired on a no-op switch: %+v", got)
	}
}

func TestProcessLattice(t *testing.T) {
	p := NewProcess()
	mustNil := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	mustNil(p.BootComplete())
	mustNil(p.BeginSetup())
	mustNil(p.SetupComplete())
	if err := p.Start(false); err != ErrInvalidTransition {
		t.Fatalf("Start without remote+initialized should fail, got %v", err)
	}
	mustNil(p.Start(true))
	mustNil(p.Pause())
	mustNil(p.Resume())
	mustNil(p.Complete())
	mustNil(p.FinishComplete())
	mustNil(p.Reset())
	if p.State() != Idle {
		t.Fatalf("state after reset = %v", p.State())
	}
}

func TestProcessAbortFromAnyNonTerminalState(t *testing.T) {
	p := NewProcess()
	p.BootComplete()
	p.BeginSetup()
	if err := p.Abort(); err != nil {
		t.Fatal(err)
	}
	if p.State() != Aborting {
		t.Fatalf("state = %v", p.State())
	}
	if err := p.FinishAbort(); err != nil {
		t.Fatal(err)
	}
	if err := p.Abort(); err != ErrInvalidTransition {
		t.Fatalf("Abort from terminal state should fail, got %v", err)
	}
}
