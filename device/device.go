package device

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/aimfab/gem/alarm"
	"github.com/aimfab/gem/clog"
	"github.com/aimfab/gem/gem"
	"github.com/aimfab/gem/hsms"
	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/message"
	"github.com/aimfab/gem/model"
	"github.com/aimfab/gem/report"
	"github.com/aimfab/gem/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// Seed is the configured SVID/ECID/ALID/CEID tables loaded into the
// registry at device construction (spec.md §4.6).
type Seed struct {
	SVIDs []model.SVID
	ECIDs []model.ECID
	ALIDs []model.ALID
	CEIDs []model.CEID
}

// Device is one equipment-side SECS/GEM actor: an HSMS session plus
// the GEM phase/control/process state machines, data model,
// report/alarm engines and message dispatcher layered on top of it.
type Device struct {
	cfg Config

	Registry *model.Registry
	Reports  *report.Engine
	Alarms   *alarm.Engine
	Gate     *gem.Gate
	Control  *gem.Control
	Process  *gem.Process
	Handle   *message.Handle

	dispatcher *message.Dispatcher
	metrics    *telemetry.Metrics
	store      PersistenceStore
	log        clog.Clog

	connMu sync.RWMutex
	conn   *hsms.Conn
}

// New constructs a Device. metricsReg may be nil to skip Prometheus
// registration (e.g. in tests).
func New(cfg Config, seed Seed, store PersistenceStore, metricsReg prometheus.Registerer) (*Device, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if store == nil {
		store = NopStore{}
	}

	registry := model.NewRegistry()
	registry.BootstrapSVIDs(seed.SVIDs)
	registry.BootstrapECIDs(seed.ECIDs)
	registry.BootstrapALIDs(seed.ALIDs)
	registry.BootstrapCEIDs(seed.CEIDs)

	if cfg.PersistEquipmentConstants {
		persisted, err := store.LoadECIDs()
		if err != nil {
			return nil, fmt.Errorf("device: loading persisted equipment constants: %w", err)
		}
		for id, v := range persisted {
			_ = registry.SetECID(id, v)
		}
	}

	reports := report.NewEngine(registry)
	alarms := alarm.NewEngine(registry, nil) // Emitter wired below, after the dispatcher exists.
	g := gem.NewGate(cfg.Liturgy)
	control := gem.NewControl(cfg.DefaultControlState)
	process := gem.NewProcess()

	handle := message.NewHandle(registry, reports, alarms, g, control, process)
	handle.MDLN = cfg.MDLN
	handle.SoftRev = cfg.SoftRev

	d := &Device{
		cfg:      cfg,
		Registry: registry,
		Reports:  reports,
		Alarms:   alarms,
		Gate:     g,
		Control:  control,
		Process:  process,
		Handle:   handle,
		store:    store,
		log:      clog.NewLogger(fmt.Sprintf("device-%d", cfg.DeviceID)),
	}
	d.log.LogMode(true)

	if metricsReg != nil {
		d.metrics = telemetry.NewMetrics(metricsReg, cfg.MetricsNamespace)
	}

	dispatcher := message.NewDispatcher(&connSender{d: d}, g, handle, cfg.DeviceID, cfg.DeviceID, cfg.t3())
	dispatcher.SetLogger(d.log)
	d.dispatcher = dispatcher

	alarms.SetEmitter(func(payload item.Item) error {
		d.dispatcher.SendEvent(context.Background(), 5, 1, &payload)
		if d.metrics != nil {
			d.metrics.AlarmsSent.Inc()
		}
		return nil
	})

	dispatcher.SetMetricsHooks(
		func() {
			if d.metrics != nil {
				d.metrics.T3Timeouts.Inc()
			}
		},
		func(rtt time.Duration) {
			if d.metrics != nil {
				d.metrics.TransactionsRTT.Observe(rtt.Seconds())
			}
		},
	)

	// A local/remote switch fires both CEID 200 (ControlStateChange)
	// and CEID 201 (ControlModeChange); TriggerEvent no-ops for
	// whichever one the host has not linked/enabled (spec.md §4.5).
	control.Subscribe(func(gem.ModeChange) {
		ctx := context.Background()
		d.TriggerEvent(ctx, 200)
		d.TriggerEvent(ctx, 201)
	})

	if cfg.PersistEquipmentConstants {
		registry.Subscribe(func(ev model.ChangeEvent) {
			if ev.Kind == model.KindECID {
				_ = store.SaveECID(ev.ID, ev.New)
			}
		})
	}

	return d, nil
}

// connSender adapts Device's current connection to message.Sender; it
// exists so the dispatcher can be constructed before the first TCP
// connection is accepted.
type connSender struct{ d *Device }

func (s *connSender) Send(f hsms.Frame) error {
	s.d.connMu.RLock()
	c := s.d.conn
	s.d.connMu.RUnlock()
	if c == nil {
		return hsms.ErrNotSelected
	}
	return c.Send(f)
}

// Dispatcher exposes the message dispatcher for registering additional
// handlers beyond the defaults.
func (d *Device) Dispatcher() *message.Dispatcher { return d.dispatcher }

// RegisterHostCommand wires an RCMD name to its handler (spec.md §12).
func (d *Device) RegisterHostCommand(rcmd string, fn message.HostCommand) {
	d.Handle.RegisterHostCommand(rcmd, fn)
}

// TriggerEvent fires ceid if it is linked and enabled, sending S6F11
// and discarding a missing S6F12 acknowledgement past T3.
func (d *Device) TriggerEvent(ctx context.Context, ceid uint32) {
	ev, ok := d.Reports.Trigger(ceid)
	if !ok {
		return
	}
	payload := ev.Payload()
	d.dispatcher.SendEvent(ctx, 6, 11, &payload)
	if d.metrics != nil {
		d.metrics.EventsSent.Inc()
	}
}

// SetAlarm and ClearAlarm delegate to the alarm engine; S5F1 emission
// (if this is an edge) happens inside the engine via the Emitter
// installed in New.
func (d *Device) SetAlarm(alid uint32, text string) error   { return d.Alarms.SetAlarm(alid, text) }
func (d *Device) ClearAlarm(alid uint32) error               { return d.Alarms.ClearAlarm(alid) }

// Run drives the device's HSMS session for the connection's lifetime:
// Passive accepts a single inbound connection at a time and loops on
// disconnect; Active dials, retrying after T5 on failure. Run blocks
// until ctx is cancelled.
func (d *Device) Run(ctx context.Context) error {
	switch d.cfg.HSMS.Role {
	case hsms.Passive:
		return d.runPassive(ctx)
	default:
		return d.runActive(ctx)
	}
}

func (d *Device) runPassive(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.HSMS.Address)
	if err != nil {
		return fmt.Errorf("device: listen: %w", err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				d.log.Error("device: accept: %v", err)
				continue
			}
		}
		d.serve(ctx, nc, hsms.Passive)
	}
}

func (d *Device) runActive(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		nc, err := net.DialTimeout("tcp", d.cfg.HSMS.Address, d.cfg.HSMS.T5)
		if err != nil {
			d.log.Warn("device: dial %s failed: %v", d.cfg.HSMS.Address, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d.cfg.HSMS.T5):
			}
			continue
		}
		d.serve(ctx, nc, hsms.Active)
	}
}

// serve runs one HSMS session to completion, updating the GEM phase
// gate and control state as Conn's lifecycle events arrive.
func (d *Device) serve(ctx context.Context, nc net.Conn, role hsms.Role) {
	conn := hsms.NewConn(nc, d.cfg.HSMS, d.cfg.DeviceID, role, d.dispatcher.OnFrame)
	conn.SetPendingCheck(d.dispatcher.HasPending)
	d.connMu.Lock()
	d.conn = conn
	d.connMu.Unlock()
	_ = d.Gate.ToHsmsConnected()
	d.updateMetrics()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for ev := range conn.Events() {
			switch ev.Kind {
			case hsms.EventSelected:
				_ = d.Gate.ToHsmsSelected()
			case hsms.EventDeselected, hsms.EventDisconnected:
				d.Gate.Drop()
				d.Control.Drop()
				if err := d.Process.Abort(); err == nil {
					_ = d.Process.FinishAbort()
				}
				d.dispatcher.CancelAll(message.ErrConnectionLost)
			}
			d.updateMetrics()
		}
	}()

	if role == hsms.Active {
		// InitiateSelect waits for a Select.rsp that only Run's read
		// loop delivers, so it runs alongside Run.
		go func() {
			if _, err := conn.InitiateSelect(sessionCtx); err != nil {
				d.log.Error("device: select failed: %v", err)
			}
		}()
	}

	conn.Run(sessionCtx)

	d.connMu.Lock()
	d.conn = nil
	d.connMu.Unlock()
	d.updateMetrics()
}

func (d *Device) updateMetrics() {
	if d.metrics == nil {
		return
	}
	d.metrics.Phase.Set(float64(d.Gate.Phase()))
	d.metrics.ControlState.Set(float64(d.Control.State()))
	d.metrics.ProcessState.Set(float64(d.Process.State()))
	d.metrics.ActiveAlarms.Set(float64(len(d.Alarms.ActiveSet())))
	connected := 0.0
	d.connMu.RLock()
	c := d.conn
	d.connMu.RUnlock()
	if c != nil && c.State() == hsms.Selected {
		connected = 1
	}
	d.metrics.Connected.Set(connected)
}
