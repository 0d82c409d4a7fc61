package message

import (
	"context"
	"fmt"
	"time"

	"github.com/aimfab/gem/gem"
	"github.com/aimfab/gem/item"
)

func registerDefaultHandlers(d *Dispatcher) {
	d.RegisterHandler(1, 1, handleS1F1)
	d.RegisterHandler(1, 3, handleS1F3)
	d.RegisterHandler(1, 11, handleS1F11)
	d.RegisterHandler(1, 13, handleS1F13)
	d.RegisterHandler(1, 15, handleS1F15)
	d.RegisterHandler(1, 17, handleS1F17)
	d.RegisterHandler(2, 13, handleS2F13)
	d.RegisterHandler(2, 15, handleS2F15)
	d.RegisterHandler(2, 23, handleS2F23)
	d.RegisterHandler(2, 29, handleS2F29)
	d.RegisterHandler(2, 31, handleS2F31)
	d.RegisterHandler(2, 33, handleS2F33)
	d.RegisterHandler(2, 35, handleS2F35)
	d.RegisterHandler(2, 37, handleS2F37)
	d.RegisterHandler(2, 41, handleS2F41)
}

// handleS1F1 answers "Are You There" with [MDLN, SOFTREV].
func handleS1F1(_ context.Context, h *Handle, msg Message) (*Message, error) {
	reply := msg.Reply(2, itemPtr(item.L(item.Ascii(h.MDLN), item.Ascii(h.SoftRev))))
	return &reply, nil
}

// handleS1F3 answers a status-variable request (a namelist of SVIDs,
// or every SVID when the list is empty), per spec.md §12's
// supplemented status path.
func handleS1F3(_ context.Context, h *Handle, msg Message) (*Message, error) {
	ids := uint32List(msg.Body)
	var values []item.Item
	if len(ids) == 0 {
		for _, s := range h.Registry.AllSVIDs() {
			values = append(values, s.Value)
		}
	} else {
		for _, id := range ids {
			if s, ok := h.Registry.SVID(id); ok {
				values = append(values, s.Value)
			} else {
				values = append(values, item.L())
			}
		}
	}
	reply := msg.Reply(4, itemPtr(item.L(values...)))
	return &reply, nil
}

// handleS1F11 answers a status-variable-namelist request with
// [[SVID, SVNAME, UNITS]...], supplemented per spec.md §12.
func handleS1F11(_ context.Context, h *Handle, msg Message) (*Message, error) {
	ids := uint32List(msg.Body)
	svids := h.Registry.AllSVIDs()
	var rows []item.Item
	emit := func(id uint32, name string) {
		rows = append(rows, item.L(item.U4Item(id), item.Ascii(name), item.Ascii("")))
	}
	if len(ids) == 0 {
		for _, s := range svids {
			emit(s.ID, s.Name)
		}
	} else {
		for _, id := range ids {
			name := ""
			for _, s := range svids {
				if s.ID == id {
					name = s.Name
					break
				}
			}
			emit(id, name)
		}
	}
	reply := msg.Reply(12, itemPtr(item.L(rows...)))
	return &reply, nil
}

// handleS1F13 implements Establish Communications Request: COMMACK=0
// unconditionally and advances the phase gate HsmsSelected ->
// Communicating if it has not already done so.
func handleS1F13(_ context.Context, h *Handle, msg Message) (*Message, error) {
	_ = h.Gate.ToCommunicating() // idempotent from the handler's perspective: ErrInvalidTransition is ignored if already Communicating.
	reply := msg.Reply(14, itemPtr(item.L(item.U1Item(0), item.L(item.Ascii(h.MDLN), item.Ascii(h.SoftRev)))))
	return &reply, nil
}

// handleS1F15 implements Request OFFLINE: rejects (OFLACK=1) while the
// process is mid-execution, per spec.md §4.4/§4.5 interaction.
func handleS1F15(_ context.Context, h *Handle, msg Message) (*Message, error) {
	processing := h.Process.State() == gem.Executing
	oflack := h.Control.RequestOffline(processing)
	reply := msg.Reply(16, itemPtr(item.U1Item(oflack)))
	return &reply, nil
}

// handleS1F17 implements Request ONLINE: on acceptance, advances the
// phase gate Communicating -> Online.
func handleS1F17(_ context.Context, h *Handle, msg Message) (*Message, error) {
	onlack := h.Control.RequestOnline()
	if onlack == 0 {
		_ = h.Gate.ToOnline()
	}
	reply := msg.Reply(18, itemPtr(item.U1Item(onlack)))
	return &reply, nil
}

// handleS2F13 answers an Equipment Constant Request: a namelist of
// ECIDs, or every ECID when the list is empty, per spec.md §12.
func handleS2F13(_ context.Context, h *Handle, msg Message) (*Message, error) {
	ids := uint32List(msg.Body)
	var values []item.Item
	if len(ids) == 0 {
		for _, e := range h.Registry.AllECIDs() {
			values = append(values, e.Value)
		}
	} else {
		for _, id := range ids {
			if e, ok := h.Registry.ECID(id); ok {
				values = append(values, e.Value)
			} else {
				values = append(values, item.L())
			}
		}
	}
	reply := msg.Reply(14, itemPtr(item.L(values...)))
	return &reply, nil
}

// handleS2F15 implements New Equipment Constant Send: [[ECID,
// ECV]...], each validated against [Min, Max]. EAC is 0 if every
// constant was accepted, 1 if any was rejected.
func handleS2F15(_ context.Context, h *Handle, msg Message) (*Message, error) {
	eac := byte(0)
	if msg.Body != nil {
		for _, pair := range msg.Body.List {
			if pair.Fmt != item.FormatList || len(pair.List) != 2 {
				eac = 1
				continue
			}
			id, ok := uint32Of(pair.List[0])
			if !ok {
				eac = 1
				continue
			}
			if err := h.Registry.SetECID(id, pair.List[1]); err != nil {
				eac = 1
			}
		}
	}
	reply := msg.Reply(16, itemPtr(item.U1Item(eac)))
	return &reply, nil
}

// handleS2F23 implements Trace Initialize: [TRID, DSPER, TOTSMP,
// REPGSZ, [SVID...]]. No separate trace-sample engine exists yet, so
// the equipment accepts unconditionally (TIAACK=0) and records the
// liturgy step, per spec.md §12's supplemented trace path.
func handleS2F23(_ context.Context, h *Handle, msg Message) (*Message, error) {
	h.Gate.MarkTraceSetup()
	reply := msg.Reply(24, itemPtr(item.U1Item(0)))
	return &reply, nil
}

// handleS2F31 implements Date/Time Set: a single ASCII timestamp in
// the SEMI E5 "YYYYMMDDhhmmss[cc]" form. TIACK=1 when the timestamp is
// missing or malformed; otherwise h.SetClock installs the host offset.
func handleS2F31(_ context.Context, h *Handle, msg Message) (*Message, error) {
	tiack := byte(1)
	if msg.Body != nil && msg.Body.Fmt == item.FormatASCII {
		if t, err := parseSecsTimestamp(msg.Body.A); err == nil {
			tiack = h.SetClock(t)
			h.Gate.MarkClockSet()
		}
	}
	reply := msg.Reply(32, itemPtr(item.U1Item(tiack)))
	return &reply, nil
}

// parseSecsTimestamp parses the leading 14 characters of s
// (YYYYMMDDhhmmss) as a local time, ignoring any trailing centisecond
// digits SEMI E5 allows but this equipment does not resolve.
func parseSecsTimestamp(s string) (time.Time, error) {
	if len(s) < 14 {
		return time.Time{}, fmt.Errorf("message: short S2F31 timestamp %q", s)
	}
	return time.ParseInLocation("20060102150405", s[:14], time.Local)
}

// handleS2F29 answers an equipment-constant-namelist request with
// [[ECID, ECNAME, ECMIN, ECMAX, ECDEF, UNITS]...], supplemented per
// spec.md §12.
func handleS2F29(_ context.Context, h *Handle, msg Message) (*Message, error) {
	ids := uint32List(msg.Body)
	ecids := h.Registry.AllECIDs()
	var rows []item.Item
	if len(ids) == 0 {
		for _, e := range ecids {
			rows = append(rows, item.L(item.U4Item(e.ID), item.Ascii(e.Name), e.Min, e.Max, e.Default, item.Ascii("")))
		}
	} else {
		for _, id := range ids {
			found := false
			for _, e := range ecids {
				if e.ID == id {
					rows = append(rows, item.L(item.U4Item(e.ID), item.Ascii(e.Name), e.Min, e.Max, e.Default, item.Ascii("")))
					found = true
					break
				}
			}
			if !found {
				rows = append(rows, item.L(item.U4Item(id), item.Ascii(""), item.L(), item.L(), item.L(), item.Ascii("")))
			}
		}
	}
	reply := msg.Reply(30, itemPtr(item.L(rows...)))
	return &reply, nil
}

// handleS2F33 implements Define Report: [DATAID, [[RPTID,
// [VID...]]...]].
func handleS2F33(_ context.Context, h *Handle, msg Message) (*Message, error) {
	drack := byte(0) // DRACKAccepted
	if msg.Body == nil || len(msg.Body.List) != 2 {
		drack = 2 // DRACKInvalidFormat
	} else {
		for _, def := range msg.Body.List[1].List {
			if def.Fmt != item.FormatList || len(def.List) != 2 {
				drack = 2
				continue
			}
			rptid, ok := uint32Of(def.List[0])
			if !ok {
				drack = 2
				continue
			}
			vids := uint32List(&def.List[1])
			if ack := h.Reports.DefineReport(rptid, vids); ack != 0 {
				drack = ack
			}
		}
		if len(msg.Body.List[1].List) > 0 {
			h.Gate.MarkReportsDefined()
		}
	}
	reply := msg.Reply(34, itemPtr(item.U1Item(drack)))
	return &reply, nil
}

// handleS2F35 implements Link Event Report: [DATAID, [[CEID,
// [RPTID...]]...]].
func handleS2F35(_ context.Context, h *Handle, msg Message) (*Message, error) {
	lrack := byte(0)
	if msg.Body == nil || len(msg.Body.List) != 2 {
		lrack = 2 // LRACKInvalidData
	} else {
		for _, link := range msg.Body.List[1].List {
			if link.Fmt != item.FormatList || len(link.List) != 2 {
				lrack = 2
				continue
			}
			ceid, ok := uint32Of(link.List[0])
			if !ok {
				lrack = 2
				continue
			}
			rptids := uint32List(&link.List[1])
			if ack := h.Reports.LinkEventReport(ceid, rptids); ack != 0 {
				lrack = ack
			}
		}
		if len(msg.Body.List[1].List) > 0 {
			h.Gate.MarkLinksLinked()
		}
	}
	reply := msg.Reply(36, itemPtr(item.U1Item(lrack)))
	return &reply, nil
}

// handleS2F37 implements Enable/Disable Event Report: [CEED,
// [CEID...]].
func handleS2F37(_ context.Context, h *Handle, msg Message) (*Message, error) {
	erack := byte(1)
	if msg.Body != nil && len(msg.Body.List) == 2 {
		ceed := msg.Body.List[0].Len() > 0 && msg.Body.List[0].Bool != nil && msg.Body.List[0].Bool[0]
		ids := uint32List(&msg.Body.List[1])
		if len(ids) == 0 {
			erack = h.Reports.EnableAllEvents(ceed)
		} else {
			erack = 0
			for _, id := range ids {
				if ack := h.Reports.EnableEvent(id, ceed); ack != 0 {
					erack = ack
				}
			}
		}
		if erack == 0 && ceed {
			h.Gate.MarkEventEnabled()
		}
	}
	reply := msg.Reply(38, itemPtr(item.U1Item(erack)))
	return &reply, nil
}

// handleS2F41 implements Host Command Send: [RCMD, [[CPID,
// CPVAL]...]], dispatching to a registered HostCommand by name
// (spec.md §12's supplemented remote-command path). HCACK=1 when RCMD
// is not recognized.
func handleS2F41(ctx context.Context, h *Handle, msg Message) (*Message, error) {
	if msg.Body == nil || len(msg.Body.List) < 1 || msg.Body.List[0].Fmt != item.FormatASCII {
		reply := msg.Reply(42, itemPtr(item.L(item.U1Item(1), item.L())))
		return &reply, nil
	}
	rcmd := msg.Body.List[0].A
	var params item.Item
	if len(msg.Body.List) > 1 {
		params = msg.Body.List[1]
	} else {
		params = item.L()
	}

	fn, ok := h.hostCommand(rcmd)
	if !ok {
		reply := msg.Reply(42, itemPtr(item.L(item.U1Item(1), item.L())))
		return &reply, nil
	}
	hcack, err := fn(ctx, params)
	if err != nil {
		hcack = 3 // cannot perform now
	}
	reply := msg.Reply(42, itemPtr(item.L(item.U1Item(hcack), item.L())))
	return &reply, nil
}

func itemPtr(it item.Item) *item.Item { return &it }

func uint32Of(it item.Item) (uint32, bool) {
	switch it.Fmt {
	case item.FormatU1:
		if len(it.U1) == 1 {
			return uint32(it.U1[0]), true
		}
	case item.FormatU2:
		if len(it.U2) == 1 {
			return uint32(it.U2[0]), true
		}
	case item.FormatU4:
		if len(it.U4) == 1 {
			return it.U4[0], true
		}
	case item.FormatU8:
		if len(it.U8) == 1 {
			return uint32(it.U8[0]), true
		}
	case item.FormatI1:
		if len(it.I1) == 1 {
			return uint32(it.I1[0]), true
		}
	case item.FormatI2:
		if len(it.I2) == 1 {
			return uint32(it.I2[0]), true
		}
	case item.FormatI4:
		if len(it.I4) == 1 {
			return uint32(it.I4[0]), true
		}
	}
	return 0, false
}

func uint32List(it *item.Item) []uint32 {
	if it == nil || it.Fmt != item.FormatList {
		return nil
	}
	out := make([]uint32, 0, len(it.List))
	for _, child := range it.List {
		if v, ok := uint32Of(child); ok {
			out = append(out, v)
		}
	}
	return out
}
