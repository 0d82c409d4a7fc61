// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package hsms

import (
	"net"
	"testing"
	"time"
)

func newTestConn(t *testing.T, srv net.Conn) *Conn {
	t.Helper()
	cfg := DefaultConfig("")
	if err := cfg.Valid(); err != nil {
		t.Fatal(err)
	}
	return NewConn(srv, cfg, 1, Passive, nil)
}

func TestHandleDeselectReqRejectsWithPendingTransactions(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	c := newTestConn(t, srv)
	c.setState(Selected)
	c.SetPendingCheck(func() bool { return true })

	go c.handleDeselectReq(Frame{Header: Header{SessionID: 1, SType: STypeDeselectReq, SystemBytes: 7}})

	got, err := ReadFrame(cli, time.Second, MaxFrameLengthDefault)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Header.SType != STypeDeselectRsp || got.Header.Function != 1 {
		t.Fatalf("header = %+v, want Deselect.rsp status=1", got.Header)
	}
	if c.State() != Selected {
		t.Fatalf("state = %v, want Selected", c.State())
	}
}

func TestHandleDeselectReqAcceptsWithoutPendingTransactions(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	c := newTestConn(t, srv)
	c.setState(Selected)
	c.SetPendingCheck(func() bool { return false })

	done := make(chan struct{})
	go func() {
		c.handleDeselectReq(Frame{Header: Header{SessionID: 1, SType: STypeDeselectReq, SystemBytes: 7}})
		close(done)
	}()

	got, err := ReadFrame(cli, time.Second, MaxFrameLengthDefault)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Header.SType != STypeDeselectRsp || got.Header.Function != 0 {
		t.Fatalf("header = %+v, want Deselect.rsp status=0", got.Header)
	}
	// The state change follows the reply write; wait for the handler.
	<-done
	if c.State() != Connected {
		t.Fatalf("state = %v, want Connected", c.State())
	}
}

func TestHandleDeselectReqAcceptsWhenNoPendingCheckInstalled(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	c := newTestConn(t, srv)
	c.setState(Selected)

	go c.handleDeselectReq(Frame{Header: Header{SessionID: 1, SType: STypeDeselectReq, SystemBytes: 7}})

	got, err := ReadFrame(cli, time.Second, MaxFrameLengthDefault)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Header.Function != 0 {
		t.Fatalf("status = %d, want 0 (unset pendingCheck preserves prior always-accept behavior)", got.Header.Function)
	}
}
