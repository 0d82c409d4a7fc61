package hsms

import (
	"net"
	"testing"
	"time"
)

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := NewDataMessage(1, 1, 13, true, 42, []byte{0x01, 0x02, 0x03})
	wire := f.Encode()

	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := cli.Write(wire)
		errc <- err
	}()

	got, err := ReadFrame(srv, time.Second, MaxFrameLengthDefault)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("write: %v", err)
	}
	if got.Header.SessionID != 1 || got.Header.Function != 13 || !got.Header.WBit() {
		t.Fatalf("unexpected header: %+v", got.Header)
	}
	if string(got.Body) != "\x01\x02\x03" {
		t.Fatalf("unexpected body: % x", got.Body)
	}
}

func TestReadFrameLengthOverflow(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	go func() {
		big := make([]byte, 4)
		big[0] = 0xFF
		cli.Write(big)
	}()

	_, err := ReadFrame(srv, time.Second, 1024)
	if err != ErrLengthOverflow {
		t.Fatalf("got %v, want ErrLengthOverflow", err)
	}
}

func TestReadFrameShortRead(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()

	go func() {
		cli.Write([]byte{0x00, 0x00, 0x00, 0x0A})
		cli.Close()
	}()

	_, err := ReadFrame(srv, time.Second, MaxFrameLengthDefault)
	if err != ErrShortRead {
		t.Fatalf("got %v, want ErrShortRead", err)
	}
}
