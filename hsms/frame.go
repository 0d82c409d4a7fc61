// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package hsms

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// SType is the HSMS s-type, byte 5 of the 10-byte header, identifying
// control messages (s-type != 0) versus data messages (s-type == 0).
type SType byte

const (
	STypeDataMessage SType = 0
	STypeSelectReq   SType = 1
	STypeSelectRsp   SType = 2
	STypeDeselectReq SType = 3
	STypeDeselectRsp SType = 4
	STypeLinktestReq SType = 5
	STypeLinktestRsp SType = 6
	STypeRejectReq   SType = 7
	STypeSeparateReq SType = 9
)

func (s SType) String() string {
	switch s {
	case STypeDataMessage:
		return "DataMessage"
	case STypeSelectReq:
		return "Select.req"
	case STypeSelectRsp:
		return "Select.rsp"
	case STypeDeselectReq:
		return "Deselect.req"
	case STypeDeselectRsp:
		return "Deselect.rsp"
	case STypeLinktestReq:
		return "Linktest.req"
	case STypeLinktestRsp:
		return "Linktest.rsp"
	case STypeRejectReq:
		return "Reject.req"
	case STypeSeparateReq:
		return "Separate.req"
	default:
		return fmt.Sprintf("SType(%d)", byte(s))
	}
}

func validSType(s SType) bool {
	switch s {
	case STypeDataMessage, STypeSelectReq, STypeSelectRsp, STypeDeselectReq,
		STypeDeselectRsp, STypeLinktestReq, STypeLinktestRsp, STypeRejectReq,
		STypeSeparateReq:
		return true
	default:
		return false
	}
}

// headerSize is the fixed HSMS header length in bytes.
const headerSize = 10

// Header is the 10-byte HSMS header common to every frame.
type Header struct {
	SessionID   uint16
	Stream      byte // bit7 = W-flag (reply expected), bits 6-0 = stream number
	Function    byte
	PType       byte // always 0
	SType       SType
	SystemBytes uint32
}

// WBit reports whether the W-flag (reply expected) is set.
func (h Header) WBit() bool { return h.Stream&0x80 != 0 }

// StreamNumber returns the stream number with the W-flag masked off.
func (h Header) StreamNumber() byte { return h.Stream &^ 0x80 }

func (h Header) encode() []byte {
	b := make([]byte, headerSize)
	binary.BigEndian.PutUint16(b[0:2], h.SessionID)
	b[2] = h.Stream
	b[3] = h.Function
	b[4] = h.PType
	b[5] = byte(h.SType)
	binary.BigEndian.PutUint32(b[6:10], h.SystemBytes)
	return b
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) != headerSize {
		return Header{}, fmt.Errorf("%w: header must be %d bytes", ErrBadSType, headerSize)
	}
	st := SType(b[5])
	if !validSType(st) {
		return Header{}, ErrBadSType
	}
	return Header{
		SessionID:   binary.BigEndian.Uint16(b[0:2]),
		Stream:      b[2],
		Function:    b[3],
		PType:       b[4],
		SType:       st,
		SystemBytes: binary.BigEndian.Uint32(b[6:10]),
	}, nil
}

// Frame is a single HSMS frame: a header plus, for data messages, an
// encoded SECS-II item body. Control message bodies are always empty.
type Frame struct {
	Header Header
	Body   []byte
}

// Encode serializes a Frame to its wire form:
// [length:u32 BE][10-byte header][body]. length counts header+body.
func (f Frame) Encode() []byte {
	h := f.Header.encode()
	out := make([]byte, 4, 4+len(h)+len(f.Body))
	binary.BigEndian.PutUint32(out, uint32(len(h)+len(f.Body)))
	out = append(out, h...)
	out = append(out, f.Body...)
	return out
}

// ReadFrame reads one HSMS frame from conn. Every Read call is given a
// fresh deadline of t8 (the inter-character timer); if the gap between
// frame bytes exceeds t8 the read fails with ErrT8Expired. A TCP close
// observed before a single byte of a new frame arrives (or mid-frame)
// yields ErrShortRead. maxLen bounds the declared length per
// Config.MaxFrameLength; a larger declared length yields
// ErrLengthOverflow before any body allocation.
func ReadFrame(conn net.Conn, t8 time.Duration, maxLen uint32) (Frame, error) {
	lenBuf := make([]byte, 4)
	if err := readFull(conn, lenBuf, t8); err != nil {
		return Frame{}, err
	}
	total := binary.BigEndian.Uint32(lenBuf)
	if total > maxLen {
		return Frame{}, ErrLengthOverflow
	}
	if total < headerSize {
		return Frame{}, fmt.Errorf("%w: declared length %d smaller than header", ErrShortRead, total)
	}
	rest := make([]byte, total)
	if err := readFull(conn, rest, t8); err != nil {
		return Frame{}, err
	}
	hdr, err := decodeHeader(rest[:headerSize])
	if err != nil {
		return Frame{}, err
	}
	return Frame{Header: hdr, Body: rest[headerSize:]}, nil
}

// readFull reads exactly len(buf) bytes, resetting the T8 inter-byte
// deadline before each underlying Read so a stalled peer is detected
// by T8 rather than blocking forever; a close observed partway through
// surfaces as ErrShortRead rather than io.ErrUnexpectedEOF.
func readFull(conn net.Conn, buf []byte, t8 time.Duration) error {
	read := 0
	for read < len(buf) {
		if err := conn.SetReadDeadline(time.Now().Add(t8)); err != nil {
			return err
		}
		n, err := conn.Read(buf[read:])
		read += n
		if err != nil {
			if read == len(buf) {
				break
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return ErrT8Expired
			}
			if err == io.EOF {
				return ErrShortRead
			}
			return fmt.Errorf("%w: %v", ErrShortRead, err)
		}
	}
	return nil
}

// WriteFrame writes one HSMS frame to conn.
func WriteFrame(conn net.Conn, f Frame) error {
	_, err := conn.Write(f.Encode())
	return err
}

// NewSelectReq builds a Select.req control frame for the given session.
func NewSelectReq(sessionID uint16, systemBytes uint32) Frame {
	return controlFrame(sessionID, STypeSelectReq, systemBytes)
}

// NewSelectRsp builds a Select.rsp control frame. status mirrors the
// select status byte into Function (0 = accepted).
func NewSelectRsp(sessionID uint16, systemBytes uint32, status byte) Frame {
	f := controlFrame(sessionID, STypeSelectRsp, systemBytes)
	f.Header.Function = status
	return f
}

// NewDeselectReq builds a Deselect.req control frame.
func NewDeselectReq(sessionID uint16, systemBytes uint32) Frame {
	return controlFrame(sessionID, STypeDeselectReq, systemBytes)
}

// NewDeselectRsp builds a Deselect.rsp control frame. status mirrors
// the deselect status byte into Function (0 = accepted).
func NewDeselectRsp(sessionID uint16, systemBytes uint32, status byte) Frame {
	f := controlFrame(sessionID, STypeDeselectRsp, systemBytes)
	f.Header.Function = status
	return f
}

// NewLinktestReq builds a Linktest.req control frame.
func NewLinktestReq(systemBytes uint32) Frame {
	return controlFrame(0xFFFF, STypeLinktestReq, systemBytes)
}

// NewLinktestRsp builds a Linktest.rsp control frame.
func NewLinktestRsp(systemBytes uint32) Frame {
	return controlFrame(0xFFFF, STypeLinktestRsp, systemBytes)
}

// NewSeparateReq builds a Separate.req control frame.
func NewSeparateReq(sessionID uint16, systemBytes uint32) Frame {
	return controlFrame(sessionID, STypeSeparateReq, systemBytes)
}

func controlFrame(sessionID uint16, st SType, systemBytes uint32) Frame {
	return Frame{Header: Header{
		SessionID:   sessionID,
		SType:       st,
		SystemBytes: systemBytes,
	}}
}

// NewDataMessage builds a data-message frame (s-type 0) carrying an
// already-encoded SECS-II item body.
func NewDataMessage(sessionID uint16, stream, function byte, wBit bool, systemBytes uint32, body []byte) Frame {
	s := stream &^ 0x80
	if wBit {
		s |= 0x80
	}
	return Frame{
		Header: Header{
			SessionID:   sessionID,
			Stream:      s,
			Function:    function,
			SType:       STypeDataMessage,
			SystemBytes: systemBytes,
		},
		Body: body,
	}
}
