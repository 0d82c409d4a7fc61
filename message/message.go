// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package message implements the SECS-II message dispatcher: decoded
// primaries routed to per-(stream, function) handlers, gated by the
// GEM phase, with T3-bounded reply correlation (spec.md §4.8).
package message

import (
	"fmt"

	"github.com/aimfab/gem/item"
)

// Message is a decoded SECS-II primary or reply.
type Message struct {
	Stream      byte
	Function    byte
	WBit        bool // reply expected
	SystemBytes uint32
	DeviceID    uint16
	Body        *item.Item // nil when the message carries no data
}

func (m Message) String() string {
	w := ""
	if m.WBit {
		w = "W"
	}
	return fmt.Sprintf("S%dF%d%s", m.Stream, m.Function, w)
}

// Reply constructs the paired reply message (same device id and
// system bytes, function+1, W-bit clear) carrying body.
func (m Message) Reply(function byte, body *item.Item) Message {
	return Message{
		Stream:      m.Stream,
		Function:    function,
		WBit:        false,
		SystemBytes: m.SystemBytes,
		DeviceID:    m.DeviceID,
		Body:        body,
	}
}
