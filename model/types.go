// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package model implements the equipment's typed registry of status
// variables (SVID), equipment constants (ECID), alarms (ALID) and
// collection events (CEID): spec.md §3 and §4.6.
package model

import (
	"time"

	"github.com/aimfab/gem/item"
)

// SVID is one status variable: a named, typed, possibly read-only
// current value.
type SVID struct {
	ID       uint32
	Name     string
	DataType item.Format
	Value    item.Item
	ReadOnly bool
}

// ECID is one equipment constant: a named, typed, bounded value,
// mutated only via Registry.SetECID (S2F15).
type ECID struct {
	ID      uint32
	Name    string
	DataType item.Format
	Value   item.Item
	Min     item.Item
	Max     item.Item
	Default item.Item
}

// ALID is one alarm definition plus its current active/inactive state.
type ALID struct {
	ID        uint32
	Name      string
	Category  string
	Priority  byte
	Active    bool
	LastSetAt time.Time
}

// CEID is one collection event definition plus its enable bit.
type CEID struct {
	ID      uint32
	Name    string
	Enabled bool
}

// ChangeEvent is delivered to subscribers on every committed write to
// an SVID or ECID.
type ChangeEvent struct {
	Kind Kind
	ID   uint32
	Old  item.Item
	New  item.Item
}

// Kind discriminates which registry a ChangeEvent came from.
type Kind int

const (
	KindSVID Kind = iota
	KindECID
)

// Subscriber receives committed SVID/ECID writes.
type Subscriber func(ChangeEvent)
