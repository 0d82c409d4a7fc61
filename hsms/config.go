// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package hsms

import (
	"errors"
	"time"
)

// Role is the HSMS connect mode: Passive accepts a TCP connection,
// Active initiates one.
type Role int

const (
	Passive Role = iota
	Active
)

// defines an HSMS timer configuration range, per SEMI E37.
const (
	T3Min, T3Max = 1 * time.Second, 120 * time.Second // reply timeout, default 45s
	T5Min, T5Max = 1 * time.Second, 600 * time.Second // connect separation, default 10s
	T6Min, T6Max = 1 * time.Second, 60 * time.Second  // control transaction, default 5s
	T7Min, T7Max = 1 * time.Second, 600 * time.Second // not-selected, default 10s
	T8Min, T8Max = 1 * time.Second, 120 * time.Second // inter-character, default 5s

	// MaxFrameLengthDefault caps a declared frame length so a corrupt
	// or hostile length field cannot force a runaway allocation.
	MaxFrameLengthDefault = 16 * 1024 * 1024
)

// Config defines an HSMS session's transport configuration.
// The default is applied for each unspecified value.
type Config struct {
	// Role selects active (connect) or passive (accept) operation.
	Role Role

	// Address is the "host:port" to dial (Active) or bind (Passive).
	Address string

	// T3 "reply timeout" range [1, 120]s default 45s.
	T3 time.Duration
	// T5 "connect separation" range [1, 600]s default 10s.
	T5 time.Duration
	// T6 "control transaction" range [1, 60]s default 5s.
	T6 time.Duration
	// T7 "not selected" range [1, 600]s default 10s.
	T7 time.Duration
	// T8 "inter-character" range [1, 120]s default 5s.
	T8 time.Duration

	// LinkTestInterval is the repeating keepalive period while Selected.
	LinkTestInterval time.Duration

	// MaxFrameLength caps the declared frame length; frames larger than
	// this are rejected with ErrLengthOverflow before allocation.
	MaxFrameLength uint32
}

// Valid applies the default (defined by SEMI E37) for each unspecified
// value and range-checks the rest.
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("hsms: invalid pointer")
	}
	if c.T3 == 0 {
		c.T3 = 45 * time.Second
	} else if c.T3 < T3Min || c.T3 > T3Max {
		return errors.New(`hsms: T3 not in [1, 120]s`)
	}
	if c.T5 == 0 {
		c.T5 = 10 * time.Second
	} else if c.T5 < T5Min || c.T5 > T5Max {
		return errors.New(`hsms: T5 not in [1, 600]s`)
	}
	if c.T6 == 0 {
		c.T6 = 5 * time.Second
	} else if c.T6 < T6Min || c.T6 > T6Max {
		return errors.New(`hsms: T6 not in [1, 60]s`)
	}
	if c.T7 == 0 {
		c.T7 = 10 * time.Second
	} else if c.T7 < T7Min || c.T7 > T7Max {
		return errors.New(`hsms: T7 not in [1, 600]s`)
	}
	if c.T8 == 0 {
		c.T8 = 5 * time.Second
	} else if c.T8 < T8Min || c.T8 > T8Max {
		return errors.New(`hsms: T8 not in [1, 120]s`)
	}
	if c.LinkTestInterval == 0 {
		c.LinkTestInterval = 60 * time.Second
	}
	if c.MaxFrameLength == 0 {
		c.MaxFrameLength = MaxFrameLengthDefault
	}
	return nil
}

// DefaultConfig returns a Config with every field set to its SEMI
// E37-documented default for a passive session at the given address.
func DefaultConfig(address string) Config {
	return Config{
		Role:             Passive,
		Address:          address,
		T3:               45 * time.Second,
		T5:               10 * time.Second,
		T6:               5 * time.Second,
		T7:               10 * time.Second,
		T8:               5 * time.Second,
		LinkTestInterval: 60 * time.Second,
		MaxFrameLength:   MaxFrameLengthDefault,
	}
}
