// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package device wires the HSMS transport, the GEM phase/control/
// process state machines, the data model, the report/alarm engines
// and the message dispatcher into one equipment-side actor (spec.md
// §5).
package device

import (
	"errors"
	"time"

	"github.com/aimfab/gem/gem"
	"github.com/aimfab/gem/hsms"
)

// Config defines one device's wiring. The default is applied for each
// unspecified value.
type Config struct {
	// DeviceID is the SECS-II device (model/session) identifier carried
	// in every frame header.
	DeviceID uint16

	// MDLN and SoftRev answer S1F1/S1F13 identification requests.
	MDLN    string
	SoftRev string

	// HSMS is the underlying transport configuration (role, address,
	// T3/T5/T6/T7/T8, link test interval).
	HSMS hsms.Config

	// Liturgy configures which S2F33/S2F35/S2F37/trace/clock steps the
	// Online -> Initialized transition requires.
	Liturgy gem.Liturgy

	// DefaultControlState is the substate RequestOnline settles into:
	// OnlineLocal or OnlineRemote.
	DefaultControlState gem.ControlState

	// PersistEquipmentConstants, when true, loads ECID values from the
	// configured PersistenceStore at startup and saves on every S2F15
	// write, per spec.md Open Question (b).
	PersistEquipmentConstants bool

	// MetricsNamespace labels this device's Prometheus series when more
	// than one device shares a process.
	MetricsNamespace string
}

// Valid applies the default for each unspecified value.
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("device: invalid pointer")
	}
	if err := c.HSMS.Valid(); err != nil {
		return err
	}
	if c.MDLN == "" {
		c.MDLN = "DICER"
	}
	if c.SoftRev == "" {
		c.SoftRev = "1.0"
	}
	if c.DefaultControlState == 0 {
		c.DefaultControlState = gem.OnlineRemote
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "0"
	}
	return nil
}

// DefaultConfig returns a Config for a passive (host-dials-in) session
// at address, with the minimum Online-initialization liturgy.
func DefaultConfig(address string) Config {
	return Config{
		DeviceID:            0,
		MDLN:                "DICER",
		SoftRev:             "1.0",
		HSMS:                hsms.DefaultConfig(address),
		Liturgy:             gem.DefaultLiturgy(),
		DefaultControlState: gem.OnlineRemote,
		MetricsNamespace:    "0",
	}
}

// t3 is a convenience accessor so device.go need not reach into HSMS
// for the dispatcher's reply timeout.
func (c Config) t3() time.Duration { return c.HSMS.T3 }
