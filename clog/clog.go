// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog provides the pluggable logging facade used throughout
// the equipment stack: a thin, atomically-enabled wrapper over a
// LogProvider, defaulting to a logrus-backed implementation.
package clog

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LogProvider RFC5424 log message levels Critical, Error, Warn and Debug
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog Log internal debugging implementation
type Clog struct {
	provider LogProvider
	// is log output enabled,1: enable, 0: disable
	has uint32
}

// NewLogger creates a new Clog backed by a logrus logger whose entries
// carry a "device" field set to name (e.g. the device identifier).
func NewLogger(name string) Clog {
	return Clog{
		logrusLogger{logrus.WithField("device", name)},
		0,
	}
}

// LogMode set enable or disable log output when you has set provider
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider set provider provider
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// Critical Log CRITICAL level message.
func (sf Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 && sf.provider != nil {
		sf.provider.Critical(format, v...)
	}
}

// Error Log ERROR level message.
func (sf Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 && sf.provider != nil {
		sf.provider.Error(format, v...)
	}
}

// Warn Log WARN level message.
func (sf Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 && sf.provider != nil {
		sf.provider.Warn(format, v...)
	}
}

// Debug Log DEBUG level message.
func (sf Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 && sf.provider != nil {
		sf.provider.Debug(format, v...)
	}
}

// logrusLogger adapts a *logrus.Entry to LogProvider. SEMI equipment
// logs have no native "critical" level; Critical logs at logrus's Error
// level with a severity=critical field, since logrus.Fatal would call
// os.Exit.
type logrusLogger struct {
	entry *logrus.Entry
}

var _ LogProvider = logrusLogger{}

// Critical Log CRITICAL level message.
func (sf logrusLogger) Critical(format string, v ...interface{}) {
	sf.entry.WithField("severity", "critical").Errorf(format, v...)
}

// Error Log ERROR level message.
func (sf logrusLogger) Error(format string, v ...interface{}) {
	sf.entry.Errorf(format, v...)
}

// Warn Log WARN level message.
func (sf logrusLogger) Warn(format string, v ...interface{}) {
	sf.entry.Warnf(format, v...)
}

// Debug Log DEBUG level message.
func (sf logrusLogger) Debug(format string, v ...interface{}) {
	sf.entry.Debugf(format, v...)
}
