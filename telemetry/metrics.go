// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package telemetry exposes the equipment stack's Prometheus metrics:
// the current GEM phase, active alarm count, and counters for T3
// timeouts and outbound event reports.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every gauge/counter one device instance reports. A
// process hosting several devices constructs one Metrics per device,
// distinguished by the deviceID constant label.
type Metrics struct {
	Phase           prometheus.Gauge
	ControlState    prometheus.Gauge
	ProcessState    prometheus.Gauge
	ActiveAlarms    prometheus.Gauge
	Connected       prometheus.Gauge
	T3Timeouts      prometheus.Counter
	EventsSent      prometheus.Counter
	AlarmsSent      prometheus.Counter
	TransactionsRTT prometheus.Histogram
}

// NewMetrics constructs and registers a Metrics set against reg,
// labeled with deviceID so multiple devices in one process do not
// collide.
func NewMetrics(reg prometheus.Registerer, deviceID string) *Metrics {
	labels := prometheus.Labels{"device_id": deviceID}
	m := &Metrics{
		Phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gem",
			Name:        "communication_phase",
			Help:        "Current GEM six-phase communication state (0=NotConnected .. 5=Initialized).",
			ConstLabels: labels,
		}),
		ControlState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gem",
			Name:        "control_state",
			Help:        "Current SEMI E30 control state (0=EquipmentOffline .. 4=OnlineRemote).",
			ConstLabels: labels,
		}),
		ProcessState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gem",
			Name:        "process_state",
			Help:        "Current dicing-tool process state.",
			ConstLabels: labels,
		}),
		ActiveAlarms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gem",
			Name:        "active_alarm_count",
			Help:        "Number of alarms currently active.",
			ConstLabels: labels,
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "gem",
			Name:        "hsms_selected",
			Help:        "1 when the HSMS session is in the Selected state, 0 otherwise.",
			ConstLabels: labels,
		}),
		T3Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gem",
			Name:        "t3_timeouts_total",
			Help:        "Total primaries sent that did not receive a reply within T3.",
			ConstLabels: labels,
		}),
		EventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gem",
			Name:        "s6f11_sent_total",
			Help:        "Total S6F11 collection event reports transmitted.",
			ConstLabels: labels,
		}),
		AlarmsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "gem",
			Name:        "s5f1_sent_total",
			Help:        "Total S5F1 alarm reports transmitted.",
			ConstLabels: labels,
		}),
		TransactionsRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "gem",
			Name:        "transaction_rtt_seconds",
			Help:        "Round trip time between a W=1 primary and its reply.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.Phase, m.ControlState, m.ProcessState, m.ActiveAlarms, m.Connected,
		m.T3Timeouts, m.EventsSent, m.AlarmsSent, m.TransactionsRTT,
	)
	return m
}
