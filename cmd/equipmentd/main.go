// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Command equipmentd runs one dicing-tool equipment-side SECS/GEM
// endpoint: an HSMS session, the GEM state machines, and a Prometheus
// metrics endpoint.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aimfab/gem/device"
	"github.com/aimfab/gem/gem"
	"github.com/aimfab/gem/item"
	"github.com/aimfab/gem/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	addr := flag.String("hsms-addr", ":5000", "HSMS listen address (passive role)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics listen address")
	deviceID := flag.Uint("device-id", 0, "SECS-II device id")
	mdln := flag.String("mdln", "DICER-1", "equipment model name reported in S1F2/S1F14")
	flag.Parse()

	cfg := device.DefaultConfig(*addr)
	cfg.DeviceID = uint16(*deviceID)
	cfg.MDLN = *mdln

	seed := device.Seed{
		SVIDs: []model.SVID{
			{ID: 1, Name: "ControlState", DataType: item.FormatU1, Value: item.U1Item(0), ReadOnly: true},
			{ID: 2, Name: "ProcessState", DataType: item.FormatU1, Value: item.U1Item(0), ReadOnly: true},
			{ID: 3, Name: "AlarmsSet", DataType: item.FormatList, Value: item.L(), ReadOnly: true},
		},
		ECIDs: []model.ECID{
			{ID: 100, Name: "BladeRPMSetpoint", DataType: item.FormatU4, Value: item.U4Item(30000), Min: item.U4Item(5000), Max: item.U4Item(60000), Default: item.U4Item(30000)},
			{ID: 101, Name: "FeedRateSetpoint", DataType: item.FormatU4, Value: item.U4Item(10), Min: item.U4Item(1), Max: item.U4Item(200), Default: item.U4Item(10)},
		},
		ALIDs: []model.ALID{
			{ID: 5000, Name: "ChuckVacuumLost", Priority: 1},
			{ID: 5001, Name: "BladeBreakage", Priority: 2},
			{ID: 5002, Name: "CoolantFlowLow", Priority: 1},
		},
		CEIDs: []model.CEID{
			{ID: 200, Name: "ControlStateChange", Enabled: true},
			{ID: 201, Name: "ControlModeChange", Enabled: true},
			{ID: 202, Name: "ProcessComplete"},
			{ID: 203, Name: "ProcessAborted"},
		},
	}

	reg := prometheus.NewRegistry()
	dev, err := device.New(cfg, seed, nil, reg)
	if err != nil {
		logrus.WithError(err).Fatal("equipmentd: failed to construct device")
	}

	dev.RegisterHostCommand("START", func(ctx context.Context, params item.Item) (byte, error) {
		remote := dev.Control.State() == gem.OnlineRemote
		if !remote || dev.Gate.Phase() != gem.Initialized {
			return 1, nil
		}
		if err := dev.Process.Start(true); err != nil {
			return 2, nil
		}
		return 0, nil
	})
	dev.RegisterHostCommand("ABORT", func(ctx context.Context, params item.Item) (byte, error) {
		if err := dev.Process.Abort(); err != nil {
			return 1, nil
		}
		return 0, nil
	})
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			logrus.WithError(err).Error("equipmentd: metrics server exited")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logrus.WithField("addr", *addr).Info("equipmentd: starting HSMS session")
	if err := dev.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("equipmentd: session terminated")
	}
}
