// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"github.com/ZaparooProject/go-xbee"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "xbee"
	metricsSubsystem = "service"
)

// Collector exports a runner's counters and network state to Prometheus.
// Collect takes the runner's lock, so it must not be triggered from an
// observer.
type Collector struct {
	runner      *Runner
	ticks       *prometheus.Desc
	clamped     *prometheus.Desc
	bytesRead   *prometheus.Desc
	readErrors  *prometheus.Desc
	reconnects  *prometheus.Desc
	tickLatency *prometheus.Desc
	state       *prometheus.Desc
	active      *prometheus.Desc
	frames      *prometheus.Desc
	peers       *prometheus.Desc
	modemStatus *prometheus.Desc
}

// NewCollector describes r's metrics. constLabels are attached to every
// series, typically the port name when several radios are served.
func NewCollector(r *Runner, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, name),
			help, nil, constLabels,
		)
	}
	return &Collector{
		runner:      r,
		ticks:       desc("ticks_total", "Network.Service calls."),
		clamped:     desc("clamped_ticks_total", "Ticks whose elapsed time was capped after a sleep."),
		bytesRead:   desc("read_bytes_total", "Bytes read from the transport."),
		readErrors:  desc("read_errors_total", "Failed transport reads."),
		reconnects:  desc("reconnects_total", "Successful transport reopens."),
		tickLatency: desc("tick_latency_seconds", "Duration of the last Service call."),
		state:       desc("state", "Runner lifecycle stage: 0 idle, 1 running, 2 recovering, 3 stopped."),
		active:      desc("transactions_active", "Transaction slots in use."),
		frames:      desc("frames_assigned_total", "Frame ids handed out, including rollovers."),
		peers:       desc("peers", "Peers known from node discovery."),
		modemStatus: desc("modem_status", "Last modem status code reported by the radio."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.ticks, c.clamped, c.bytesRead, c.readErrors, c.reconnects,
		c.tickLatency, c.state, c.active, c.frames, c.peers, c.modemStatus,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.runner.Metrics()
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(m.Ticks))
	ch <- prometheus.MustNewConstMetric(c.clamped, prometheus.CounterValue, float64(m.ClampedTicks))
	ch <- prometheus.MustNewConstMetric(c.bytesRead, prometheus.CounterValue, float64(m.BytesRead))
	ch <- prometheus.MustNewConstMetric(c.readErrors, prometheus.CounterValue, float64(m.ReadErrors))
	ch <- prometheus.MustNewConstMetric(c.reconnects, prometheus.CounterValue, float64(m.Reconnects))
	ch <- prometheus.MustNewConstMetric(c.tickLatency, prometheus.GaugeValue, m.LastTickLatency.Seconds())
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(c.runner.State()))

	var (
		active int
		frames uint64
		peers  int
		status xbee.ModemStatus
	)
	c.runner.Do(func(n *xbee.Network) {
		active = n.ActiveTransactions()
		frames = n.TotalTransactions()
		peers = len(n.Peers())
		status = n.Status()
	})
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(active))
	ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(frames))
	ch <- prometheus.MustNewConstMetric(c.peers, prometheus.GaugeValue, float64(peers))
	ch <- prometheus.MustNewConstMetric(c.modemStatus, prometheus.GaugeValue, float64(status))
}
