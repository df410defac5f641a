/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package stats

import "github.com/prometheus/client_golang/prometheus"

// PrometheusCollector adapts a Collector into a prometheus.Collector,
// snapshotting the eight counters on every scrape. This is additive to the
// spec's plain-text shutdown dump — Register is only ever called when the
// operator opted into --metrics-addr.
type PrometheusCollector struct {
	src *Collector

	active           *prometheus.Desc
	maxActive        *prometheus.Desc
	recycled         *prometheus.Desc
	totalAccepted    *prometheus.Desc
	activeShutdowned *prometheus.Desc
	outOfWork        *prometheus.Desc
	timedOut         *prometheus.Desc
	errorStopped     *prometheus.Desc
}

// NewPrometheusCollector wraps c for registration with a prometheus.Registry.
func NewPrometheusCollector(c *Collector) *PrometheusCollector {
	const ns = "echo_server"
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(ns+"_"+name, help, nil, nil)
	}

	return &PrometheusCollector{
		src:              c,
		active:           desc("active_sessions", "Number of currently active sessions."),
		maxActive:        desc("max_active_sessions", "Maximum observed active session count."),
		recycled:         desc("recycled_sessions", "Number of sessions sitting in the recycle pool."),
		totalAccepted:    desc("total_accepted", "Total number of sessions ever accepted."),
		activeShutdowned: desc("active_shutdowned_total", "Sessions stopped by operator-initiated shutdown."),
		outOfWork:        desc("out_of_work_total", "Sessions stopped because they ran out of work."),
		timedOut:         desc("timed_out_total", "Sessions stopped by inactivity timeout."),
		errorStopped:     desc("error_stopped_total", "Sessions stopped by any other error."),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.active
	ch <- p.maxActive
	ch <- p.recycled
	ch <- p.totalAccepted
	ch <- p.activeShutdowned
	ch <- p.outOfWork
	ch <- p.timedOut
	ch <- p.errorStopped
}

// Collect implements prometheus.Collector.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.src.Snapshot()

	ch <- prometheus.MustNewConstMetric(p.active, prometheus.GaugeValue, float64(s.Active))
	ch <- prometheus.MustNewConstMetric(p.maxActive, prometheus.GaugeValue, float64(s.MaxActive))
	ch <- prometheus.MustNewConstMetric(p.recycled, prometheus.GaugeValue, float64(s.Recycled))
	ch <- prometheus.MustNewConstMetric(p.totalAccepted, prometheus.CounterValue, float64(s.TotalAccepted))
	ch <- prometheus.MustNewConstMetric(p.activeShutdowned, prometheus.CounterValue, float64(s.ActiveShutdowned))
	ch <- prometheus.MustNewConstMetric(p.outOfWork, prometheus.CounterValue, float64(s.OutOfWork))
	ch <- prometheus.MustNewConstMetric(p.timedOut, prometheus.CounterValue, float64(s.TimedOut))
	ch <- prometheus.MustNewConstMetric(p.errorStopped, prometheus.CounterValue, float64(s.ErrorStopped))
}
