// Package metrics exposes cycle health as Prometheus metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Exporter implements prometheus.Collector over the stats of the most
// recent refresh cycle.
type Exporter struct {
	mu           sync.Mutex
	lastSuccess  bool
	collectors   int
	devices      int
	skippedTotal uint64
	cyclesTotal  uint64
	failedTotal  uint64
	lastDuration time.Duration

	successDesc  *prometheus.Desc
	collectorsD  *prometheus.Desc
	devicesDesc  *prometheus.Desc
	skippedDesc  *prometheus.Desc
	cyclesDesc   *prometheus.Desc
	failedDesc   *prometheus.Desc
	durationDesc *prometheus.Desc
}

// NewExporter builds an unregistered exporter.
func NewExporter() *Exporter {
	return &Exporter{
		successDesc: prometheus.NewDesc("dessmonitor_cycle_success",
			"Whether the most recent refresh cycle succeeded (1) or failed (0).", nil, nil),
		collectorsD: prometheus.NewDesc("dessmonitor_collectors",
			"Collectors discovered in the most recent cycle.", nil, nil),
		devicesDesc: prometheus.NewDesc("dessmonitor_devices",
			"Devices with fresh data in the most recent cycle.", nil, nil),
		skippedDesc: prometheus.NewDesc("dessmonitor_skipped_items_total",
			"Collectors and devices skipped due to errors, cumulative.", nil, nil),
		cyclesDesc: prometheus.NewDesc("dessmonitor_cycles_total",
			"Refresh cycles attempted, cumulative.", nil, nil),
		failedDesc: prometheus.NewDesc("dessmonitor_cycles_failed_total",
			"Refresh cycles that failed outright, cumulative.", nil, nil),
		durationDesc: prometheus.NewDesc("dessmonitor_cycle_duration_seconds",
			"Wall-clock duration of the most recent refresh cycle.", nil, nil),
	}
}

// RecordCycle stores the outcome of one refresh.
func (e *Exporter) RecordCycle(success bool, collectors, devices, skipped int, duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSuccess = success
	e.lastDuration = duration
	e.cyclesTotal++
	if !success {
		e.failedTotal++
	} else {
		e.collectors = collectors
		e.devices = devices
	}
	e.skippedTotal += uint64(skipped)
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.successDesc
	ch <- e.collectorsD
	ch <- e.devicesDesc
	ch <- e.skippedDesc
	ch <- e.cyclesDesc
	ch <- e.failedDesc
	ch <- e.durationDesc
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.Lock()
	defer e.mu.Unlock()

	success := 0.0
	if e.lastSuccess {
		success = 1.0
	}
	ch <- prometheus.MustNewConstMetric(e.successDesc, prometheus.GaugeValue, success)
	ch <- prometheus.MustNewConstMetric(e.collectorsD, prometheus.GaugeValue, float64(e.collectors))
	ch <- prometheus.MustNewConstMetric(e.devicesDesc, prometheus.GaugeValue, float64(e.devices))
	ch <- prometheus.MustNewConstMetric(e.skippedDesc, prometheus.CounterValue, float64(e.skippedTotal))
	ch <- prometheus.MustNewConstMetric(e.cyclesDesc, prometheus.CounterValue, float64(e.cyclesTotal))
	ch <- prometheus.MustNewConstMetric(e.failedDesc, prometheus.CounterValue, float64(e.failedTotal))
	ch <- prometheus.MustNewConstMetric(e.durationDesc, prometheus.GaugeValue, e.lastDuration.Seconds())
}
