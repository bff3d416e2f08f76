// Ambient observability (§4.8 expansion, not a spec'd feature): per-link
// queue depth, contact transition counters, custody retries, and
// event-queue depth/latency, wired the way stats/target_stats.go wires
// its own counters — named, registered once, updated from the single
// dispatcher goroutine.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every prometheus collector the daemon updates. A nil
// *Metrics is safe to call methods on and does nothing, so tests and the
// unconfigured-registry path don't need to special-case metrics
// collection.
type Metrics struct {
	reg *prometheus.Registry

	linkQueueDepth   *prometheus.GaugeVec
	contactTransitions *prometheus.CounterVec
	custodyRetries   prometheus.Counter
	eventQueueDepth  prometheus.Gauge
	eventLatency     *prometheus.HistogramVec
	nodePressure     *prometheus.GaugeVec
	diskThroughput   *prometheus.GaugeVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		linkQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dtnd_link_queue_depth",
			Help: "Pending bundle count on a link's outbound queue.",
		}, []string{"link"}),
		contactTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dtnd_contact_transitions_total",
			Help: "Contact state transitions, by link and resulting state.",
		}, []string{"link", "state"}),
		custodyRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dtnd_custody_retries_total",
			Help: "Custody retransmission attempts across all tracked bundles.",
		}),
		eventQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dtnd_event_queue_depth",
			Help: "Events currently queued for the dispatcher.",
		}),
		eventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dtnd_event_handler_latency_seconds",
			Help:    "Time spent inside a single event handler.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		nodePressure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dtnd_node_pressure_ratio",
			Help: "Fraction of capacity in use for a node resource (memory, disk), as reported by the Kubernetes discovery driver.",
		}, []string{"resource"}),
		diskThroughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dtnd_disk_throughput_bytes_per_second",
			Help: "Per-drive read/write throughput sampled by stats.DiskSampler.",
		}, []string{"drive", "direction"}),
	}
	reg.MustRegister(m.linkQueueDepth, m.contactTransitions, m.custodyRetries, m.eventQueueDepth, m.eventLatency,
		m.nodePressure, m.diskThroughput)
	return m
}

func (m *Metrics) setLinkQueueDepth(link string, depth int) {
	if m == nil {
		return
	}
	m.linkQueueDepth.WithLabelValues(link).Set(float64(depth))
}

func (m *Metrics) observeContactTransition(link, state string) {
	if m == nil {
		return
	}
	m.contactTransitions.WithLabelValues(link, state).Inc()
}

func (m *Metrics) incCustodyRetry() {
	if m == nil {
		return
	}
	m.custodyRetries.Inc()
}

func (m *Metrics) setEventQueueDepth(n int) {
	if m == nil {
		return
	}
	m.eventQueueDepth.Set(float64(n))
}

func (m *Metrics) observeEventLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.eventLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) setNodePressure(resource string, ratio float64) {
	if m == nil {
		return
	}
	m.nodePressure.WithLabelValues(resource).Set(ratio)
}

func (m *Metrics) setDiskThroughput(drive, direction string, bps float64) {
	if m == nil {
		return
	}
	m.diskThroughput.WithLabelValues(drive, direction).Set(bps)
}
