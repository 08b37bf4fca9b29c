package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "simple_tunnel"

var (
	descChannelsActive = prometheus.NewDesc(namespace+"_channels_active",
		"Channels currently relaying.", nil, nil)
	descChannelsTotal = prometheus.NewDesc(namespace+"_channels_total",
		"Channels established since start.", nil, nil)
	descBytes = prometheus.NewDesc(namespace+"_bytes_forwarded_total",
		"Bytes relayed, by direction.", []string{"direction"}, nil)
	descDialAttempts = prometheus.NewDesc(namespace+"_dial_attempts_total",
		"Outbound connection attempts.", nil, nil)
	descDialFailures = prometheus.NewDesc(namespace+"_dial_failures_total",
		"Failed outbound connection attempts.", nil, nil)
	descAccepts = prometheus.NewDesc(namespace+"_accepts_total",
		"Inbound connections accepted.", nil, nil)
	descGateSkips = prometheus.NewDesc(namespace+"_gate_skips_total",
		"Trigger connections closed before sending data.", nil, nil)
	descErrors = prometheus.NewDesc(namespace+"_errors_total",
		"Errors recorded.", nil, nil)
	descTransitions = prometheus.NewDesc(namespace+"_state_transitions_total",
		"Topology controller state changes.", nil, nil)
)

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descChannelsActive
	ch <- descChannelsTotal
	ch <- descBytes
	ch <- descDialAttempts
	ch <- descDialFailures
	ch <- descAccepts
	ch <- descGateSkips
	ch <- descErrors
	ch <- descTransitions
}

// Collect implements [prometheus.Collector] by reading the atomic
// counters at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()
	ch <- prometheus.MustNewConstMetric(descChannelsActive, prometheus.GaugeValue, float64(s.ChannelsActive))
	ch <- prometheus.MustNewConstMetric(descChannelsTotal, prometheus.CounterValue, float64(s.ChannelsTotal))
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue, float64(s.BytesLeftToRight), LeftToRight.String())
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue, float64(s.BytesRightToLeft), RightToLeft.String())
	ch <- prometheus.MustNewConstMetric(descDialAttempts, prometheus.CounterValue, float64(s.DialAttempts))
	ch <- prometheus.MustNewConstMetric(descDialFailures, prometheus.CounterValue, float64(s.DialFailures))
	ch <- prometheus.MustNewConstMetric(descAccepts, prometheus.CounterValue, float64(s.Accepts))
	ch <- prometheus.MustNewConstMetric(descGateSkips, prometheus.CounterValue, float64(s.GateSkips))
	ch <- prometheus.MustNewConstMetric(descErrors, prometheus.CounterValue, float64(s.ErrorsTotal))
	ch <- prometheus.MustNewConstMetric(descTransitions, prometheus.CounterValue, float64(s.Transitions))
}

// Registry returns a registry holding only this collector, so the
// exported series are exactly the tunnel's own.
func (c *Collector) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return reg
}
