// Package metrics exposes Prometheus collectors over the sender's
// congestion state and the emulator's buffer/ECN counters, in the same
// Describe/Collect custom-collector shape as
// runZeroInc-conniver/pkg/exporter/exporter.go's TCPInfoCollector.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"flowcast/congestion"
)

// SenderCollector reports live gauges over one sender.Controller's
// congestion state, labeled by a per-transfer correlation ID so repeated
// transfers in the same process don't collide on scrape.
type SenderCollector struct {
	mu         sync.Mutex
	transferID string
	state      *congestion.State

	cwnd          *prometheus.Desc
	ssthresh      *prometheus.Desc
	lastAck       *prometheus.Desc
	lastSent      *prometheus.Desc
	dupAcks       *prometheus.Desc
	rtoSeconds    *prometheus.Desc
	rttSeconds    *prometheus.Desc
	timerInFlight *prometheus.Desc
}

// NewSenderCollector returns a collector that emits no samples until
// Attach is called with a live congestion.State.
func NewSenderCollector() *SenderCollector {
	labels := []string{"transfer"}
	return &SenderCollector{
		cwnd:          prometheus.NewDesc("flowcast_sender_cwnd", "Current congestion window, in segments.", labels, nil),
		ssthresh:      prometheus.NewDesc("flowcast_sender_ssthresh", "Slow-start threshold, in segments.", labels, nil),
		lastAck:       prometheus.NewDesc("flowcast_sender_last_ack", "Highest cumulative ACK observed.", labels, nil),
		lastSent:      prometheus.NewDesc("flowcast_sender_last_sent", "Highest sequence number ever transmitted.", labels, nil),
		dupAcks:       prometheus.NewDesc("flowcast_sender_dup_ack_count", "Consecutive duplicate ACKs of last_ack.", labels, nil),
		rtoSeconds:    prometheus.NewDesc("flowcast_sender_rto_seconds", "Current retransmission timeout.", labels, nil),
		rttSeconds:    prometheus.NewDesc("flowcast_sender_rtt_seconds", "Smoothed round-trip-time estimate.", labels, nil),
		timerInFlight: prometheus.NewDesc("flowcast_sender_timer_in_flight", "Timer-triggered retransmissions not yet acknowledged.", labels, nil),
	}
}

// Attach points the collector at a transfer's congestion state. Passing a
// nil state detaches it; Collect then emits nothing.
func (c *SenderCollector) Attach(transferID string, state *congestion.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transferID = transferID
	c.state = state
}

func (c *SenderCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.cwnd
	descs <- c.ssthresh
	descs <- c.lastAck
	descs <- c.lastSent
	descs <- c.dupAcks
	descs <- c.rtoSeconds
	descs <- c.rttSeconds
	descs <- c.timerInFlight
}

func (c *SenderCollector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return
	}
	s := c.state
	metrics <- prometheus.MustNewConstMetric(c.cwnd, prometheus.GaugeValue, float64(s.Cwnd), c.transferID)
	metrics <- prometheus.MustNewConstMetric(c.ssthresh, prometheus.GaugeValue, float64(s.Ssthresh), c.transferID)
	metrics <- prometheus.MustNewConstMetric(c.lastAck, prometheus.GaugeValue, float64(s.LastAck), c.transferID)
	metrics <- prometheus.MustNewConstMetric(c.lastSent, prometheus.GaugeValue, float64(s.LastSent), c.transferID)
	metrics <- prometheus.MustNewConstMetric(c.dupAcks, prometheus.GaugeValue, float64(s.DupAckCount), c.transferID)
	metrics <- prometheus.MustNewConstMetric(c.rtoSeconds, prometheus.GaugeValue, s.RTO.Seconds(), c.transferID)
	metrics <- prometheus.MustNewConstMetric(c.rttSeconds, prometheus.GaugeValue, s.RTT.Seconds(), c.transferID)
	metrics <- prometheus.MustNewConstMetric(c.timerInFlight, prometheus.GaugeValue, float64(s.TimerInFlight), c.transferID)
}
