package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EmulatorCollector reports the network emulator's round-level counters
// and current buffer capacities, in the same custom-collector shape as
// SenderCollector.
type EmulatorCollector struct {
	mu sync.Mutex

	totalRounds          int
	totalServerPackets   int
	totalEcnPackets      int
	additionalSrvPackets int
	serverBufferCapacity int
	clientBufferCapacity int

	rounds          *prometheus.Desc
	serverPackets   *prometheus.Desc
	ecnPackets      *prometheus.Desc
	additionalAfter *prometheus.Desc
	serverBuffer    *prometheus.Desc
	clientBuffer    *prometheus.Desc
}

// NewEmulatorCollector returns a collector reporting zero values until
// Update is called.
func NewEmulatorCollector() *EmulatorCollector {
	return &EmulatorCollector{
		rounds:          prometheus.NewDesc("flowcast_emulator_rounds_total", "Queuing rounds completed so far.", nil, nil),
		serverPackets:   prometheus.NewDesc("flowcast_emulator_server_packets_total", "Server-origin datagrams seen so far.", nil, nil),
		ecnPackets:      prometheus.NewDesc("flowcast_emulator_ecn_packets_total", "Datagrams reflected back as ECN overflow notices.", nil, nil),
		additionalAfter: prometheus.NewDesc("flowcast_emulator_additional_server_packets_total", "Server packets seen after the transfer's logical end.", nil, nil),
		serverBuffer:    prometheus.NewDesc("flowcast_emulator_server_buffer_capacity", "Current server-direction buffer capacity.", nil, nil),
		clientBuffer:    prometheus.NewDesc("flowcast_emulator_client_buffer_capacity", "Current client-direction buffer capacity.", nil, nil),
	}
}

// Update replaces the collector's snapshot, called once per round by the
// emulator loop.
func (c *EmulatorCollector) Update(rounds, serverPackets, ecnPackets, additional, serverBufCap, clientBufCap int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRounds = rounds
	c.totalServerPackets = serverPackets
	c.totalEcnPackets = ecnPackets
	c.additionalSrvPackets = additional
	c.serverBufferCapacity = serverBufCap
	c.clientBufferCapacity = clientBufCap
}

func (c *EmulatorCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.rounds
	descs <- c.serverPackets
	descs <- c.ecnPackets
	descs <- c.additionalAfter
	descs <- c.serverBuffer
	descs <- c.clientBuffer
}

func (c *EmulatorCollector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics <- prometheus.MustNewConstMetric(c.rounds, prometheus.CounterValue, float64(c.totalRounds))
	metrics <- prometheus.MustNewConstMetric(c.serverPackets, prometheus.CounterValue, float64(c.totalServerPackets))
	metrics <- prometheus.MustNewConstMetric(c.ecnPackets, prometheus.CounterValue, float64(c.totalEcnPackets))
	metrics <- prometheus.MustNewConstMetric(c.additionalAfter, prometheus.CounterValue, float64(c.additionalSrvPackets))
	metrics <- prometheus.MustNewConstMetric(c.serverBuffer, prometheus.GaugeValue, float64(c.serverBufferCapacity))
	metrics <- prometheus.MustNewConstMetric(c.clientBuffer, prometheus.GaugeValue, float64(c.clientBufferCapacity))
}
