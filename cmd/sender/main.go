package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"flowcast/config"
	"flowcast/metrics"
	"flowcast/sender"
	"flowcast/stats"
	"flowcast/utils"
)

// sourceFile matches the original source's hardcoded server_file.txt.
const sourceFile = "server_file.txt"

func main() {
	flags, err := config.ParseSenderFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowcast-sender: %v\n", err)
		os.Exit(1)
	}

	log := utils.NewLogger(flags.LogLevel, "")
	defer log.Sync()

	content, err := os.ReadFile(sourceFile)
	if err != nil {
		log.Fatal("failed to read source file", zap.String("file", sourceFile), zap.Error(err))
	}
	lines := stats.SplitLines(string(content))

	conn, err := net.ListenPacket("udp", flags.Listen.String())
	if err != nil {
		log.Fatal("failed to bind UDP socket", zap.String("address", flags.Listen.String()), zap.Error(err))
	}
	defer conn.Close()

	var collector *metrics.SenderCollector
	if flags.MetricsAddress != "" {
		collector = metrics.NewSenderCollector()
		prometheus.MustRegister(collector)
		go serveMetrics(flags.MetricsAddress, log)
	}

	ctrl := sender.New(sender.NewSocket(conn), lines, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.RunTimers(ctx)

	log.Info("listening",
		zap.String("address", flags.Listen.String()),
		zap.String("file", sourceFile),
		zap.Int("lines", len(lines)),
	)

	buf := make([]byte, 512)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			log.Error("read failed", zap.Error(err))
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		if err := ctrl.OnDatagram(peer, datagram); err != nil {
			log.Debug("discarded datagram", zap.Stringer("peer", peer), zap.Error(err))
		}
	}
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", zap.Error(err))
	}
}
