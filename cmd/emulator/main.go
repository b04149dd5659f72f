package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"flowcast/config"
	"flowcast/metrics"
	"flowcast/netem"
	"flowcast/stats"
	"flowcast/utils"
)

func main() {
	flags, err := config.ParseEmulatorFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowcast-emulator: %v\n", err)
		os.Exit(1)
	}

	log := utils.NewLogger(flags.LogLevel, "")
	defer log.Sync()

	conn, err := net.ListenPacket("udp", flags.Listen.String())
	if err != nil {
		log.Fatal("failed to bind UDP socket", zap.String("address", flags.Listen.String()), zap.Error(err))
	}
	defer conn.Close()

	serverAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", flags.ServerHost, flags.ServerPort))
	if err != nil {
		log.Fatal("invalid server address", zap.Error(err))
	}

	var collector *metrics.EmulatorCollector
	if flags.MetricsAddress != "" {
		collector = metrics.NewEmulatorCollector()
		prometheus.MustRegister(collector)
		go serveMetrics(flags.MetricsAddress, log)
	}

	schedule := netem.NewSchedule(flags.DropClientPackets, flags.DropServerPackets, flags.ThreeDupAcks, flags.BufferSchedule)
	ownID := fmt.Sprintf("%s:%d", flags.Listen.IP, flags.Listen.Port)
	em := netem.New(conn, serverAddr, ownID, flags.ServerBufferSize, schedule, flags.QueueDelay, collector, log)

	log.Info("starting transfer",
		zap.String("address", flags.Listen.String()),
		zap.String("server", serverAddr.String()),
	)

	bar := progressbar.DefaultBytes(-1, "transferring")

	result, err := em.Run()
	bar.Finish()
	if err != nil {
		log.Fatal("transfer failed", zap.Error(err))
	}

	if result.Failed {
		fmt.Fprintln(os.Stderr, "\nERROR: failed transfer, server not responding anymore")
	}

	if err := os.WriteFile(flags.OutputFile, []byte(result.Received), 0o644); err != nil {
		log.Fatal("failed to write output file", zap.String("file", flags.OutputFile), zap.Error(err))
	}

	var diffs []stats.DiffLine
	if sourceContent, err := os.ReadFile("server_file.txt"); err == nil {
		diffs = stats.Diff(stats.SplitLines(result.Received), stats.SplitLines(string(sourceContent)))
	}

	fmt.Print(stats.Format(diffs, stats.Report{
		TotalEcnPackets:      result.TotalEcnPackets,
		TotalServerPackets:   result.TotalServerPackets,
		TotalRounds:          result.TotalRounds,
		AdditionalSrvPackets: result.AdditionalSrvPackets,
		Duration:             result.Duration.Seconds(),
	}))

	if result.Failed {
		os.Exit(1)
	}
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", zap.Error(err))
	}
}
