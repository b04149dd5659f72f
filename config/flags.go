package config

import (
	"flag"
	"fmt"
	"time"
)

// SenderFlags holds the validated CLI configuration for cmd/sender.
type SenderFlags struct {
	Listen         Address
	MetricsAddress string
	LogLevel       string
}

// ParseSenderFlags parses and validates the sender's flag set.
func ParseSenderFlags(fs *flag.FlagSet, args []string) (*SenderFlags, error) {
	ip := fs.String("address", "127.0.0.1", "IP address to listen on")
	ipShort := fs.String("a", "127.0.0.1", "IP address to listen on (shorthand)")
	port := fs.Int("port", 50023, "UDP port to listen on")
	portShort := fs.Int("p", 50023, "UDP port to listen on (shorthand)")
	metricsAddr := fs.String("metrics-address", "", "optional host:port to serve Prometheus metrics on")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	chosenIP := *ip
	if *ipShort != "127.0.0.1" {
		chosenIP = *ipShort
	}
	chosenPort := *port
	if *portShort != 50023 {
		chosenPort = *portShort
	}

	addr, err := ParseAddress(chosenIP, chosenPort)
	if err != nil {
		return nil, err
	}

	return &SenderFlags{
		Listen:         addr,
		MetricsAddress: *metricsAddr,
		LogLevel:       *logLevel,
	}, nil
}

// EmulatorFlags holds the validated CLI configuration for cmd/emulator,
// ported from the original source's setup_option_parser / setup_buffers /
// setup_packet_processor.
type EmulatorFlags struct {
	Listen            Address
	ServerHost        string
	ServerPort        int
	OutputFile        string
	DropClientPackets map[int]bool
	DropServerPackets map[int]bool
	ThreeDupAcks      map[int]bool
	QueueDelay        time.Duration
	ServerBufferSize  int
	BufferSchedule    map[int]int
	MetricsAddress    string
	LogLevel          string
}

// ParseEmulatorFlags parses and validates the emulator's flag set.
func ParseEmulatorFlags(fs *flag.FlagSet, args []string) (*EmulatorFlags, error) {
	ip := fs.String("address", "127.0.0.1", "IP address to listen on")
	ipShort := fs.String("a", "127.0.0.1", "IP address to listen on (shorthand)")
	port := fs.Int("port", 40023, "UDP port to listen on")
	portShort := fs.Int("p", 40023, "UDP port to listen on (shorthand)")
	serverAddr := fs.String("server-address", "127.0.0.1:50023", "server address")
	outFile := fs.String("output-file", "client_file.txt", "output filename")
	dropClient := fs.String("drop-client-packets", "", "comma-separated 1-based client packet indices to drop")
	dropServer := fs.String("drop-server-packets", "", "comma-separated 1-based server packet indices to drop")
	threeDup := fs.String("generate-three-dup-acks", "", "comma-separated client packet indices to triple-ack")
	queueDelay := fs.Float64("set-queue-delay", 0.1, "per-round queuing delay, seconds")
	bufSize := fs.Int("set-server-buffer-size", 0, "server buffer capacity (0 = unlimited)")
	bufChanges := fs.String("set-server-buffer-size-changes", "", "delta@round,... capacity change schedule")
	metricsAddr := fs.String("metrics-address", "", "optional host:port to serve Prometheus metrics on")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	chosenIP := *ip
	if *ipShort != "127.0.0.1" {
		chosenIP = *ipShort
	}
	chosenPort := *port
	if *portShort != 40023 {
		chosenPort = *portShort
	}

	addr, err := ParseAddress(chosenIP, chosenPort)
	if err != nil {
		return nil, err
	}

	serverHost, serverPort, err := ParseHostPort(*serverAddr)
	if err != nil {
		return nil, err
	}

	dropClientSet, err := ParseIndexList(*dropClient)
	if err != nil {
		return nil, err
	}
	dropServerSet, err := ParseIndexList(*dropServer)
	if err != nil {
		return nil, err
	}
	threeDupSet, err := ParseIndexList(*threeDup)
	if err != nil {
		return nil, err
	}
	schedule, err := ParseBufferSchedule(*bufChanges)
	if err != nil {
		return nil, err
	}

	if *queueDelay < 0 {
		return nil, fmt.Errorf("queue delay must be non-negative, got %f", *queueDelay)
	}

	size := *bufSize
	if size <= 0 {
		size = int(^uint(0) >> 1) // unlimited, matches sys.maxsize sentinel
	}

	return &EmulatorFlags{
		Listen:            addr,
		ServerHost:        serverHost,
		ServerPort:        serverPort,
		OutputFile:        *outFile,
		DropClientPackets: dropClientSet,
		DropServerPackets: dropServerSet,
		ThreeDupAcks:      threeDupSet,
		QueueDelay:        time.Duration(*queueDelay * float64(time.Second)),
		ServerBufferSize:  size,
		BufferSchedule:    schedule,
		MetricsAddress:    *metricsAddr,
		LogLevel:          *logLevel,
	}, nil
}
