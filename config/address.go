// Package config validates and holds the CLI-level configuration for the
// sender and emulator binaries. It follows the same validate-then-publish
// shape as the teacher's Rule.verify(): parse into a typed struct, reject
// bad input before the caller binds a socket.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// MinPort and MaxPort bound the UDP port range accepted by both binaries,
// ported from the original source's check_port callback.
const (
	MinPort = 32768
	MaxPort = 61000
)

// Address is an (ip, port) pair, validated against the original source's
// check_address / check_port rules.
type Address struct {
	IP   string
	Port int
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

// ValidatePort rejects ports outside [MinPort, MaxPort].
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("need %d <= port <= %d, got %d", MinPort, MaxPort, port)
	}
	return nil
}

// ValidateIP rejects anything that isn't four dot-separated octets in
// [0,255], matching the original's string-split validation rather than
// net.ParseIP so that e.g. "999.1.1.1" is rejected the same way.
func ValidateIP(ip string) error {
	octets := strings.Split(ip, ".")
	if len(octets) != 4 {
		return fmt.Errorf("IP address must be specified as [0-255].[0-255].[0-255].[0-255], got %q", ip)
	}
	for _, o := range octets {
		v, err := strconv.Atoi(o)
		if err != nil || v < 0 || v > 255 {
			return fmt.Errorf("IP address must be specified as [0-255].[0-255].[0-255].[0-255], got %q", ip)
		}
	}
	return nil
}

// ParseAddress validates ip and port and returns the resulting Address.
func ParseAddress(ip string, port int) (Address, error) {
	if err := ValidateIP(ip); err != nil {
		return Address{}, err
	}
	if err := ValidatePort(port); err != nil {
		return Address{}, err
	}
	return Address{IP: ip, Port: port}, nil
}

// ParseHostPort splits "host:port" and validates the port only — used for
// --server-address, where the host is typically a hostname or loopback
// rather than a bindable local IP.
func ParseHostPort(hostport string) (string, int, error) {
	idx := strings.LastIndex(hostport, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid host:port %q", hostport)
	}
	host := hostport[:idx]
	port, err := strconv.Atoi(hostport[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", hostport, err)
	}
	if err := ValidatePort(port); err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// ParseIndexList parses a comma-separated list of 1-based packet indices,
// as used by --drop-client-packets, --drop-server-packets, and
// --generate-three-dup-acks. An empty string yields an empty, non-nil set.
func ParseIndexList(s string) (map[int]bool, error) {
	set := map[int]bool{}
	if s == "" {
		return set, nil
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid packet index %q: %w", tok, err)
		}
		set[n] = true
	}
	return set, nil
}

// ParseBufferSchedule parses "delta1@round1,delta2@round2,..." into a map
// from round-containing-server-packets to the capacity delta applied at
// that round, as used by --set-server-buffer-size-changes.
func ParseBufferSchedule(s string) (map[int]int, error) {
	schedule := map[int]int{}
	if s == "" {
		return schedule, nil
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.SplitN(tok, "@", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid buffer size change %q, want delta@round", tok)
		}
		delta, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid delta in %q: %w", tok, err)
		}
		round, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid round in %q: %w", tok, err)
		}
		schedule[round] = delta
	}
	return schedule, nil
}
