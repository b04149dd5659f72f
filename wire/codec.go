// Package wire implements the text-line datagram format shared by the
// sender, receiver, and network emulator: GET, DATA(seq,line), FIN,
// ACK(n), ACK FIN, TERM-ACK, and the ECN overlay prefix.
package wire

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxDatagramSize bounds any encoded message, per the wire contract.
const MaxDatagramSize = 512

// ECNPreamble is the literal prefix the emulator stamps on a server-bound
// datagram it reflects back instead of delivering, due to buffer overflow.
const ECNPreamble = "ECN dropped "

// Kind identifies one of the six canonical message shapes.
type Kind int

const (
	KindGet Kind = iota
	KindData
	KindFin
	KindAck
	KindAckFin
	KindTermAck
)

// Message is a parsed wire datagram. Addr is the bracketed endpoint
// identity token that prefixes every datagram on the wire. Only the
// fields relevant to Kind are populated.
type Message struct {
	Kind     Kind
	Addr     string // "ip:port", without brackets
	Seq      int    // KindData, KindAck
	Line     string // KindData: newline-inclusive content
	Checksum string // KindData
	ECN      bool   // true if this datagram carried the ECN overlay
}

var addrToken = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+:[0-9]+$`)

// shapeSyntax validates the overall shape on a copy with embedded
// newlines removed, exactly as the original source's strict regex does
// (it matches against data.strip().replace("\n","") so a DATA segment's
// embedded newline never breaks the match). Field extraction afterwards
// always uses the original, newline-preserving text.
var shapeSyntax = regexp.MustCompile(`^(?:ECN dropped )?\[[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+:[0-9]+\] (FIN|ACK|ACK FIN|ACK -?[0-9]+|[0-9]+:.*\|.*)$`)
var getShapeSyntax = regexp.MustCompile(`^\[[0-9]+\.[0-9]+\.[0-9]+\.[0-9]+:[0-9]+\] GET$`)

// Checksum returns the hex MD5 digest of line, matching
// hashlib.md5(line.encode()).hexdigest() in the original source.
func Checksum(line string) string {
	sum := md5.Sum([]byte(line))
	return hex.EncodeToString(sum[:])
}

// CheckIntegrity reports whether checksum is the MD5 digest of line.
func CheckIntegrity(line, checksum string) bool {
	return Checksum(line) == checksum
}

// EncodeGet builds the initial "[addr] GET" datagram.
func EncodeGet(addr string) ([]byte, error) {
	return finish(fmt.Sprintf("[%s] GET", addr))
}

// EncodeData builds a "[addr] seq:line|checksum" datagram. line must
// already include its trailing newline, matching the original's
// readlines() semantics.
func EncodeData(addr string, seq int, line string) ([]byte, error) {
	return EncodeDataChecksum(addr, seq, line, Checksum(line))
}

// EncodeDataChecksum builds a DATA datagram from a precomputed checksum,
// letting a caller memoize Checksum(line) across retransmits instead of
// recomputing the MD5 digest on every resend.
func EncodeDataChecksum(addr string, seq int, line, checksum string) ([]byte, error) {
	return finish(fmt.Sprintf("[%s] %d:%s|%s", addr, seq, line, checksum))
}

// EncodeFin builds a "[addr] FIN" datagram.
func EncodeFin(addr string) ([]byte, error) {
	return finish(fmt.Sprintf("[%s] FIN", addr))
}

// EncodeAck builds a "[addr] ACK n" cumulative-ack datagram.
func EncodeAck(addr string, n int) ([]byte, error) {
	return finish(fmt.Sprintf("[%s] ACK %d", addr, n))
}

// EncodeAckFin builds a "[addr] ACK FIN" datagram.
func EncodeAckFin(addr string) ([]byte, error) {
	return finish(fmt.Sprintf("[%s] ACK FIN", addr))
}

// EncodeTermAck builds the sender's final "[addr] ACK" handshake datagram.
func EncodeTermAck(addr string) ([]byte, error) {
	return finish(fmt.Sprintf("[%s] ACK", addr))
}

// WithECN prefixes an already-encoded datagram with the ECN overlay, as
// the emulator does on buffer overflow.
func WithECN(payload []byte) ([]byte, error) {
	return finish(ECNPreamble + string(payload))
}

func finish(s string) ([]byte, error) {
	if len(s) > MaxDatagramSize {
		return nil, fmt.Errorf("wire: encoded message exceeds %d bytes: %d", MaxDatagramSize, len(s))
	}
	return []byte(s), nil
}

// Parse strictly parses a server-origin (or ECN-overlaid) datagram — the
// five shapes a receiver or sender ever accepts from its peer. GET is
// excluded; only ParseClientBound accepts it, since GET only ever
// travels sender-bound. Any datagram that doesn't match one of the
// canonical shapes returns an error; callers discard it without
// surfacing the error further than a debug log.
func Parse(data []byte) (Message, error) {
	text := strings.Trim(string(data), " \t\r\n")
	flattened := strings.ReplaceAll(text, "\n", "")
	if !shapeSyntax.MatchString(flattened) {
		return Message{}, fmt.Errorf("wire: malformed datagram: %q", text)
	}

	ecn := false
	if strings.HasPrefix(text, ECNPreamble) {
		ecn = true
		text = strings.TrimPrefix(text, ECNPreamble)
	}

	bracketEnd := strings.Index(text, "]")
	addr := text[1:bracketEnd]
	if !addrToken.MatchString(addr) {
		return Message{}, fmt.Errorf("wire: malformed endpoint token: %q", addr)
	}
	body := strings.TrimPrefix(text[bracketEnd+1:], " ")

	switch {
	case body == "FIN":
		return Message{Kind: KindFin, Addr: addr, ECN: ecn}, nil
	case body == "ACK FIN":
		return Message{Kind: KindAckFin, Addr: addr, ECN: ecn}, nil
	case body == "ACK":
		return Message{Kind: KindTermAck, Addr: addr, ECN: ecn}, nil
	case strings.HasPrefix(body, "ACK "):
		n, err := strconv.Atoi(strings.TrimPrefix(body, "ACK "))
		if err != nil {
			return Message{}, fmt.Errorf("wire: invalid ack number in %q: %w", body, err)
		}
		return Message{Kind: KindAck, Addr: addr, Seq: n, ECN: ecn}, nil
	default:
		colon := strings.Index(body, ":")
		if colon < 0 {
			return Message{}, fmt.Errorf("wire: malformed data segment: %q", body)
		}
		seq, err := strconv.Atoi(body[:colon])
		if err != nil {
			return Message{}, fmt.Errorf("wire: invalid sequence number in %q: %w", body, err)
		}
		rest := body[colon+1:]
		pipe := strings.LastIndex(rest, "|")
		if pipe < 0 {
			return Message{}, fmt.Errorf("wire: missing checksum delimiter in %q", body)
		}
		return Message{
			Kind:     KindData,
			Addr:     addr,
			Seq:      seq,
			Line:     rest[:pipe],
			Checksum: rest[pipe+1:],
			ECN:      ecn,
		}, nil
	}
}

// ParseClientBound strictly parses a client-origin (sender-bound)
// datagram: only GET, ACK(n), ACK FIN, and the bare TERM-ACK are valid in
// that direction. ECN overlays never travel this way in practice but are
// still accepted and flagged, since the emulator reflects an overflowing
// datagram back to whichever side produced it.
func ParseClientBound(data []byte) (Message, error) {
	text := strings.Trim(string(data), " \t\r\n")
	if getShapeSyntax.MatchString(text) {
		bracketEnd := strings.Index(text, "]")
		return Message{Kind: KindGet, Addr: text[1:bracketEnd]}, nil
	}
	msg, err := Parse(data)
	if err != nil {
		return Message{}, err
	}
	if msg.Kind == KindData {
		return Message{}, fmt.Errorf("wire: data segment is not a valid client-bound shape")
	}
	return msg, nil
}

// ParseServerBound parses any datagram a sender might legitimately
// receive: GET, ACK(n), ACK FIN, TERM-ACK, or an ECN-reflected copy of one
// of the sender's own outbound DATA/FIN segments. It's the union of Parse
// (which covers everything but GET) and ParseClientBound (which covers GET
// but rejects DATA).
func ParseServerBound(data []byte) (Message, error) {
	if msg, err := Parse(data); err == nil {
		return msg, nil
	}
	return ParseClientBound(data)
}
