// Package receiver implements the client side of a transfer: the half of
// _examples/original_source/client.py's Client class that validates
// incoming segments and decides what ACK to send back, independent of
// the network-emulation bookkeeping client.py interleaves it with (that
// half lives in package netem).
package receiver

import (
	"strings"

	"flowcast/wire"
)

// Receiver tracks one in-progress download: the highest contiguous
// sequence number accepted so far, and the lines accepted in order.
type Receiver struct {
	ownID     string
	lastAcked int
	lines     []string
}

// New returns a Receiver that will identify itself as ownID ("ip:port",
// no brackets) in every reply it builds.
func New(ownID string) *Receiver {
	return &Receiver{ownID: ownID, lastAcked: -1}
}

// StartTransfer builds the initial GET datagram, matching
// Client.start_transfer.
func (r *Receiver) StartTransfer() ([]byte, error) {
	return wire.EncodeGet(r.ownID)
}

// Reset discards any partially received content, matching
// Client.set_failed_transfer — used when the retransmission budget for
// the initial GET or a stalled transfer is exhausted.
func (r *Receiver) Reset() {
	r.lines = nil
	r.lastAcked = -1
}

// Received returns everything accepted so far, joined in order.
func (r *Receiver) Received() string {
	return strings.Join(r.lines, "")
}

// LastAcked returns the highest contiguous sequence number accepted.
func (r *Receiver) LastAcked() int {
	return r.lastAcked
}

// OnDatagram processes one datagram from the sender, matching
// Client.process_server_packet. ok is false when the datagram didn't
// match any shape this receiver accepts from a sender and should be
// silently discarded. When ok is true and reply is non-nil, the caller
// should send reply back to the sender. finished is true once the
// sender's TERM-ACK closes the transfer, at which point no reply is
// sent.
func (r *Receiver) OnDatagram(data []byte) (reply []byte, finished bool, ok bool) {
	msg, err := wire.Parse(data)
	if err != nil {
		return nil, false, false
	}

	switch msg.Kind {
	case wire.KindTermAck:
		return nil, true, true

	case wire.KindFin:
		reply, err = wire.EncodeAckFin(r.ownID)
		if err != nil {
			return nil, false, false
		}
		return reply, false, true

	case wire.KindData:
		if msg.Seq != r.lastAcked+1 || !wire.CheckIntegrity(msg.Line, msg.Checksum) {
			reply, err = wire.EncodeAck(r.ownID, r.lastAcked)
		} else {
			r.lines = append(r.lines, firstLine(msg.Line))
			r.lastAcked = msg.Seq
			reply, err = wire.EncodeAck(r.ownID, r.lastAcked)
		}
		if err != nil {
			return nil, false, false
		}
		return reply, false, true

	default:
		return nil, false, false
	}
}

// firstLine matches content.split("\n")[0] + "\n" in the original
// source: a DATA segment's content is exactly one source line including
// its trailing newline, but this guards against a corrupted payload that
// smuggled in extra newlines.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i+1]
	}
	return s + "\n"
}
