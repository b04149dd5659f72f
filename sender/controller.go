// Package sender implements the server side of a transfer: the
// event-dispatch shell described in SPEC_FULL.md §6.3, which owns the
// congestion state, the retransmission timer wheel, the checksum cache,
// and the socket, and drives them in response to incoming datagrams. It
// is grounded on server.py's Server class in
// _examples/original_source/server.py, restructured so every method is a
// single locked event handler instead of one monolithic run() loop, and
// so retransmissions are driven by rtxtimer's heap instead of one
// threading.Timer per in-flight segment.
package sender

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/xid"

	"flowcast/checksum"
	"flowcast/congestion"
	"flowcast/metrics"
	"flowcast/rtxtimer"
	"flowcast/wire"
)

// timerPollInterval is how often RunTimers checks the wheel for due
// entries. The original source used a single thread per timer and slept
// MAIN_THREAD_SLEEP_TIME between dispatch-loop iterations "to prevent
// timer starvation"; polling the heap at a short, fixed interval is the
// same idea applied to a single shared timer goroutine instead of one
// thread per segment.
const timerPollInterval = time.Millisecond

// Controller serves one file to however many clients send it a GET,
// sequentially: a GET always (re)starts the transfer state from scratch,
// matching the original's single-Server-per-socket design.
type Controller struct {
	mu sync.Mutex

	sock        *Socket
	fileContent []string
	collector   *metrics.SenderCollector

	state     *congestion.State
	timers    *rtxtimer.Wheel
	checksums *checksum.Cache

	clientAddr string // echoed "ip:port" token identifying the peer
	peer       net.Addr
	inProgress bool
	transferID string

	sentAt  map[int]time.Time
	armedAt map[int]time.Time
}

// New returns a Controller serving fileContent (one entry per line,
// newline-terminated except possibly the last, matching readlines()).
func New(sock *Socket, fileContent []string, collector *metrics.SenderCollector) *Controller {
	return &Controller{
		sock:        sock,
		fileContent: fileContent,
		collector:   collector,
		state:       congestion.New(),
		timers:      rtxtimer.New(),
		checksums:   checksum.New(),
		sentAt:      map[int]time.Time{},
		armedAt:     map[int]time.Time{},
	}
}

// OnDatagram parses one datagram received from peer and dispatches it,
// matching run()'s if/elif chain in the original source.
func (c *Controller) OnDatagram(peer net.Addr, data []byte) error {
	msg, err := wire.ParseServerBound(data)
	if err != nil {
		return err
	}
	if msg.ECN {
		return c.OnEcn(msg)
	}
	switch msg.Kind {
	case wire.KindGet:
		return c.OnGet(peer, msg.Addr)
	case wire.KindAck:
		return c.OnAck(msg.Seq)
	case wire.KindAckFin:
		return c.OnAckFin()
	default:
		return fmt.Errorf("sender: unexpected datagram kind from client: %v", msg.Kind)
	}
}

// OnGet (re)starts a transfer for a new client, matching start_transfer.
func (c *Controller) OnGet(peer net.Addr, clientAddr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Reset()
	c.timers.CancelAll()
	c.checksums.Reset()
	c.clientAddr = clientAddr
	c.peer = peer
	c.inProgress = true
	c.transferID = xid.New().String()
	c.sentAt = map[int]time.Time{}
	c.armedAt = map[int]time.Time{}
	if c.collector != nil {
		c.collector.Attach(c.transferID, c.state)
	}

	for i := 0; i < c.state.Cwnd; i++ {
		if err := c.sendRaw(i, false); err != nil {
			return err
		}
	}
	return nil
}

// OnAck applies one cumulative ACK(n), matching process_ack.
func (c *Controller) OnAck(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inProgress {
		return nil
	}
	if n < c.state.LastAck {
		return fmt.Errorf("sender: out-of-order ACK %d below last_ack %d", n, c.state.LastAck)
	}

	var sample time.Duration
	haveSample := false
	if sentAt, ok := c.sentAt[n]; ok {
		sample = time.Since(sentAt)
		haveSample = true
	}

	outcome := c.state.OnAck(n, sample, haveSample)
	if outcome.Duplicate && !outcome.FastRetransmit {
		return nil
	}
	if !outcome.FastRetransmit {
		c.timers.CancelThrough(n)
	}
	return c.fillWindow()
}

// OnEcn reacts to an ECN-reflected copy of one of this sender's own
// outbound segments, matching process_ecn.
func (c *Controller) OnEcn(msg wire.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inProgress {
		return nil
	}

	var echoed int
	switch msg.Kind {
	case wire.KindFin:
		echoed = len(c.fileContent)
	case wire.KindData:
		echoed = msg.Seq
	default:
		return fmt.Errorf("sender: unexpected ECN-echoed datagram kind: %v", msg.Kind)
	}

	outcome := c.state.OnEcn(echoed)
	for i := 0; i < outcome.ResendCount; i++ {
		seq := outcome.ResendFrom + i
		if seq > len(c.fileContent) {
			break
		}
		if err := c.sendRaw(seq, false); err != nil {
			return err
		}
	}
	return nil
}

// OnAckFin ends the transfer, matching end_transfer. The original guards
// against double-processing an ACK FIN with `if self.last_ack != -1`;
// Reset() after the first call already sets LastAck back to -1, so the
// same check serves here.
func (c *Controller) OnAckFin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inProgress || c.state.LastAck == -1 {
		return nil
	}

	payload, err := wire.EncodeTermAck(c.clientAddr)
	if err != nil {
		return err
	}
	if _, err := c.sock.WriteTo(payload, c.peer); err != nil {
		return err
	}

	c.timers.CancelAll()
	c.state.Reset()
	c.inProgress = false
	if c.collector != nil {
		c.collector.Attach("", nil)
	}
	return nil
}

// fillWindow sends every segment the window currently admits, starting
// just past LastSent, matching the `while last_sent+1 <= len(content) and
// new_ack+cwnd > last_sent` loops in process_ack. Must be called with mu
// held.
func (c *Controller) fillWindow() error {
	for c.state.LastSent+1 <= len(c.fileContent) && c.state.WindowCeiling() > c.state.LastSent {
		if err := c.sendRaw(c.state.LastSent+1, false); err != nil {
			return err
		}
	}
	return nil
}

// sendRaw transmits segment seq (or FIN, if seq is past the last line)
// and arms its retransmission timer. bumpTimerInFlight marks this send as
// counting against TimerInFlight, for timer-fired retransmits. Must be
// called with mu held.
func (c *Controller) sendRaw(seq int, bumpTimerInFlight bool) error {
	now := time.Now()
	c.sentAt[seq] = now
	c.state.MarkSent(seq, bumpTimerInFlight)

	if seq == len(c.fileContent) {
		payload, err := wire.EncodeFin(c.clientAddr)
		if err != nil {
			return err
		}
		_, err = c.sock.WriteTo(payload, c.peer)
		return err
	}

	line := c.fileContent[seq]
	sum := c.checksums.Get(seq, line)
	payload, err := wire.EncodeDataChecksum(c.clientAddr, seq, line, sum)
	if err != nil {
		return err
	}
	if _, err := c.sock.WriteTo(payload, c.peer); err != nil {
		return err
	}

	c.timers.Schedule(seq, now, c.state.RTO)
	c.armedAt[seq] = now
	return nil
}

// fireTimer retransmits seq after its timer popped, unless the congestion
// state or the timer wheel itself consider the firing stale. Must be
// called with mu held.
func (c *Controller) fireTimer(seq int) error {
	armed, ok := c.armedAt[seq]
	if !ok {
		return nil
	}
	outcome := c.state.OnTimerFire(seq, armed, time.Now())
	if outcome.Stale {
		return nil
	}
	return c.sendRaw(seq, true)
}

// RunTimers polls the retransmission wheel until ctx is cancelled,
// firing any segment whose timer has come due. Run it in its own
// goroutine alongside the datagram-reading loop in cmd/sender.
func (c *Controller) RunTimers(ctx context.Context) {
	ticker := time.NewTicker(timerPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			fired := c.timers.PopDue(time.Now())
			for _, f := range fired {
				c.fireTimer(f.Seq) // best-effort; a write failure here surfaces on the next send
			}
			c.mu.Unlock()
		}
	}
}
