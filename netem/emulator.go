package netem

import (
	"net"
	"time"

	"go.uber.org/zap"

	"flowcast/metrics"
	"flowcast/receiver"
	"flowcast/wire"
)

// rtxTimeout and maxRtx match client.py's client_rtx_timeout and
// max_no_rtx: when neither buffer produced anything for a full round and
// the last client-origin datagram is overdue, re-enqueue it; give up
// after maxRtx retries.
const (
	rtxTimeout        = 2 * time.Second
	maxRtx            = 5
	drainWaitDuration = 2 * time.Second
)

// Result summarizes one completed (or abandoned) transfer, matching the
// fields output_stats() in the original source prints.
type Result struct {
	Received             string
	Failed               bool
	TotalServerPackets   int
	TotalEcnPackets      int
	TotalRounds          int
	AdditionalSrvPackets int
	Duration             time.Duration
}

// Emulator owns the single UDP socket shared by the network-emulation
// role and the embedded receiver.Receiver, queuing and dispatching
// datagrams round by round, matching client.py's combined Client +
// PacketBuffer + PacketProcessor + main loop.
type Emulator struct {
	conn       net.PacketConn
	serverAddr net.Addr
	ownAddr    net.Addr

	clientBuffer *Buffer
	serverBuffer *Buffer
	schedule     *Schedule
	receiver     *receiver.Receiver

	queueDelay time.Duration
	collector  *metrics.EmulatorCollector
	log        *zap.Logger
}

// New builds an Emulator. serverBufferCapacity uses the sentinel
// "effectively unlimited" value from config.EmulatorFlags when no
// explicit size was configured; the client buffer is always created with
// that unlimited capacity.
func New(conn net.PacketConn, serverAddr net.Addr, ownID string, serverBufferCapacity int, schedule *Schedule, queueDelay time.Duration, collector *metrics.EmulatorCollector, log *zap.Logger) *Emulator {
	return &Emulator{
		conn:         conn,
		serverAddr:   serverAddr,
		ownAddr:      conn.LocalAddr(),
		clientBuffer: NewBuffer(int(^uint(0) >> 1)),
		serverBuffer: NewBuffer(serverBufferCapacity),
		schedule:     schedule,
		receiver:     receiver.New(ownID),
		queueDelay:   queueDelay,
		collector:    collector,
		log:          log,
	}
}

// Run drives the transfer to completion or failure and returns its
// outcome, matching the original's top-level while-True loop plus its
// trailing drain-extra-packets phase.
func (e *Emulator) Run() (Result, error) {
	start := time.Now()

	getMsg, err := e.receiver.StartTransfer()
	if err != nil {
		return Result{}, err
	}
	if err := e.clientBuffer.Enqueue(getMsg, e.ownAddr); err != nil {
		return Result{}, err
	}
	lastTransmitted := getMsg
	nextRtx := time.Now().Add(rtxTimeout)
	rtxCount := 0
	transmissionStarted := false
	transferFinished := false
	failed := false

	totalRounds := 0
	serverPacketRounds := 0
	totalSrvPackets := 0
	totalEcnPackets := 0

	for {
		if err := e.queueRound(); err != nil {
			return Result{}, err
		}
		if transmissionStarted {
			totalRounds++
		}

		if e.clientBuffer.IsEmpty() && e.serverBuffer.IsEmpty() {
			if rtxCount >= maxRtx {
				failed = true
				e.receiver.Reset()
				break
			}
			if time.Now().After(nextRtx) {
				if err := e.clientBuffer.Enqueue(lastTransmitted, e.ownAddr); err != nil {
					return Result{}, err
				}
				rtxCount++
			} else {
				continue
			}
		}

		clientItems := e.clientBuffer.Dequeue()
		for i := 0; i < len(clientItems); i++ {
			item := clientItems[i]
			transmissionStarted = true
			num := e.schedule.SeenClientPacket()
			dest := e.serverAddr
			if item.Reflect {
				dest = item.Addr
			}
			if e.schedule.DropClient(num) {
				continue
			}
			lastTransmitted = item.Payload
			nextRtx = time.Now().Add(rtxTimeout)

			if isAck(item.Payload) && e.schedule.TripleAck(e.schedule.NextForwardedClientIndex()) {
				for r := 0; r < 3; r++ {
					if _, err := e.conn.WriteTo(item.Payload, dest); err != nil {
						return Result{}, err
					}
					e.schedule.ForwardedClientPacket()
				}
				break
			}
			if _, err := e.conn.WriteTo(item.Payload, dest); err != nil {
				return Result{}, err
			}
			e.schedule.ForwardedClientPacket()
		}

		roundHasServerPackets := false
		forwardedThisRound := 0
		for _, item := range e.serverBuffer.Dequeue() {
			num := e.schedule.SeenServerPacket()
			if e.schedule.DropServer(num) {
				continue
			}
			if item.Reflect {
				if _, err := e.conn.WriteTo(item.Payload, item.Addr); err != nil {
					return Result{}, err
				}
				totalEcnPackets++
			} else if e.schedule.TripleAck(e.schedule.NextForwardedClientIndex() + forwardedThisRound) {
				// The same trigger index that tripled a forwarded client ACK
				// also silently drops the server packet landing on this
				// counter value, matching client.py's single acks2triple set
				// serving both checks.
				forwardedThisRound++
			} else {
				reply, finished, ok := e.receiver.OnDatagram(item.Payload)
				if ok {
					roundHasServerPackets = true
					rtxCount = 0
					if reply != nil {
						if err := e.clientBuffer.Enqueue(reply, e.ownAddr); err != nil {
							return Result{}, err
						}
					}
					if finished {
						transferFinished = true
					}
				}
				forwardedThisRound++
			}
			totalSrvPackets++
		}
		if roundHasServerPackets {
			serverPacketRounds++
			if delta, ok := e.schedule.BufferDeltaForRound(serverPacketRounds); ok {
				e.serverBuffer.SetCapacity(e.serverBuffer.Capacity() + delta)
			}
		}
		if e.collector != nil {
			e.collector.Update(totalRounds, totalSrvPackets, totalEcnPackets, 0, e.serverBuffer.Capacity(), e.clientBuffer.Capacity())
		}
		if transferFinished {
			break
		}
	}

	duration := time.Since(start)
	additional := e.drainExtraServerPackets()
	if e.collector != nil {
		e.collector.Update(totalRounds, totalSrvPackets, totalEcnPackets, additional, e.serverBuffer.Capacity(), e.clientBuffer.Capacity())
	}

	return Result{
		Received:             e.receiver.Received(),
		Failed:               failed,
		TotalServerPackets:   totalSrvPackets,
		TotalEcnPackets:      totalEcnPackets,
		TotalRounds:          totalRounds,
		AdditionalSrvPackets: additional,
		Duration:             duration,
	}, nil
}

// queueRound reads datagrams for up to queueDelay, classifying each by
// comparing its sender against serverAddr, matching
// run_queuing_cycle/simulate_network_queuing.
func (e *Emulator) queueRound() error {
	deadline := time.Now().Add(e.queueDelay)
	buf := make([]byte, wire.MaxDatagramSize)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if err := e.conn.SetReadDeadline(time.Now().Add(remaining)); err != nil {
			return err
		}
		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return err
		}
		payload := append([]byte(nil), buf[:n]...)
		if sameHost(addr, e.serverAddr) {
			if err := e.serverBuffer.Enqueue(payload, addr); err != nil {
				return err
			}
		} else {
			if err := e.clientBuffer.Enqueue(payload, addr); err != nil {
				return err
			}
		}
	}
}

// drainExtraServerPackets waits drainWaitDuration for stray packets from
// the server after the transfer ended, matching the original's
// post-transfer "additional_srv_packets" wait loop.
func (e *Emulator) drainExtraServerPackets() int {
	deadline := time.Now().Add(drainWaitDuration)
	buf := make([]byte, wire.MaxDatagramSize)
	count := 0
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return count
		}
		if err := e.conn.SetReadDeadline(time.Now().Add(remaining)); err != nil {
			return count
		}
		_, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			return count
		}
		if sameHost(addr, e.serverAddr) {
			count++
		}
	}
}

func sameHost(a, b net.Addr) bool {
	return a.String() == b.String()
}

func isAck(payload []byte) bool {
	msg, err := wire.Parse(payload)
	return err == nil && msg.Kind == wire.KindAck
}
