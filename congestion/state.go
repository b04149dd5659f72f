// Package congestion owns the sender's congestion-control record: cwnd,
// ssthresh, the cumulative-ack bookkeeping, and the adaptive RTO. It is
// grounded on the shape of quic-go's internal/congestion.Cubic (a small
// stateful type behind a Clock abstraction with explicit Reset/OnXxx
// event methods) but implements this protocol's own slow-start /
// congestion-avoidance algorithm rather than Cubic — see DESIGN.md for
// why quic-go's actual congestion package can't be imported directly.
//
// Every method here is a pure state transition: it mutates State and
// reports what the caller should do next. No socket I/O, no timers, and
// no notion of the file's length N — the sender package owns those and
// drives State through this API, clamping any fill-the-window loop to N
// and MarkSent-ing each segment it actually transmits.
package congestion

import "time"

// Initial values, carried from the original source's module constants.
const (
	InitialSsthresh = 8
	InitialCwnd     = 1
	InitialRTO      = 5 * time.Second

	rttWeight       = 0.1
	deviationWeight = 0.125

	// acksOnMaxWindowThreshold is how many ACKs at cwnd>=ssthresh it takes
	// to step ssthresh/cwnd up by one, in congestion avoidance.
	acksOnMaxWindowThreshold = 3
)

// State is the sender's congestion-control record, matching spec.md's
// Congestion State block field-for-field.
type State struct {
	Cwnd            int
	Ssthresh        int
	LastAck         int
	LastSent        int
	DupAckCount     int
	AcksInWindow    int
	AcksOnMaxWindow int

	RTT     time.Duration
	RTTDev  time.Duration
	haveRTT bool
	RTO     time.Duration

	// TimerInFlight counts timer-triggered retransmissions since the last
	// OnAck call (any ACK, fresh or duplicate, resets it to 0); it gates
	// how many segments an ECN reaction is allowed to resend.
	TimerInFlight int
}

// New returns a freshly reset State, as at the start of a transfer.
func New() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset restores initial values, called on GET and on ACK FIN completion.
func (s *State) Reset() {
	s.Cwnd = InitialCwnd
	s.Ssthresh = InitialSsthresh
	s.LastAck = -1
	s.LastSent = -1
	s.DupAckCount = 0
	s.AcksInWindow = 0
	s.AcksOnMaxWindow = 0
	s.RTT = 0
	s.RTTDev = 0
	s.haveRTT = false
	s.RTO = InitialRTO
	s.TimerInFlight = 0
}

// SampleRTT folds one RTT observation (now - sendTime) into the EWMA
// estimators and recomputes RTO = rtt + 6*deviation, matching
// update_timeout in the original source.
func (s *State) SampleRTT(sample time.Duration) {
	if !s.haveRTT {
		s.RTT = sample
		s.haveRTT = true
	} else {
		s.RTT = time.Duration(rttWeight*float64(sample) + (1-rttWeight)*float64(s.RTT))
	}
	deviationSample := sample - s.RTT
	if deviationSample < 0 {
		deviationSample = -deviationSample
	}
	s.RTTDev = time.Duration(deviationWeight*float64(deviationSample) + (1-deviationWeight)*float64(s.RTTDev))
	s.RTO = s.RTT + 6*s.RTTDev
}

// AckOutcome describes what happened to a single incoming ACK.
type AckOutcome struct {
	// FastRetransmit is true when this was the second duplicate of
	// LastAck (the third identical ACK total): last_ack rewound to n-1,
	// last_sent rewound to n. The caller should immediately fill the
	// window from WindowCeiling() and not wait on a timer.
	FastRetransmit bool
	// Duplicate is true for any repeat of LastAck (including the one
	// that triggers FastRetransmit).
	Duplicate bool
}

// OnAck applies one cumulative ACK(n), per spec.md §4.3. Pass haveSample
// = false for duplicate ACKs, which never carry a fresh RTT sample.
func (s *State) OnAck(n int, sample time.Duration, haveSample bool) AckOutcome {
	s.TimerInFlight = 0
	if n == s.LastAck {
		s.DupAckCount++
		if s.DupAckCount == 2 {
			s.LastSent = n
			s.LastAck = n - 1
			s.AcksInWindow = 0
			s.DupAckCount = 0
			return AckOutcome{FastRetransmit: true, Duplicate: true}
		}
		return AckOutcome{Duplicate: true}
	}

	s.DupAckCount = 0
	if haveSample {
		s.SampleRTT(sample)
	}
	s.LastAck = n
	s.AcksInWindow++

	if s.Cwnd < s.Ssthresh {
		if s.AcksInWindow >= s.Cwnd {
			s.Cwnd++
			s.AcksInWindow = 0
		}
	} else {
		s.AcksOnMaxWindow++
		if s.AcksOnMaxWindow >= acksOnMaxWindowThreshold {
			s.Ssthresh++
			s.Cwnd = s.Ssthresh
			s.AcksInWindow = 0
			s.AcksOnMaxWindow = 0
		}
	}
	return AckOutcome{}
}

// WindowCeiling returns the highest segment index the window currently
// allows sending, given LastAck and Cwnd: spec.md's "last_sent < last_ack
// + cwnd" condition, rearranged to an inclusive ceiling on the candidate
// segment index.
func (s *State) WindowCeiling() int {
	return s.LastAck + s.Cwnd
}

// MarkSent records that segment seq was actually transmitted, advancing
// LastSent. timerTriggered marks a timer-driven retransmission, which
// counts against TimerInFlight until the next OnAck call, which resets
// it to 0 whether the ACK is fresh or a duplicate.
func (s *State) MarkSent(seq int, timerTriggered bool) {
	if seq > s.LastSent {
		s.LastSent = seq
	}
	if timerTriggered {
		s.TimerInFlight++
	}
}

// EcnOutcome describes the window the sender should refill after an ECN
// reflection: [ResendFrom, ResendFrom+ResendCount) segments, clamped by
// the caller to the file's length N.
type EcnOutcome struct {
	ResendFrom  int
	ResendCount int
}

// OnEcn applies the explicit-congestion-notification reaction described
// in spec.md §4.3: shrink the window, rewind the send pointer to just
// before the echoed segment, and permit resending up to
// cwnd-timerInFlight segments from there.
func (s *State) OnEcn(echoedSeq int) EcnOutcome {
	s.Ssthresh = maxInt(s.Cwnd-1, 1)
	s.Cwnd = maxInt(1, s.Ssthresh-1)
	s.LastSent = echoedSeq - 1
	s.AcksOnMaxWindow = 0
	s.AcksInWindow = 0

	n := maxInt(0, s.Cwnd-s.TimerInFlight)
	return EcnOutcome{ResendFrom: echoedSeq, ResendCount: n}
}

// TimerOutcome describes what the sender should do after a retransmission
// timer fires for a given segment.
type TimerOutcome struct {
	Stale      bool // timer fired against state that has moved on; ignore
	Retransmit bool
}

// OnTimerFire implements spec.md §4.3's timer-firing rules. lastUpdated
// is the time the timer for seq was last (re)armed; a firing with
// now-lastUpdated < rto is reported as stale. rtxtimer's cancel-and-replace
// heap means a rearm never races a pop, but this case still arises when
// RTO has grown since the timer was armed, because the deadline was
// computed from the smaller RTO in force at arming time.
func (s *State) OnTimerFire(seq int, lastUpdated time.Time, now time.Time) TimerOutcome {
	if seq <= s.LastAck {
		return TimerOutcome{Stale: true}
	}
	if now.Sub(lastUpdated) < s.RTO {
		return TimerOutcome{Stale: true}
	}
	s.AcksInWindow = 0
	s.AcksOnMaxWindow = 0
	return TimerOutcome{Retransmit: true}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
