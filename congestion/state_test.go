package congestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitialState(t *testing.T) {
	s := New()
	assert.Equal(t, InitialCwnd, s.Cwnd)
	assert.Equal(t, InitialSsthresh, s.Ssthresh)
	assert.Equal(t, -1, s.LastAck)
	assert.Equal(t, -1, s.LastSent)
}

func TestSlowStartGrowsCwndPerAck(t *testing.T) {
	s := New() // cwnd=1, ssthresh=8
	s.MarkSent(0, false)

	s.OnAck(0, 10*time.Millisecond, true)
	assert.Equal(t, 2, s.Cwnd, "slow start: cwnd grows by 1 once acksInWindow reaches cwnd")

	s.MarkSent(1, false)
	s.MarkSent(2, false)
	s.OnAck(1, 10*time.Millisecond, true)
	assert.Equal(t, 2, s.Cwnd, "cwnd shouldn't grow until acksInWindow>=cwnd again")
	s.OnAck(2, 10*time.Millisecond, true)
	assert.Equal(t, 3, s.Cwnd)
}

func TestCongestionAvoidanceStepsEveryThreeAcks(t *testing.T) {
	s := New()
	s.Cwnd = 8
	s.Ssthresh = 8
	s.LastAck = 9
	s.LastSent = 20

	s.OnAck(10, time.Millisecond, true)
	assert.Equal(t, 1, s.AcksOnMaxWindow)
	s.OnAck(11, time.Millisecond, true)
	assert.Equal(t, 2, s.AcksOnMaxWindow)
	s.OnAck(12, time.Millisecond, true)
	assert.Equal(t, 9, s.Ssthresh)
	assert.Equal(t, 9, s.Cwnd)
	assert.Equal(t, 0, s.AcksOnMaxWindow)
}

func TestDuplicateAckFastRetransmitOnSecondDuplicate(t *testing.T) {
	s := New()
	s.LastAck = 4
	s.LastSent = 10
	s.Cwnd = 5

	out := s.OnAck(4, 0, false)
	assert.True(t, out.Duplicate)
	assert.False(t, out.FastRetransmit, "first duplicate must not trigger fast retransmit")

	out = s.OnAck(4, 0, false)
	assert.True(t, out.FastRetransmit, "second duplicate (third ACK total) triggers fast retransmit")
	assert.Equal(t, 3, s.LastAck, "last_ack rewinds to n-1")
	assert.Equal(t, 4, s.LastSent, "last_sent rewinds to n")
	assert.Equal(t, 5, s.Cwnd, "fast retransmit never shrinks cwnd")
}

func TestEcnReactionShrinksWindowAndRewinds(t *testing.T) {
	s := New()
	s.Cwnd = 6
	s.Ssthresh = 6
	s.LastSent = 20
	s.LastAck = 10

	out := s.OnEcn(12)
	assert.Equal(t, 5, s.Ssthresh, "ssthresh = max(cwnd-1,1)")
	assert.Equal(t, 4, s.Cwnd, "cwnd = max(1, ssthresh-1)")
	assert.Equal(t, 11, s.LastSent, "last_sent = echoed_seq - 1")
	assert.Equal(t, 12, out.ResendFrom)
	assert.Equal(t, 4, out.ResendCount)
}

func TestEcnNeverDropsCwndBelowOne(t *testing.T) {
	s := New()
	s.Cwnd = 1
	s.Ssthresh = 1
	s.OnEcn(5)
	assert.GreaterOrEqual(t, s.Cwnd, 1)
	assert.GreaterOrEqual(t, s.Ssthresh, 1)
}

func TestTimerFireStaleWhenBehindLastAck(t *testing.T) {
	s := New()
	s.LastAck = 5
	out := s.OnTimerFire(5, time.Now().Add(-time.Hour), time.Now())
	assert.True(t, out.Stale)
}

func TestTimerFireStaleWhenRearmedRecently(t *testing.T) {
	s := New()
	s.LastAck = 0
	s.RTO = time.Second
	now := time.Now()
	out := s.OnTimerFire(5, now, now.Add(100*time.Millisecond))
	assert.True(t, out.Stale, "a pop racing a rearm within RTO is stale")
}

func TestTimerFireRetransmitsWhenDue(t *testing.T) {
	s := New()
	s.LastAck = 0
	s.RTO = 100 * time.Millisecond
	now := time.Now()
	out := s.OnTimerFire(5, now, now.Add(time.Second))
	assert.True(t, out.Retransmit)
}
