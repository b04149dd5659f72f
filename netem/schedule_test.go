package netem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleMatchesDropLists(t *testing.T) {
	s := NewSchedule(map[int]bool{2: true}, map[int]bool{1: true}, nil, nil)
	assert.False(t, s.DropClient(s.SeenClientPacket()))
	assert.True(t, s.DropClient(s.SeenClientPacket()))
	assert.True(t, s.DropServer(s.SeenServerPacket()))
}

func TestScheduleTripleAckUsesForwardedIndex(t *testing.T) {
	s := NewSchedule(nil, nil, map[int]bool{1: true}, nil)
	assert.True(t, s.TripleAck(s.NextForwardedClientIndex()))
	s.ForwardedClientPacket()
	assert.False(t, s.TripleAck(s.NextForwardedClientIndex()))
}

func TestBufferDeltaConsumedOnce(t *testing.T) {
	s := NewSchedule(nil, nil, nil, map[int]int{3: -1})
	delta, ok := s.BufferDeltaForRound(3)
	assert.True(t, ok)
	assert.Equal(t, -1, delta)

	_, ok = s.BufferDeltaForRound(3)
	assert.False(t, ok, "a buffer change applies only once")
}
