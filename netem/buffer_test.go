package netem

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcast/wire"
)

func addr(t *testing.T, s string) net.Addr {
	t.Helper()
	a, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)
	return a
}

func TestBufferPassesThroughUnderCapacity(t *testing.T) {
	b := NewBuffer(2)
	require.NoError(t, b.Enqueue([]byte("a"), addr(t, "127.0.0.1:1")))
	require.NoError(t, b.Enqueue([]byte("b"), addr(t, "127.0.0.1:1")))
	items := b.Dequeue()
	require.Len(t, items, 2)
	assert.False(t, items[0].Reflect)
	assert.False(t, items[1].Reflect)
}

func TestBufferStampsEcnOnOverflow(t *testing.T) {
	b := NewBuffer(1)
	payload, err := wire.EncodeAck("1.2.3.4:5", 0)
	require.NoError(t, err)
	require.NoError(t, b.Enqueue(payload, addr(t, "127.0.0.1:1")))
	require.NoError(t, b.Enqueue(payload, addr(t, "127.0.0.1:1")))

	items := b.Dequeue()
	require.Len(t, items, 2)
	assert.False(t, items[0].Reflect)
	assert.True(t, items[1].Reflect)

	msg, err := wire.Parse(items[1].Payload)
	require.NoError(t, err)
	assert.True(t, msg.ECN)
}

func TestDequeueResetsAvailableSpace(t *testing.T) {
	b := NewBuffer(1)
	a := addr(t, "127.0.0.1:1")
	require.NoError(t, b.Enqueue([]byte("x"), a))
	require.NoError(t, b.Enqueue([]byte("y"), a))
	b.Dequeue()

	require.NoError(t, b.Enqueue([]byte("z"), a))
	items := b.Dequeue()
	require.Len(t, items, 1)
	assert.False(t, items[0].Reflect, "available space must reset after a full round drains")
}

func TestSetCapacityClampsToOne(t *testing.T) {
	b := NewBuffer(5)
	b.SetCapacity(0)
	assert.Equal(t, 1, b.Capacity())
}
