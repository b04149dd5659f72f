package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcast/wire"
)

func TestAcceptsInOrderSegment(t *testing.T) {
	r := New("127.0.0.1:9000")
	data, err := wire.EncodeData("127.0.0.1:50023", 0, "hello\n")
	require.NoError(t, err)

	reply, finished, ok := r.OnDatagram(data)
	require.True(t, ok)
	assert.False(t, finished)
	assert.Equal(t, 0, r.LastAcked())
	assert.Equal(t, "hello\n", r.Received())

	msg, err := wire.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.KindAck, msg.Kind)
	assert.Equal(t, 0, msg.Seq)
}

func TestRejectsOutOfOrderSegment(t *testing.T) {
	r := New("127.0.0.1:9000")
	data, err := wire.EncodeData("127.0.0.1:50023", 1, "hello\n")
	require.NoError(t, err)

	reply, _, ok := r.OnDatagram(data)
	require.True(t, ok)
	assert.Equal(t, -1, r.LastAcked())

	msg, err := wire.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, -1, msg.Seq, "out-of-order segment re-acks last_acked, not the new seq")
}

func TestRejectsCorruptChecksum(t *testing.T) {
	r := New("127.0.0.1:9000")
	data, err := wire.EncodeDataChecksum("127.0.0.1:50023", 0, "hello\n", "deadbeef")
	require.NoError(t, err)

	reply, _, ok := r.OnDatagram(data)
	require.True(t, ok)
	assert.Equal(t, -1, r.LastAcked())
	msg, err := wire.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, -1, msg.Seq)
}

func TestFinTriggersAckFin(t *testing.T) {
	r := New("127.0.0.1:9000")
	data, err := wire.EncodeFin("127.0.0.1:50023")
	require.NoError(t, err)

	reply, finished, ok := r.OnDatagram(data)
	require.True(t, ok)
	assert.False(t, finished)
	msg, err := wire.Parse(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.KindAckFin, msg.Kind)
}

func TestTermAckFinishesTransfer(t *testing.T) {
	r := New("127.0.0.1:9000")
	data, err := wire.EncodeTermAck("127.0.0.1:50023")
	require.NoError(t, err)

	reply, finished, ok := r.OnDatagram(data)
	require.True(t, ok)
	assert.True(t, finished)
	assert.Nil(t, reply)
}

func TestDiscardsMalformedDatagram(t *testing.T) {
	r := New("127.0.0.1:9000")
	_, _, ok := r.OnDatagram([]byte("not a valid datagram"))
	assert.False(t, ok)
}

func TestResetClearsReceivedContent(t *testing.T) {
	r := New("127.0.0.1:9000")
	data, err := wire.EncodeData("127.0.0.1:50023", 0, "hello\n")
	require.NoError(t, err)
	_, _, _ = r.OnDatagram(data)
	require.Equal(t, "hello\n", r.Received())

	r.Reset()
	assert.Equal(t, "", r.Received())
	assert.Equal(t, -1, r.LastAcked())
}
