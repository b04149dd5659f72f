package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumRoundTrip(t *testing.T) {
	line := "hello world\n"
	sum := Checksum(line)
	assert.True(t, CheckIntegrity(line, sum))
	assert.False(t, CheckIntegrity(line, "deadbeef"))
}

func TestEncodeParseRoundTrip(t *testing.T) {
	addr := "127.0.0.1:40023"

	t.Run("GET", func(t *testing.T) {
		raw, err := EncodeGet(addr)
		require.NoError(t, err)
		msg, err := ParseClientBound(raw)
		require.NoError(t, err)
		assert.Equal(t, KindGet, msg.Kind)
		assert.Equal(t, addr, msg.Addr)
	})

	t.Run("DATA", func(t *testing.T) {
		line := "the quick brown fox\n"
		raw, err := EncodeData(addr, 3, line)
		require.NoError(t, err)
		msg, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, KindData, msg.Kind)
		assert.Equal(t, 3, msg.Seq)
		assert.Equal(t, line, msg.Line)
		assert.True(t, CheckIntegrity(msg.Line, msg.Checksum))
	})

	t.Run("FIN", func(t *testing.T) {
		raw, err := EncodeFin(addr)
		require.NoError(t, err)
		msg, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, KindFin, msg.Kind)
	})

	t.Run("ACK", func(t *testing.T) {
		raw, err := EncodeAck(addr, 41)
		require.NoError(t, err)
		msg, err := ParseClientBound(raw)
		require.NoError(t, err)
		assert.Equal(t, KindAck, msg.Kind)
		assert.Equal(t, 41, msg.Seq)
	})

	t.Run("ACK FIN", func(t *testing.T) {
		raw, err := EncodeAckFin(addr)
		require.NoError(t, err)
		msg, err := ParseClientBound(raw)
		require.NoError(t, err)
		assert.Equal(t, KindAckFin, msg.Kind)
	})

	t.Run("TERM-ACK", func(t *testing.T) {
		raw, err := EncodeTermAck(addr)
		require.NoError(t, err)
		msg, err := ParseClientBound(raw)
		require.NoError(t, err)
		assert.Equal(t, KindTermAck, msg.Kind)
	})
}

func TestECNOverlay(t *testing.T) {
	addr := "127.0.0.1:40023"
	raw, err := EncodeAck(addr, 7)
	require.NoError(t, err)
	overlaid, err := WithECN(raw)
	require.NoError(t, err)

	msg, err := ParseClientBound(overlaid)
	require.NoError(t, err)
	assert.True(t, msg.ECN)
	assert.Equal(t, KindAck, msg.Kind)
	assert.Equal(t, 7, msg.Seq)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"garbage",
		"[127.0.0.1:40023] BOGUS",
		"[not-an-addr] ACK 3",
		"",
	}
	for _, c := range cases {
		_, err := Parse([]byte(c))
		assert.Error(t, err, c)
	}
}

func TestParseClientBoundRejectsData(t *testing.T) {
	addr := "127.0.0.1:40023"
	raw, err := EncodeData(addr, 0, "line\n")
	require.NoError(t, err)
	_, err = ParseClientBound(raw)
	assert.Error(t, err)
}

func TestEncodeRejectsOversizedDatagram(t *testing.T) {
	addr := "127.0.0.1:40023"
	huge := make([]byte, MaxDatagramSize)
	for i := range huge {
		huge[i] = 'x'
	}
	_, err := EncodeData(addr, 0, string(huge)+"\n")
	assert.Error(t, err)
}
