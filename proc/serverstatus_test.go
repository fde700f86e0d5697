package proc

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []int{0, 1, 127, 128, 255, 300, 25565, 1<<21 - 1, -1}

	for _, v := range values {
		t.Run(strconv.Itoa(v), func(t *testing.T) {
			var buf bytes.Buffer
			writeVarInt(&buf, v)

			got, err := readVarInt(&buf)
			require.NoError(t, err)
			assert.Equal(t, v, got)
			assert.Zero(t, buf.Len(), "no trailing bytes expected")
		})
	}
}

func TestReadPacketRejectsBogusLength(t *testing.T) {
	var buf bytes.Buffer
	writeVarInt(&buf, 1<<22)

	_, err := readPacket(&buf)
	assert.Error(t, err)
}

// fakeGameServer answers one Server List Ping exchange and closes.
func fakeGameServer(t *testing.T, online, max int, version string) (string, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake then status request.
		if _, err := readPacket(conn); err != nil {
			return
		}
		if _, err := readPacket(conn); err != nil {
			return
		}

		var status statusResponse
		status.Players.Online = online
		status.Players.Max = max
		status.Version.Name = version
		payload, _ := json.Marshal(status)

		var body bytes.Buffer
		body.WriteByte(0x00)
		writeVarInt(&body, len(payload))
		body.Write(payload)
		_ = writePacket(conn, body.Bytes())
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestProbeGameServer(t *testing.T) {
	host, port := fakeGameServer(t, 7, 20, "1.21.4")

	result := probeGameServer(context.Background(), host, port)

	assert.True(t, result.Online)
	assert.Equal(t, 7, result.PlayersOnline)
	assert.Equal(t, 20, result.PlayersMax)
	assert.Equal(t, "1.21.4", result.Version)
	assert.Greater(t, result.Latency.Nanoseconds(), int64(0))
}

func TestProbeGameServerOffline(t *testing.T) {
	// Grab a port and close it again so nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	result := probeGameServer(context.Background(), "127.0.0.1", port)
	assert.False(t, result.Online)
}
