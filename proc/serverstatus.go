package proc

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/porter/sys"
)

func init() {
	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		sys.RegisterDaemon(sys.LogServerStatus, func(ctx context.Context) (bool, func(), func()) {
			return StartServerStatus(ctx, client)
		})
	})
}

// ProbeResult is one observation of the game server.
type ProbeResult struct {
	Online        bool
	PlayersOnline int
	PlayersMax    int
	Version       string
	Latency       time.Duration
	ObservedAt    time.Time
}

var (
	lastProbeMu sync.RWMutex
	lastProbe   ProbeResult
)

// LastProbe returns the most recent probe result for the command surface.
func LastProbe() (ProbeResult, bool) {
	lastProbeMu.RLock()
	defer lastProbeMu.RUnlock()
	return lastProbe, !lastProbe.ObservedAt.IsZero()
}

// StartServerStatus polls the configured game server and mirrors the result
// into renamed status channels.
func StartServerStatus(ctx context.Context, client *bot.Client) (bool, func(), func()) {
	cfg := sys.GlobalConfig
	if cfg == nil || cfg.GameServerHost == "" {
		return false, nil, nil
	}

	lastNames := map[snowflake.ID]string{}

	return true, func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()

			wasOnline := false
			for {
				select {
				case <-ticker.C:
					result := probeGameServer(ctx, cfg.GameServerHost, cfg.GameServerPort)

					lastProbeMu.Lock()
					lastProbe = result
					lastProbeMu.Unlock()

					if result.Online && !wasOnline {
						sys.LogServerStatus(sys.MsgServerOnline, result.PlayersOnline, result.PlayersMax, result.Latency.Milliseconds())
					} else if !result.Online && wasOnline {
						sys.LogServerStatus(sys.MsgServerWentOffline)
					}
					wasOnline = result.Online

					updateStatusChannels(ctx, client, cfg, result, lastNames)
				case <-ctx.Done():
					return
				}
			}
		}, func() {
			sys.LogServerStatus("Shutting down Server Status...")
		}
}

func updateStatusChannels(ctx context.Context, client *bot.Client, cfg *sys.Config, result ProbeResult, lastNames map[snowflake.ID]string) {
	names := map[snowflake.ID]string{}
	if result.Online {
		names[cfg.StatusChannelID] = "🟢 Server: Online"
		names[cfg.PlayerCountChannelID] = fmt.Sprintf("👥 Players: %d/%d", result.PlayersOnline, result.PlayersMax)
		names[cfg.LatencyChannelID] = fmt.Sprintf("📊 Ping: %dms", result.Latency.Milliseconds())
	} else {
		names[cfg.StatusChannelID] = "🔴 Server: Offline"
		names[cfg.PlayerCountChannelID] = "👥 Players: -"
		names[cfg.LatencyChannelID] = "📊 Ping: -"
	}

	for channelID, name := range names {
		if channelID == 0 || lastNames[channelID] == name {
			continue
		}
		_, err := client.Rest.UpdateChannel(channelID, discord.GuildVoiceChannelUpdate{
			Name: sys.Ptr(name),
		}, rest.WithCtx(ctx))
		if err != nil {
			sys.LogServerStatus(sys.MsgServerRenameFail, channelID.String(), err)
			continue
		}
		lastNames[channelID] = name
	}
}

// --- Server List Ping probe ---

type statusResponse struct {
	Players struct {
		Online int `json:"online"`
		Max    int `json:"max"`
	} `json:"players"`
	Version struct {
		Name string `json:"name"`
	} `json:"version"`
}

// probeGameServer performs a Server List Ping handshake over a bounded TCP
// connection.
func probeGameServer(ctx context.Context, host string, port int) ProbeResult {
	result := ProbeResult{ObservedAt: time.Now().UTC()}

	dialer := net.Dialer{Timeout: 5 * time.Second}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	conn, err := dialer.DialContext(dialCtx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		sys.LogDebug(sys.MsgServerProbeFail, host, err)
		return result
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	// Handshake packet: protocol -1 (status), host, port, next state 1.
	var handshake bytes.Buffer
	handshake.WriteByte(0x00)
	writeVarInt(&handshake, -1)
	writeVarInt(&handshake, len(host))
	handshake.WriteString(host)
	_ = binary.Write(&handshake, binary.BigEndian, uint16(port))
	writeVarInt(&handshake, 1)

	if err := writePacket(conn, handshake.Bytes()); err != nil {
		sys.LogDebug(sys.MsgServerProbeFail, host, err)
		return result
	}

	// Status request packet.
	if err := writePacket(conn, []byte{0x00}); err != nil {
		sys.LogDebug(sys.MsgServerProbeFail, host, err)
		return result
	}

	payload, err := readPacket(conn)
	if err != nil {
		sys.LogDebug(sys.MsgServerProbeFail, host, err)
		return result
	}
	result.Latency = time.Since(start)

	// Payload: packet ID, then a length-prefixed JSON string.
	buf := bytes.NewBuffer(payload)
	if _, err := readVarInt(buf); err != nil {
		return result
	}
	strLen, err := readVarInt(buf)
	if err != nil || strLen <= 0 || strLen > buf.Len() {
		return result
	}

	var status statusResponse
	if err := json.Unmarshal(buf.Next(strLen), &status); err != nil {
		sys.LogDebug(sys.MsgServerProbeFail, host, err)
		return result
	}

	result.Online = true
	result.PlayersOnline = status.Players.Online
	result.PlayersMax = status.Players.Max
	result.Version = status.Version.Name
	return result
}

func writePacket(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	writeVarInt(&buf, len(data))
	buf.Write(data)
	_, err := w.Write(buf.Bytes())
	return err
}

func readPacket(r io.Reader) ([]byte, error) {
	length, err := readVarIntReader(r)
	if err != nil {
		return nil, err
	}
	if length <= 0 || length > 1<<21 {
		return nil, fmt.Errorf("invalid packet length %d", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeVarInt(buf *bytes.Buffer, value int) {
	v := uint32(value)
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func readVarInt(buf *bytes.Buffer) (int, error) {
	return readVarIntReader(buf)
}

func readVarIntReader(r io.Reader) (int, error) {
	var value uint32
	var b [1]byte
	for i := 0; i < 5; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		value |= uint32(b[0]&0x7F) << (7 * i)
		if b[0]&0x80 == 0 {
			return int(int32(value)), nil
		}
	}
	return 0, fmt.Errorf("varint too long")
}
