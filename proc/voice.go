package proc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/porter/sys"
	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
)

var (
	VoiceManager *VoiceSystem
	OnceVoice    sync.Once
)

func init() {
	// Tear the session down when the bot itself is disconnected from voice
	// (kicked, moved out, or the channel was deleted) so a stale ffmpeg
	// pipe cannot keep streaming into a dead connection.
	sys.RegisterVoiceStateUpdateHandler(func(event *events.GuildVoiceStateUpdate) {
		botUser, ok := event.Client().Caches.SelfUser()
		if !ok || event.VoiceState.UserID != botUser.ID || event.VoiceState.ChannelID != nil {
			return
		}
		GetVoiceManager().Disconnected(event.VoiceState.GuildID)
	})
}

// --- 1. SYSTEM MANAGER ---

type VoiceSystem struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*VoiceSession
}

// GetVoiceManager returns the singleton VoiceSystem instance.
func GetVoiceManager() *VoiceSystem {
	OnceVoice.Do(func() {
		VoiceManager = &VoiceSystem{
			sessions: make(map[snowflake.ID]*VoiceSession),
		}
	})
	return VoiceManager
}

// Join connects the bot to a voice channel.
func (vs *VoiceSystem) Join(ctx context.Context, client *bot.Client, guildID, channelID snowflake.ID) error {
	sess := vs.Prepare(client, guildID, channelID)

	sess.joinedMu.Lock()
	if sess.joined {
		sess.joinedMu.Unlock()
		return nil
	}
	sess.joinedMu.Unlock()

	if err := client.UpdateVoiceState(ctx, guildID, &channelID, false, false); err != nil {
		sess.Conn.Close(ctx)
		vs.mu.Lock()
		delete(vs.sessions, guildID)
		vs.mu.Unlock()
		sess.cancelFunc()
		return err
	}

	sess.joinedMu.Lock()
	sess.joined = true
	sess.joinedCond.Broadcast()
	sess.joinedMu.Unlock()

	go sess.processQueue()
	return nil
}

// Prepare ensures a session exists for the guild and channel, creating it if necessary.
// It returns instantly and does NOT perform the actual voice connection.
func (vs *VoiceSystem) Prepare(client *bot.Client, guildID, channelID snowflake.ID) *VoiceSession {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if sess, ok := vs.sessions[guildID]; ok {
		if sess.ChannelID == channelID {
			return sess
		}
		// If on a different channel, stop and recreate
		sess.Stop()
	}

	conn := client.VoiceManager.CreateConn(guildID)
	ctx, cancel := context.WithCancel(context.Background())
	sess := &VoiceSession{
		GuildID:    guildID,
		ChannelID:  channelID,
		Conn:       conn,
		cancelCtx:  ctx,
		cancelFunc: cancel,
		queue:      make([]*Track, 0),
		resolveSem: make(chan struct{}, 3),
	}
	sess.queueCond = sync.NewCond(&sess.queueMu)
	sess.joinedCond = sync.NewCond(&sess.joinedMu)

	vs.sessions[guildID] = sess
	return sess
}

// WaitJoined blocks until the session is successfully connected to voice.
func (s *VoiceSession) WaitJoined(ctx context.Context) error {
	s.joinedMu.Lock()
	defer s.joinedMu.Unlock()

	for !s.joined {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.cancelCtx.Done():
			return errors.New("session closed")
		default:
			s.joinedCond.Wait()
		}
	}
	return nil
}

// Leave disconnects the bot from voice.
func (vs *VoiceSystem) Leave(ctx context.Context, guildID snowflake.ID) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if sess, ok := vs.sessions[guildID]; ok {
		sess.Stop()
		if sess.Conn != nil {
			sess.Conn.Close(ctx)
		}
		delete(vs.sessions, guildID)
	}
}

// Disconnected drops a guild's session after the gateway reported the bot
// left voice. Unlike Leave it issues no voice state update of its own.
func (vs *VoiceSystem) Disconnected(guildID snowflake.ID) {
	vs.mu.Lock()
	sess, ok := vs.sessions[guildID]
	if ok {
		delete(vs.sessions, guildID)
	}
	vs.mu.Unlock()

	if !ok {
		return
	}
	sess.Stop()
	if sess.Conn != nil {
		sess.Conn.Close(context.Background())
	}
	sys.LogVoice(sys.MsgVoiceSessionDrop, guildID.String())
}

// Play enqueues a track for playback. The input may be a URL or a free-form
// search query.
func (vs *VoiceSystem) Play(ctx context.Context, guildID snowflake.ID, input string, now bool) (*Track, error) {
	sess := vs.GetSession(guildID)
	if sess == nil {
		return nil, errors.New("not connected to voice")
	}

	track := NewTrack(input)

	sess.queueMu.Lock()
	if now {
		// Prepend to queue and kill current playback if any
		sess.queue = append([]*Track{track}, sess.queue...)
		if sess.Cmd != nil && sess.Cmd.Process != nil {
			sess.Cmd.Process.Kill()
		}
	} else {
		sess.queue = append(sess.queue, track)
	}
	pos := len(sess.queue)
	sess.queueCond.Signal()
	sess.queueMu.Unlock()

	track.Position = pos
	go sess.resolveTrack(track)

	return track, nil
}

func (vs *VoiceSystem) GetSession(guildID snowflake.ID) *VoiceSession {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.sessions[guildID]
}

// QueueLength reports how many tracks are waiting in the guild's queue.
func (vs *VoiceSystem) QueueLength(guildID snowflake.ID) int {
	sess := vs.GetSession(guildID)
	if sess == nil {
		return 0
	}
	sess.queueMu.Lock()
	defer sess.queueMu.Unlock()
	return len(sess.queue)
}

type SearchResult struct {
	Title string
	URL   string
}

// Search returns a list of matching tracks from YouTube.
func (vs *VoiceSystem) Search(ctx context.Context, query string) ([]SearchResult, error) {
	c := ytsearch.NewClient(nil)
	r, err := c.Search(ctx, query)
	if err != nil {
		sys.LogVoice(sys.MsgVoiceSearchFail, err)
		return nil, err
	}

	var out []SearchResult
	for _, v := range r.Results {
		if v.VideoID == "" {
			continue
		}
		out = append(out, SearchResult{
			Title: v.Title,
			URL:   "https://www.youtube.com/watch?v=" + v.VideoID,
		})
		if len(out) >= 25 { // Discord limit for select menu
			break
		}
	}
	return out, nil
}

// --- 2. SESSION & STATE ---

// VoiceSession handles voice connection and playback queue for a guild.
type VoiceSession struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	Conn      voice.Conn

	queue     []*Track
	queueMu   sync.Mutex
	queueCond *sync.Cond

	joined     bool
	joinedMu   sync.Mutex
	joinedCond *sync.Cond

	resolveSem chan struct{}

	cancelCtx  context.Context
	cancelFunc context.CancelFunc

	NowPlaying string

	Cmd      *exec.Cmd
	provider *StreamProvider
}

// Stop terminates current playback and clears the queue.
func (s *VoiceSession) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.Cmd != nil && s.Cmd.Process != nil {
		s.Cmd.Process.Kill()
	}
	if s.Conn != nil {
		s.Conn.SetOpusFrameProvider(nil)
		s.Conn.SetSpeaking(context.TODO(), 0)
	}

	s.queueMu.Lock()
	s.queue = nil
	s.queueMu.Unlock()
}

// --- 3. TRACK DEFINITION ---

// Track represents a single audio track in the queue.
type Track struct {
	URL       string
	Title     string
	StreamURL string
	Position  int
	Resolved  bool
	Error     error

	cond *sync.Cond
	mu   sync.Mutex
}

func NewTrack(url string) *Track {
	t := &Track{URL: url, Title: "Loading..."}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Wait blocks until the track is ready for playback.
func (t *Track) Wait() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.Resolved && t.Error == nil {
		t.cond.Wait()
	}
	return t.Error
}

func (t *Track) MarkReady(streamURL, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.StreamURL = streamURL
	t.Title = title
	t.Resolved = true
	t.cond.Broadcast()
}

func (t *Track) MarkError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Error = err
	t.cond.Broadcast()
}

// --- 4. RESOLUTION & QUEUE WORKERS ---

// resolveTrack turns the queued input into a direct audio stream URL. Free-form
// queries go through a search first; everything then passes through yt-dlp.
func (s *VoiceSession) resolveTrack(t *Track) {
	s.resolveSem <- struct{}{}
	defer func() { <-s.resolveSem }()

	select {
	case <-s.cancelCtx.Done():
		t.MarkError(errors.New("cancelled"))
		return
	default:
	}

	url := t.URL
	if !strings.HasPrefix(url, "http") {
		ctx, cancel := context.WithTimeout(s.cancelCtx, 10*time.Second)
		results, err := GetVoiceManager().Search(ctx, url)
		cancel()
		if err != nil || len(results) == 0 {
			t.MarkError(errors.New("could not find a matching song"))
			return
		}
		url = results[0].URL
		t.mu.Lock()
		t.Title = results[0].Title
		t.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(s.cancelCtx, 30*time.Second)
	defer cancel()

	res, err := ytdlp.New().
		Print("%(url)s\t%(title)s").
		Format("bestaudio[ext=webm]/bestaudio").
		NoWarnings().
		IgnoreConfig().
		NoCheckFormats().
		Run(ctx, url)
	if err != nil {
		sys.LogVoice(sys.MsgVoiceResolveFail, url, err)
		t.MarkError(err)
		return
	}

	var streamURL, title string
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || !strings.HasPrefix(parts[0], "http") {
			continue
		}
		streamURL, title = parts[0], parts[1]
		break
	}
	if streamURL == "" {
		t.MarkError(errors.New("failed to get stream URL"))
		return
	}
	if title == "" {
		title = t.Title
	}

	t.MarkReady(streamURL, title)
}

func (s *VoiceSession) processQueue() {
	for {
		select {
		case <-s.cancelCtx.Done():
			return
		default:
		}

		s.queueMu.Lock()
		if len(s.queue) == 0 {
			s.queueCond.Wait()
		}
		if len(s.queue) == 0 {
			s.queueMu.Unlock()
			continue
		}

		track := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		if err := track.Wait(); err != nil {
			sys.LogError("Skipping track due to error: %v", err)
			continue
		}

		sys.LogVoice("Playing: %s", track.Title)
		s.NowPlaying = track.Title

		s.streamCommon(track.StreamURL)

		s.NowPlaying = ""
		sys.LogVoice(sys.MsgVoiceStreamEnded, track.Title, s.GuildID.String())
	}
}

// --- 5. STREAMING ENGINE ---

func (s *VoiceSession) streamCommon(input string) {
	if s.Cmd != nil && s.Cmd.Process != nil {
		s.Cmd.Process.Kill()
	}

	args := []string{
		"-i", input,
		"-map", "0:a",
		"-acodec", "libopus",
		"-b:a", "128k",
		"-vbr", "on",
		"-compression_level", "10",
		"-analyzeduration", "0",
		"-probesize", "32",
		"-f", "opus",
		"pipe:1",
	}

	if strings.HasPrefix(input, "http") {
		// Optimize input for network streams
		args = append([]string{
			"-reconnect", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "2",
			"-user_agent", "Mozilla/5.0",
			"-fflags", "nobuffer",
			"-flags", "low_delay",
		}, args...)
	}

	ffmpegCmd := exec.Command("ffmpeg", args...)

	stdout, err := ffmpegCmd.StdoutPipe()
	if err != nil {
		sys.LogError("Stdout pipe error: %v", err)
		return
	}

	stderr, _ := ffmpegCmd.StderrPipe()

	if err := ffmpegCmd.Start(); err != nil {
		sys.LogError("FFmpeg start error: %v", err)
		return
	}
	s.Cmd = ffmpegCmd

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			sys.LogDebug("FFmpeg: %s", scanner.Text())
		}
	}()

	s.provider = NewStreamProvider(stdout)
	done := make(chan struct{})
	s.provider.OnFinish = func() {
		close(done)
	}

	s.Conn.SetOpusFrameProvider(s.provider)
	s.Conn.SetSpeaking(context.TODO(), voice.SpeakingFlagMicrophone)

	select {
	case <-done:
		time.Sleep(100 * time.Millisecond)
	case <-s.cancelCtx.Done():
	}

	s.Cmd.Process.Kill()
	s.Cmd.Wait()

	s.Conn.SetOpusFrameProvider(nil)
	s.Conn.SetSpeaking(context.TODO(), 0)
}

// --- 6. LOW-LEVEL AUDIO PROVIDER ---

// StreamProvider implements voice.OpusFrameProvider to parse Ogg/Opus packets.
type StreamProvider struct {
	reader    *bufio.Reader
	header    []byte
	segBuf    []byte
	packetBuf bytes.Buffer
	queue     [][]byte
	OnFinish  func()
	once      sync.Once
}

func NewStreamProvider(r io.Reader) *StreamProvider {
	return &StreamProvider{
		reader: bufio.NewReaderSize(r, 16384),
		header: make([]byte, 27),
		segBuf: make([]byte, 255),
	}
}

func (p *StreamProvider) Close() {
	// No-op
}

func (p *StreamProvider) triggerFinish() {
	p.once.Do(func() {
		if p.OnFinish != nil {
			p.OnFinish()
		}
	})
}

// ProvideOpusFrame parses the next Opus packet from the Ogg stream.
func (p *StreamProvider) ProvideOpusFrame() ([]byte, error) {
	// 1. Return queued packets if any
	if len(p.queue) > 0 {
		frame := p.queue[0]
		p.queue = p.queue[1:]
		return frame, nil
	}

scanLoop:
	for {
		sig, err := p.reader.Peek(4)
		if err != nil {
			p.triggerFinish()
			return nil, err
		}

		if string(sig) == "OggS" {
			_, err := io.ReadFull(p.reader, p.header)
			if err != nil {
				p.triggerFinish()
				return nil, err
			}
		} else {
			_, _ = p.reader.Discard(1)
			continue scanLoop
		}

		numSegs := int(p.header[26])
		segTable := p.segBuf[:numSegs]
		if _, err := io.ReadFull(p.reader, segTable); err != nil {
			p.triggerFinish()
			return nil, err
		}

		for _, segLen := range segTable {
			l := int(segLen)
			_, err := io.CopyN(&p.packetBuf, p.reader, int64(l))
			if err != nil {
				p.triggerFinish()
				return nil, err
			}

			if l < 255 {
				payload := p.packetBuf.Bytes()
				frame := make([]byte, len(payload))
				copy(frame, payload)
				p.packetBuf.Reset()

				// Skip Metadata packets (OpusHead/OpusTags).
				if len(frame) > 8 && (string(frame[:8]) == "OpusHead" || string(frame[:8]) == "OpusTags") {
					continue
				}

				p.queue = append(p.queue, frame)
			}
		}

		// If we found any frames in this page, return the first one.
		if len(p.queue) > 0 {
			frame := p.queue[0]
			p.queue = p.queue[1:]
			return frame, nil
		}
	}
}
