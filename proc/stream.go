package proc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/ritmo/sys"
)

// OpusSilence is the canonical silent Opus frame, sent while paused so the
// RTP stream stays warm.
var OpusSilence = []byte{0xf8, 0xff, 0xfe}

const (
	voiceOpenTimeout  = 10 * time.Second
	voiceOpenAttempts = 5
)

// discordTransport opens disgo voice connections.
type discordTransport struct {
	client *bot.Client
}

func NewDiscordTransport(client *bot.Client) VoiceTransport {
	return &discordTransport{client: client}
}

// Connect opens the gateway voice connection, retrying with exponential
// backoff since Discord voice allocation flakes under region moves.
func (t *discordTransport) Connect(ctx context.Context, guildID, channelID snowflake.ID) (AudioSession, error) {
	conn := t.client.VoiceManager.CreateConn(guildID)

	var lastErr error
	for i := 1; i <= voiceOpenAttempts; i++ {
		openCtx, cancel := context.WithTimeout(ctx, voiceOpenTimeout)
		lastErr = conn.Open(openCtx, channelID, false, false)
		cancel()
		if lastErr == nil {
			sys.LogVoice("Connected to channel %s in guild %s", channelID, guildID)
			return &discordSession{conn: conn}, nil
		}

		if i < voiceOpenAttempts {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			sys.LogVoice("Voice connect attempt %d/%d failed: %v (retrying in %s)", i, voiceOpenAttempts, lastErr, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrNotConnected, lastErr)
}

// discordSession adapts a voice.Conn to the AudioSession interface. One
// provider streams at a time; Play swaps it out.
type discordSession struct {
	mu       sync.Mutex
	conn     voice.Conn
	provider *oggProvider
}

func (s *discordSession) Play(path string, onComplete func(error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening audio artifact: %w", err)
	}

	s.mu.Lock()
	if s.provider != nil {
		s.provider.Halt()
	}
	p := newOggProvider(f, onComplete)
	s.provider = p
	s.mu.Unlock()

	s.conn.SetOpusFrameProvider(p)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone); err != nil {
		sys.LogVoice("SetSpeaking failed: %v", err)
	}
	return nil
}

func (s *discordSession) SetPaused(paused bool) {
	s.mu.Lock()
	p := s.provider
	s.mu.Unlock()
	if p != nil {
		p.SetPaused(paused)
	}
}

func (s *discordSession) Halt() {
	s.mu.Lock()
	p := s.provider
	s.mu.Unlock()
	if p != nil {
		p.Halt()
	}
}

func (s *discordSession) Close(ctx context.Context) {
	s.Halt()
	s.conn.SetOpusFrameProvider(nil)
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	_ = s.conn.SetSpeaking(sctx, 0)
	cancel()
	s.conn.Close(ctx)
}

// oggProvider implements voice.OpusFrameProvider over a local Ogg/Opus file.
// The onDone callback fires exactly once, whether the stream ends naturally,
// errors out, or gets halted.
type oggProvider struct {
	mu     sync.Mutex
	file   *os.File
	reader *bufio.Reader
	header []byte
	segBuf []byte

	packetBuf bytes.Buffer
	queue     [][]byte

	paused bool
	halted bool

	once   sync.Once
	onDone func(error)
}

func newOggProvider(f *os.File, onDone func(error)) *oggProvider {
	return &oggProvider{
		file:   f,
		reader: bufio.NewReaderSize(f, 16384),
		header: make([]byte, 27),
		segBuf: make([]byte, 255),
		onDone: onDone,
	}
}

func (p *oggProvider) finish(err error) {
	p.once.Do(func() {
		_ = p.file.Close()
		if p.onDone != nil {
			p.onDone(err)
		}
	})
}

// SetPaused switches the provider to emitting silence frames.
func (p *oggProvider) SetPaused(paused bool) {
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
}

// Halt ends the stream and fires the completion callback synchronously.
func (p *oggProvider) Halt() {
	p.mu.Lock()
	p.halted = true
	p.mu.Unlock()
	p.finish(nil)
}

func (p *oggProvider) Close() {
	p.finish(nil)
}

// ProvideOpusFrame parses the next Opus packet from the Ogg container.
// Called by the voice send loop every frame interval. The completion
// callback is invoked with no provider lock held.
func (p *oggProvider) ProvideOpusFrame() ([]byte, error) {
	p.mu.Lock()
	if p.halted {
		p.mu.Unlock()
		return nil, io.EOF
	}
	if p.paused {
		p.mu.Unlock()
		return OpusSilence, nil
	}
	frame, err := p.nextFrameLocked()
	p.mu.Unlock()

	if err != nil {
		// EOF is a natural end, anything else is a playback failure.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			p.finish(nil)
		} else {
			p.finish(err)
		}
		return nil, io.EOF
	}
	return frame, nil
}

func (p *oggProvider) nextFrameLocked() ([]byte, error) {
	if len(p.queue) > 0 {
		frame := p.queue[0]
		p.queue = p.queue[1:]
		return frame, nil
	}

	for {
		sig, err := p.reader.Peek(4)
		if err != nil {
			return nil, err
		}

		if string(sig) != "OggS" {
			_, _ = p.reader.Discard(1)
			continue
		}
		if _, err := io.ReadFull(p.reader, p.header); err != nil {
			return nil, err
		}

		numSegs := int(p.header[26])
		segTable := p.segBuf[:numSegs]
		if _, err := io.ReadFull(p.reader, segTable); err != nil {
			return nil, err
		}

		for _, segLen := range segTable {
			l := int(segLen)
			if _, err := io.CopyN(&p.packetBuf, p.reader, int64(l)); err != nil {
				return nil, err
			}

			// A segment shorter than 255 bytes terminates a packet.
			if l < 255 {
				payload := p.packetBuf.Bytes()
				frame := make([]byte, len(payload))
				copy(frame, payload)
				p.packetBuf.Reset()

				// Skip the metadata packets at the head of the container.
				if len(frame) > 8 && (string(frame[:8]) == "OpusHead" || string(frame[:8]) == "OpusTags") {
					continue
				}
				p.queue = append(p.queue, frame)
			}
		}

		if len(p.queue) > 0 {
			frame := p.queue[0]
			p.queue = p.queue[1:]
			return frame, nil
		}
	}
}
