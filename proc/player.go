package proc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/ritmo/sys"
)

// PlayerState is the playback state machine position.
type PlayerState int32

const (
	StateIdle PlayerState = iota
	StateConnectedIdle
	StatePlaying
	StatePaused
	StateStopped
)

func (s PlayerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnectedIdle:
		return "connected-idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// VoiceTransport opens audio sessions into voice channels.
type VoiceTransport interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (AudioSession, error)
}

// AudioSession is a live voice connection able to play local audio files.
// Play returns once streaming has started; onComplete fires exactly once per
// Play, on natural end, on Halt, or on a stream error.
type AudioSession interface {
	Play(path string, onComplete func(error)) error
	SetPaused(paused bool)
	Halt()
	Close(ctx context.Context)
}

type trackEnd struct {
	err error
}

// Player drives a single playback slot for one guild's voice session. All
// queue advances happen on one control goroutine fed by two channels: kick
// (a play request arrived) and events (the current track ended). Skip and
// natural completion both funnel through the session's once-only completion
// callback, so exactly one advance happens per track.
type Player struct {
	guildID   snowflake.ID
	channelID snowflake.ID
	queue     *SongQueue
	session   AudioSession
	onStopped func(*Player)

	mu        sync.Mutex
	state     PlayerState
	current   Track
	startedAt time.Time

	kick   chan struct{}
	events chan trackEnd
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPlayer connects to the voice channel and starts the control loop. The
// returned player is in the connected-idle state until Play is called.
func NewPlayer(ctx context.Context, transport VoiceTransport, queue *SongQueue, guildID, channelID snowflake.ID, onStopped func(*Player)) (*Player, error) {
	session, err := transport.Connect(ctx, guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("connecting to voice channel %s: %w", channelID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p := &Player{
		guildID:   guildID,
		channelID: channelID,
		queue:     queue,
		session:   session,
		onStopped: onStopped,
		state:     StateConnectedIdle,
		kick:      make(chan struct{}, 1),
		events:    make(chan trackEnd, 1),
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	sys.SafeGo(p.run)
	return p, nil
}

func (p *Player) GuildID() snowflake.ID   { return p.guildID }
func (p *Player) ChannelID() snowflake.ID { return p.channelID }

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) run() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.kick:
			p.playNext()
		case ev := <-p.events:
			if ev.err != nil {
				sys.LogVoice("Playback error, advancing: %v", ev.err)
			}
			p.playNext()
		}
	}
}

// playNext pops and starts the next track. Pop failures for individual
// entries are logged and the loop moves on; the queue running dry parks the
// player in connected-idle.
func (p *Player) playNext() {
	p.mu.Lock()
	if p.state != StateConnectedIdle {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for {
		if p.queue.Len() == 0 {
			return
		}
		track, art, err := p.queue.Pop(p.ctx)
		if err != nil {
			if errors.Is(err, ErrEmptyQueue) || p.ctx.Err() != nil {
				return
			}
			sys.LogVoice("Dropping %s from queue: %v", track.Title, err)
			continue
		}

		p.mu.Lock()
		if p.state != StateConnectedIdle {
			p.mu.Unlock()
			return
		}
		p.current = track
		p.startedAt = time.Now()
		p.state = StatePlaying
		p.mu.Unlock()

		if err := p.session.Play(art.LocalPath, p.completed); err != nil {
			sys.LogVoice("Failed to start %s: %v", track.Title, err)
			p.mu.Lock()
			p.state = StateConnectedIdle
			p.current = Track{}
			p.mu.Unlock()
			continue
		}
		sys.LogVoice("Now playing: %s", track.Title)
		p.queue.UpdatePrefetch()
		return
	}
}

// completed is handed to the session as the completion callback. The state
// guard makes it inert after Stop, so a halt during teardown cannot advance
// the queue.
func (p *Player) completed(err error) {
	p.mu.Lock()
	if p.state != StatePlaying && p.state != StatePaused {
		p.mu.Unlock()
		return
	}
	p.state = StateConnectedIdle
	p.current = Track{}
	p.mu.Unlock()

	select {
	case p.events <- trackEnd{err: err}:
	default:
	}
}

// Play nudges the control loop to start consuming the queue. Safe to call in
// any state; a no-op while a track is already playing.
func (p *Player) Play() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Pause suspends the stream. Reports whether anything changed.
func (p *Player) Pause() bool {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return false
	}
	p.state = StatePaused
	p.mu.Unlock()

	p.session.SetPaused(true)
	return true
}

// Resume continues a paused stream. Reports whether anything changed.
func (p *Player) Resume() bool {
	p.mu.Lock()
	if p.state != StatePaused {
		p.mu.Unlock()
		return false
	}
	p.state = StatePlaying
	p.mu.Unlock()

	p.session.SetPaused(false)
	return true
}

// Skip halts the current track; the session's completion callback then
// advances to the next one. Reports whether a track was actually skipped.
func (p *Player) Skip() bool {
	p.mu.Lock()
	if p.state != StatePlaying && p.state != StatePaused {
		p.mu.Unlock()
		return false
	}
	title := p.current.Title
	p.mu.Unlock()

	p.session.Halt()
	sys.LogVoice("Skipped: %s", title)
	return true
}

// Stop tears the player down and releases the voice connection. Only callers
// whose own voice channel matches the bound channel may stop it; everyone
// else gets ErrNotAuthorized. The queue is left intact for a future player.
func (p *Player) Stop(ctx context.Context, requesterChannel snowflake.ID) error {
	if requesterChannel != p.channelID {
		return ErrNotAuthorized
	}

	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return nil
	}
	p.state = StateStopped
	p.current = Track{}
	p.mu.Unlock()

	p.cancel()
	p.session.Halt()
	<-p.done
	p.session.Close(ctx)

	if p.onStopped != nil {
		p.onStopped(p)
	}
	sys.LogVoice("Player for guild %s stopped", p.guildID)
	return nil
}

// NowPlaying returns the current track and elapsed playback time. ok is
// false when nothing is playing.
func (p *Player) NowPlaying() (track Track, elapsed time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying && p.state != StatePaused {
		return Track{}, 0, false
	}
	return p.current, time.Since(p.startedAt), true
}
