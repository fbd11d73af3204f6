package proc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type fakeSession struct {
	mu       sync.Mutex
	played   []string
	current  func(error)
	finished bool
	closed   bool
}

func (s *fakeSession) Play(path string, onComplete func(error)) error {
	s.mu.Lock()
	s.played = append(s.played, path)
	s.current = onComplete
	s.finished = false
	s.mu.Unlock()
	return nil
}

// complete fires the completion callback once per Play, matching the real
// session's contract.
func (s *fakeSession) complete(err error) {
	s.mu.Lock()
	cb := s.current
	done := s.finished
	s.finished = true
	s.mu.Unlock()
	if cb != nil && !done {
		cb(err)
	}
}

func (s *fakeSession) Halt()          { s.complete(nil) }
func (s *fakeSession) SetPaused(bool) {}

func (s *fakeSession) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSession) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.played)
}

func (s *fakeSession) playedPath(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.played) {
		return ""
	}
	return s.played[i]
}

type fakeTransport struct {
	session *fakeSession
	err     error
}

func (t *fakeTransport) Connect(ctx context.Context, guildID, channelID snowflake.ID) (AudioSession, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.session, nil
}

func newTestPlayer(t *testing.T, q *SongQueue) (*Player, *fakeSession) {
	t.Helper()
	session := &fakeSession{}
	transport := &fakeTransport{session: session}
	p, err := NewPlayer(context.Background(), transport, q, snowflake.ID(1), snowflake.ID(100), nil)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(context.Background(), snowflake.ID(100)) })
	return p, session
}

func TestPlayerAdvancesThroughQueue(t *testing.T) {
	f := newFakeFetcher()
	q := NewSongQueue(f)
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c"} {
		if err := q.Push(ctx, track(n)); err != nil {
			t.Fatalf("push %s: %v", n, err)
		}
	}

	p, session := newTestPlayer(t, q)
	p.Play()
	waitFor(t, func() bool { return session.playCount() == 1 })
	if session.playedPath(0) != "/cache/a.opus" {
		t.Errorf("expected a first, got %s", session.playedPath(0))
	}
	if p.State() != StatePlaying {
		t.Errorf("expected playing, got %s", p.State())
	}

	// Skip advances to b; natural end advances to c.
	if !p.Skip() {
		t.Fatal("skip reported no-op while playing")
	}
	waitFor(t, func() bool { return session.playCount() == 2 })
	if session.playedPath(1) != "/cache/b.opus" {
		t.Errorf("expected b second, got %s", session.playedPath(1))
	}

	session.complete(nil)
	waitFor(t, func() bool { return session.playCount() == 3 })
	if session.playedPath(2) != "/cache/c.opus" {
		t.Errorf("expected c third, got %s", session.playedPath(2))
	}

	session.complete(nil)
	waitFor(t, func() bool { return p.State() == StateConnectedIdle })
	if q.Len() != 0 {
		t.Errorf("expected drained queue, got %d", q.Len())
	}
}

func TestPlayerDoubleSkipLastTrack(t *testing.T) {
	q := NewSongQueue(newFakeFetcher())
	if err := q.Push(context.Background(), track("only")); err != nil {
		t.Fatalf("push: %v", err)
	}

	p, session := newTestPlayer(t, q)
	p.Play()
	waitFor(t, func() bool { return session.playCount() == 1 })

	if !p.Skip() {
		t.Fatal("first skip reported no-op")
	}
	waitFor(t, func() bool { return p.State() == StateConnectedIdle })

	if p.Skip() {
		t.Error("second skip should be a no-op on an empty queue")
	}
}

func TestPlayerStopAuthorization(t *testing.T) {
	q := NewSongQueue(newFakeFetcher())
	if err := q.Push(context.Background(), track("song")); err != nil {
		t.Fatalf("push: %v", err)
	}

	p, session := newTestPlayer(t, q)
	p.Play()
	waitFor(t, func() bool { return session.playCount() == 1 })

	// Wrong channel: rejected, playback untouched.
	if err := p.Stop(context.Background(), snowflake.ID(999)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if p.State() != StatePlaying {
		t.Errorf("state changed after rejected stop: %s", p.State())
	}
	session.mu.Lock()
	closed := session.closed
	session.mu.Unlock()
	if closed {
		t.Error("session closed after rejected stop")
	}

	// Matching channel: teardown.
	stopped := false
	p.onStopped = func(*Player) { stopped = true }
	if err := p.Stop(context.Background(), snowflake.ID(100)); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.State() != StateStopped {
		t.Errorf("expected stopped, got %s", p.State())
	}
	session.mu.Lock()
	closed = session.closed
	session.mu.Unlock()
	if !closed {
		t.Error("session not closed after stop")
	}
	if !stopped {
		t.Error("onStopped callback not invoked")
	}

	// Queue data survives the player.
	if q.Len() != 1 {
		t.Errorf("expected queue preserved after stop, got %d", q.Len())
	}
}

func TestPlayerPauseResumeStates(t *testing.T) {
	q := NewSongQueue(newFakeFetcher())
	p, session := newTestPlayer(t, q)

	// Nothing playing yet.
	if p.Pause() {
		t.Error("pause should be a no-op while idle")
	}
	if p.Resume() {
		t.Error("resume should be a no-op while idle")
	}

	if err := q.Push(context.Background(), track("tune")); err != nil {
		t.Fatalf("push: %v", err)
	}
	p.Play()
	waitFor(t, func() bool { return session.playCount() == 1 })

	if !p.Pause() {
		t.Fatal("pause failed while playing")
	}
	if p.State() != StatePaused {
		t.Errorf("expected paused, got %s", p.State())
	}
	if p.Pause() {
		t.Error("double pause should be a no-op")
	}
	if !p.Resume() {
		t.Fatal("resume failed while paused")
	}
	if p.State() != StatePlaying {
		t.Errorf("expected playing, got %s", p.State())
	}
}

func TestPlayerNowPlaying(t *testing.T) {
	q := NewSongQueue(newFakeFetcher())
	p, session := newTestPlayer(t, q)

	if _, _, ok := p.NowPlaying(); ok {
		t.Error("now playing should report nothing while idle")
	}

	if err := q.Push(context.Background(), track("current")); err != nil {
		t.Fatalf("push: %v", err)
	}
	p.Play()
	waitFor(t, func() bool { return session.playCount() == 1 })

	tr, elapsed, ok := p.NowPlaying()
	if !ok {
		t.Fatal("expected a current track")
	}
	if tr.Title != "current" {
		t.Errorf("expected current, got %s", tr.Title)
	}
	if elapsed < 0 || elapsed > time.Minute {
		t.Errorf("implausible elapsed time %v", elapsed)
	}
}

func TestPlayerErrorCompletionAdvances(t *testing.T) {
	q := NewSongQueue(newFakeFetcher())
	ctx := context.Background()
	for _, n := range []string{"bad", "good"} {
		if err := q.Push(ctx, track(n)); err != nil {
			t.Fatalf("push %s: %v", n, err)
		}
	}

	p, session := newTestPlayer(t, q)
	p.Play()
	waitFor(t, func() bool { return session.playCount() == 1 })

	// A backend failure must advance, not stall.
	session.complete(errors.New("decoder exploded"))
	waitFor(t, func() bool { return session.playCount() == 2 })
	if session.playedPath(1) != "/cache/good.opus" {
		t.Errorf("expected good after failure, got %s", session.playedPath(1))
	}
	_ = p
}
