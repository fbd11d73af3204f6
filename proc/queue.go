package proc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/leeineian/ritmo/sys"
)

// prefetchWindow is how many upcoming queue entries get their audio
// downloaded ahead of playback.
const prefetchWindow = 2

// ArtifactFetcher is the slice of Fetcher the queue needs. Tests substitute a
// fake that counts downloads.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, locator string) (FetchedArtifact, error)
	Remove(a FetchedArtifact) error
}

type queueEntry struct {
	track    Track
	fetching bool
	fetchErr error
}

// SongQueue is the per-guild backlog of pending tracks plus the prefetch
// window of already-downloaded artifacts.
//
// The ready list is always a prefix-aligned subsequence of pending: ready[i]
// is the artifact for pending[i]. Every mutation preserves that alignment,
// and every in-flight fetch re-validates its slot under the lock before
// publishing, so a shuffle or pop that raced the download causes the stale
// result to be discarded instead of appended out of position.
type SongQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	fetcher ArtifactFetcher

	pending []*queueEntry
	ready   []FetchedArtifact

	// gen increments on shuffle; fetches started under an older gen must
	// not publish.
	gen uint64
}

func NewSongQueue(fetcher ArtifactFetcher) *SongQueue {
	q := &SongQueue{fetcher: fetcher}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *SongQueue) indexOf(e *queueEntry) int {
	for i, p := range q.pending {
		if p == e {
			return i
		}
	}
	return -1
}

// Push appends a track to the backlog. When the new entry lands inside the
// prefetch window its download runs synchronously, so the caller blocks until
// the audio is actually available. Entries past the window are fetched later
// by UpdatePrefetch. A failed download leaves the entry pending so Pop can
// retry it.
func (q *SongQueue) Push(ctx context.Context, t Track) error {
	q.mu.Lock()
	e := &queueEntry{track: t}
	q.pending = append(q.pending, e)
	idx := len(q.pending) - 1
	if idx >= prefetchWindow || idx != len(q.ready) {
		q.mu.Unlock()
		return nil
	}
	e.fetching = true
	gen := q.gen
	q.mu.Unlock()

	art, err := q.fetcher.Fetch(ctx, t.SourceLocator)

	q.mu.Lock()
	defer q.mu.Unlock()
	e.fetching = false
	if err != nil {
		q.cond.Broadcast()
		return err
	}
	if q.gen != gen || q.indexOf(e) != len(q.ready) {
		// The slot moved while the download ran; drop the file, a later
		// fetch re-downloads it at its new position.
		_ = q.fetcher.Remove(art)
		q.cond.Broadcast()
		return nil
	}
	q.ready = append(q.ready, art)
	q.cond.Broadcast()
	return nil
}

// Pop removes the front entry and returns its artifact, blocking while the
// front's download is still in flight. A failed front entry is removed and
// its error returned, never leaving the caller hung on a slot that cannot
// become ready.
func (q *SongQueue) Pop(ctx context.Context) (Track, FetchedArtifact, error) {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return Track{}, FetchedArtifact{}, ErrEmptyQueue
	}

	// Wake the cond wait if the context is cancelled mid-block.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			q.mu.Unlock()
			return Track{}, FetchedArtifact{}, err
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return Track{}, FetchedArtifact{}, ErrEmptyQueue
		}
		e := q.pending[0]

		if len(q.ready) > 0 {
			art := q.ready[0]
			q.ready = q.ready[1:]
			q.pending = q.pending[1:]
			t := e.track
			q.mu.Unlock()
			return t, art, nil
		}

		if e.fetchErr != nil {
			q.pending = q.pending[1:]
			t, err := e.track, e.fetchErr
			q.cond.Broadcast()
			q.mu.Unlock()
			return t, FetchedArtifact{}, err
		}

		if !e.fetching {
			// No download in flight for the front (its push-time fetch
			// failed, or the window never reached it). Run one here; a
			// second failure marks the entry and the next iteration
			// removes it.
			e.fetching = true
			gen := q.gen
			q.mu.Unlock()
			art, err := q.fetcher.Fetch(ctx, e.track.SourceLocator)
			q.mu.Lock()
			e.fetching = false
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					// The caller went away, not the download. The entry stays
					// pending so a later pop retries the fetch.
					continue
				}
				e.fetchErr = err
				continue
			}
			if q.gen != gen || q.indexOf(e) != len(q.ready) {
				_ = q.fetcher.Remove(art)
				continue
			}
			q.ready = append(q.ready, art)
			q.cond.Broadcast()
			continue
		}

		q.cond.Wait()
	}
}

// UpdatePrefetch tops up the window by one: if the slot just past the last
// ready artifact is inside the window and idle, its download starts in the
// background. Called by the player after each track starts.
func (q *SongQueue) UpdatePrefetch() {
	q.mu.Lock()
	i := len(q.ready)
	if i >= prefetchWindow || i >= len(q.pending) {
		q.mu.Unlock()
		return
	}
	e := q.pending[i]
	if e.fetching || e.fetchErr != nil {
		q.mu.Unlock()
		return
	}
	e.fetching = true
	gen := q.gen
	q.mu.Unlock()

	go func() {
		art, err := q.fetcher.Fetch(context.Background(), e.track.SourceLocator)
		q.mu.Lock()
		defer q.mu.Unlock()
		e.fetching = false
		if err != nil {
			sys.LogQueue("Prefetch failed for %s: %v", e.track.Title, err)
			q.cond.Broadcast()
			return
		}
		if q.gen != gen || q.indexOf(e) != len(q.ready) {
			_ = q.fetcher.Remove(art)
			q.cond.Broadcast()
			return
		}
		q.ready = append(q.ready, art)
		q.cond.Broadcast()
	}()
}

// Shuffle permutes the backlog in place. Prefetched artifacts no longer match
// their positions, so their files are deleted and the window is rebuilt from
// the new front. Fetches still in flight for the old order notice the
// generation bump and discard their results.
func (q *SongQueue) Shuffle(ctx context.Context) {
	q.mu.Lock()
	q.gen++
	rand.Shuffle(len(q.pending), func(i, j int) {
		q.pending[i], q.pending[j] = q.pending[j], q.pending[i]
	})
	for _, e := range q.pending {
		e.fetchErr = nil
	}
	stale := q.ready
	q.ready = nil
	n := len(q.pending)
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, a := range stale {
		_ = q.fetcher.Remove(a)
	}
	sys.LogQueue("Shuffled %d pending track(s)", n)

	q.refillWindow(ctx)
}

// refillWindow synchronously downloads artifacts for window slots until the
// window is full, the backlog runs out, or a fetch fails (Pop surfaces the
// failure later).
func (q *SongQueue) refillWindow(ctx context.Context) {
	for {
		q.mu.Lock()
		i := len(q.ready)
		if i >= prefetchWindow || i >= len(q.pending) {
			q.mu.Unlock()
			return
		}
		e := q.pending[i]
		if e.fetching || e.fetchErr != nil {
			q.mu.Unlock()
			return
		}
		e.fetching = true
		gen := q.gen
		q.mu.Unlock()

		art, err := q.fetcher.Fetch(ctx, e.track.SourceLocator)

		q.mu.Lock()
		e.fetching = false
		if err != nil {
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}
		if q.gen != gen || q.indexOf(e) != len(q.ready) {
			_ = q.fetcher.Remove(art)
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}
		q.ready = append(q.ready, art)
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// Len returns the number of pending tracks.
func (q *SongQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ReadyLen returns the number of prefetched artifacts.
func (q *SongQueue) ReadyLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// Titles returns the pending titles in queue order.
func (q *SongQueue) Titles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.pending))
	for i, e := range q.pending {
		out[i] = e.track.Title
	}
	return out
}

// Summary renders a bounded listing of the backlog for display.
func (q *SongQueue) Summary() string {
	titles := q.Titles()
	if len(titles) == 0 {
		return sys.MsgVoiceQueueEmpty
	}

	var sb strings.Builder
	for i, title := range titles {
		if i >= 10 {
			fmt.Fprintf(&sb, "... and %d more", len(titles)-10)
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, title)
	}
	return strings.TrimRight(sb.String(), "\n")
}
