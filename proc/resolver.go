package proc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leeineian/ritmo/sys"
	"github.com/ppalone/ytsearch"
)

// Track is a resolved playback request: a display title plus the locator the
// fetcher downloads from. Immutable once resolved.
type Track struct {
	Title         string
	SourceLocator string
}

// SearchResult is a single hit from a search backend.
type SearchResult struct {
	Title       string
	ChannelName string
	URL         string
}

// SearchBackend is the outbound search capability the resolver queries.
type SearchBackend interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// ytsearchBackend queries YouTube through ppalone/ytsearch.
type ytsearchBackend struct {
	c *ytsearch.Client
}

func newYTSearchBackend() *ytsearchBackend {
	return &ytsearchBackend{c: ytsearch.NewClient(nil)}
}

func (b *ytsearchBackend) Search(ctx context.Context, query string) ([]SearchResult, error) {
	r, err := b.c.Search(ctx, query)
	if err != nil {
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
	}
	return out, nil
}

// Resolver turns free-text queries into Tracks. First result wins; a miss is
// retried a bounded number of times with backoff before giving up.
type Resolver struct {
	backend  SearchBackend
	attempts int
	backoff  time.Duration
}

func NewResolver(backend SearchBackend) *Resolver {
	return &Resolver{
		backend:  backend,
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
}

// Search returns the backend's raw result list for a query.
func (r *Resolver) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return r.backend.Search(ctx, query)
}

// Resolve queries the search backend for a track matching the query. URLs
// pass through unresolved since they already locate a source.
func (r *Resolver) Resolve(ctx context.Context, query string) (Track, error) {
	if strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://") {
		return Track{Title: query, SourceLocator: query}, nil
	}

	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			wait := r.backoff * time.Duration(1<<uint(i-1))
			sys.LogResolver("Search miss for %q, retrying in %v (attempt %d/%d)", query, wait, i+1, r.attempts)
			select {
			case <-ctx.Done():
				return Track{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		results, err := r.backend.Search(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}
		if len(results) == 0 {
			lastErr = ErrNotFound
			continue
		}

		first := results[0]
		return Track{Title: first.Title, SourceLocator: first.URL}, nil
	}

	if lastErr == nil {
		lastErr = ErrNotFound
	}
	if lastErr == ErrNotFound {
		return Track{}, fmt.Errorf("resolve %q: %w", query, ErrNotFound)
	}
	return Track{}, fmt.Errorf("resolve %q: %w: %v", query, ErrNotFound, lastErr)
}
