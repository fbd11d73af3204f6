package proc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/ritmo/sys"
)

// TrackResolver turns a free-text query into a playable track.
type TrackResolver interface {
	Resolve(ctx context.Context, query string) (Track, error)
}

// PlaylistStore manages persisted named playlists for a guild: importing
// them from the catalog at creation time, and loading, listing, and deleting
// the stored records afterwards.
type PlaylistStore struct {
	catalog  Catalog
	resolver TrackResolver
}

func NewPlaylistStore(catalog Catalog, resolver TrackResolver) *PlaylistStore {
	return &PlaylistStore{catalog: catalog, resolver: resolver}
}

// catalogQuery formats catalog track metadata into the search query used to
// resolve it to a playable locator.
func catalogQuery(t CatalogTrack) string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return strings.Join(t.Artists, ", ") + " - " + t.Name
}

// Create imports a catalog playlist under the given name. Every catalog
// track is resolved sequentially so the stored order matches the catalog
// order; tracks that fail resolution are skipped with a log line rather than
// aborting the import. Duration is the sum of the catalog-reported track
// durations.
func (s *PlaylistStore) Create(ctx context.Context, guildID snowflake.ID, name, createdBy, ref string) (*sys.PlaylistRecord, error) {
	if s.catalog == nil {
		return nil, ErrCatalogDisabled
	}

	id, ok := ParseSpotifyPlaylistID(ref)
	if !ok {
		return nil, fmt.Errorf("%w: not a recognized playlist reference: %q", ErrNotFound, ref)
	}

	cat, err := s.catalog.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}

	var total time.Duration
	tracks := make([]sys.PlaylistTrack, 0, len(cat.Tracks))
	for _, ct := range cat.Tracks {
		query := catalogQuery(ct)
		t, err := s.resolver.Resolve(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sys.LogPlaylist("Skipping unresolvable track %q: %v", query, err)
			continue
		}
		tracks = append(tracks, sys.PlaylistTrack{Title: t.Title, URL: t.SourceLocator})
		total += time.Duration(ct.DurationMS) * time.Millisecond
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no resolvable tracks in playlist %q", ErrNotFound, cat.Name)
	}

	rec := &sys.PlaylistRecord{
		GuildID:     guildID,
		Name:        name,
		CreatedBy:   createdBy,
		Description: cat.Description,
		Duration:    total,
		Tracks:      tracks,
		CreatedAt:   time.Now(),
	}
	if err := sys.InsertPlaylist(ctx, rec); err != nil {
		if errors.Is(err, sys.ErrPlaylistExists) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return nil, err
	}
	sys.LogPlaylist("Created playlist %q for guild %s (%d tracks)", name, guildID, len(tracks))
	return rec, nil
}

// Load returns the stored playlist, or ErrNotFound.
func (s *PlaylistStore) Load(ctx context.Context, guildID snowflake.ID, name string) (*sys.PlaylistRecord, error) {
	rec, err := sys.GetPlaylist(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: playlist %q", ErrNotFound, name)
	}
	return rec, nil
}

// Delete removes the stored playlist, or ErrNotFound when no record exists.
func (s *PlaylistStore) Delete(ctx context.Context, guildID snowflake.ID, name string) error {
	deleted, err := sys.DeletePlaylist(ctx, guildID, name)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: playlist %q", ErrNotFound, name)
	}
	sys.LogPlaylist("Deleted playlist %q for guild %s", name, guildID)
	return nil
}

// List returns summaries of every playlist stored for the guild.
func (s *PlaylistStore) List(ctx context.Context, guildID snowflake.ID) ([]*sys.PlaylistSummary, error) {
	return sys.ListPlaylists(ctx, guildID)
}
