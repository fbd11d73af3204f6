package proc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/ritmo/sys"
)

type fakeCatalog struct {
	playlists map[string]*CatalogPlaylist
}

func (c *fakeCatalog) GetPlaylist(ctx context.Context, id string) (*CatalogPlaylist, error) {
	pl, ok := c.playlists[id]
	if !ok {
		return nil, ErrNotFound
	}
	return pl, nil
}

type echoResolver struct {
	failOn string
}

func (r *echoResolver) Resolve(ctx context.Context, query string) (Track, error) {
	if query == r.failOn {
		return Track{}, ErrNotFound
	}
	return Track{Title: query, SourceLocator: "https://www.youtube.com/watch?v=" + VideoID(query)}, nil
}

func setupTestDB(t *testing.T) {
	t.Helper()
	if err := sys.InitDatabase(context.Background(), "file::memory:?cache=shared"); err != nil {
		t.Fatalf("init database: %v", err)
	}
	t.Cleanup(sys.CloseDatabase)
}

const testPlaylistID = "37i9dQZF1DXcBWIGoYBM5M"

func testStore() *PlaylistStore {
	catalog := &fakeCatalog{playlists: map[string]*CatalogPlaylist{
		testPlaylistID: {
			Name:        "Mix",
			Description: "test mix",
			Tracks: []CatalogTrack{
				{Artists: []string{"Artist One"}, Name: "Opener", DurationMS: 180000},
				{Artists: []string{"Artist Two"}, Name: "Middle", DurationMS: 210000},
				{Artists: []string{"Artist Three"}, Name: "Closer", DurationMS: 150000},
			},
		},
	}}
	return NewPlaylistStore(catalog, &echoResolver{})
}

func TestPlaylistCreateAndLoad(t *testing.T) {
	setupTestDB(t)
	store := testStore()
	ctx := context.Background()
	guild := snowflake.ID(42)

	rec, err := store.Create(ctx, guild, "mix", "user1", testPlaylistID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(rec.Tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(rec.Tracks))
	}
	wantDur := time.Duration(180000+210000+150000) * time.Millisecond
	if rec.Duration != wantDur {
		t.Errorf("duration = %v, want %v", rec.Duration, wantDur)
	}

	loaded, err := store.Load(ctx, guild, "mix")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Duration != wantDur {
		t.Errorf("loaded duration = %v, want %v", loaded.Duration, wantDur)
	}
	wantTitles := []string{"Artist One - Opener", "Artist Two - Middle", "Artist Three - Closer"}
	for i, tr := range loaded.Tracks {
		if tr.Title != wantTitles[i] {
			t.Errorf("track %d = %q, want %q", i, tr.Title, wantTitles[i])
		}
		if tr.URL == "" {
			t.Errorf("track %d has no locator", i)
		}
	}
}

func TestPlaylistCreateDuplicateName(t *testing.T) {
	setupTestDB(t)
	store := testStore()
	ctx := context.Background()
	guild := snowflake.ID(42)

	if _, err := store.Create(ctx, guild, "mix", "user1", testPlaylistID); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := store.Create(ctx, guild, "mix", "user2", testPlaylistID)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	// Same name in another guild is fine.
	if _, err := store.Create(ctx, snowflake.ID(43), "mix", "user1", testPlaylistID); err != nil {
		t.Errorf("cross-guild create: %v", err)
	}
}

func TestPlaylistSkipsUnresolvableTracks(t *testing.T) {
	setupTestDB(t)
	catalog := &fakeCatalog{playlists: map[string]*CatalogPlaylist{
		testPlaylistID: {
			Name: "Partial",
			Tracks: []CatalogTrack{
				{Artists: []string{"Good"}, Name: "Song", DurationMS: 60000},
				{Artists: []string{"Gone"}, Name: "Song", DurationMS: 60000},
			},
		},
	}}
	store := NewPlaylistStore(catalog, &echoResolver{failOn: "Gone - Song"})

	rec, err := store.Create(context.Background(), snowflake.ID(1), "partial", "u", testPlaylistID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(rec.Tracks) != 1 {
		t.Fatalf("expected 1 resolvable track, got %d", len(rec.Tracks))
	}
	if rec.Tracks[0].Title != "Good - Song" {
		t.Errorf("unexpected surviving track %q", rec.Tracks[0].Title)
	}
}

func TestPlaylistDeleteAndList(t *testing.T) {
	setupTestDB(t)
	store := testStore()
	ctx := context.Background()
	guild := snowflake.ID(7)

	if _, err := store.Create(ctx, guild, "mix", "user1", testPlaylistID); err != nil {
		t.Fatalf("create: %v", err)
	}

	summaries, err := store.List(ctx, guild)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "mix" || summaries[0].TrackCount != 3 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	if err := store.Delete(ctx, guild, "mix"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, guild, "mix"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := store.Load(ctx, guild, "mix"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on load, got %v", err)
	}

	summaries, err = store.List(ctx, guild)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected no playlists, got %d", len(summaries))
	}
}

func TestPlaylistCreateRejectsBadReference(t *testing.T) {
	setupTestDB(t)
	store := testStore()
	_, err := store.Create(context.Background(), snowflake.ID(1), "x", "u", "not a playlist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPlaylistCatalogDisabled(t *testing.T) {
	store := NewPlaylistStore(nil, &echoResolver{})
	_, err := store.Create(context.Background(), snowflake.ID(1), "x", "u", testPlaylistID)
	if !errors.Is(err, ErrCatalogDisabled) {
		t.Errorf("expected ErrCatalogDisabled, got %v", err)
	}
}
