package sys

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func setupDB(t *testing.T) {
	t.Helper()
	if err := InitDatabase(context.Background(), "file::memory:?cache=shared"); err != nil {
		t.Fatalf("init database: %v", err)
	}
	t.Cleanup(CloseDatabase)
}

func samplePlaylist(guild snowflake.ID, name string) *PlaylistRecord {
	return &PlaylistRecord{
		GuildID:     guild,
		Name:        name,
		CreatedBy:   "123456789",
		Description: "late night drive",
		Duration:    9*time.Minute + 30*time.Second,
		Tracks: []PlaylistTrack{
			{Title: "Track One", URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa"},
			{Title: "Track Two", URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb"},
		},
	}
}

func TestBotConfigRoundTrip(t *testing.T) {
	setupDB(t)
	ctx := context.Background()

	if err := SetBotConfig(ctx, "mode", "dev"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := GetBotConfig(ctx, "mode")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "dev" {
		t.Errorf("got %q, want dev", v)
	}

	// Upsert overwrites.
	if err := SetBotConfig(ctx, "mode", "prod"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _ = GetBotConfig(ctx, "mode")
	if v != "prod" {
		t.Errorf("got %q, want prod", v)
	}

	// Missing key is empty, not an error.
	v, err = GetBotConfig(ctx, "missing")
	if err != nil || v != "" {
		t.Errorf("missing key: got %q, %v", v, err)
	}
}

func TestPlaylistRoundTrip(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	guild := snowflake.ID(1001)

	in := samplePlaylist(guild, "drive")
	if err := InsertPlaylist(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}

	out, err := GetPlaylist(ctx, guild, "drive")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out == nil {
		t.Fatal("playlist not found after insert")
	}
	if out.GuildID != guild || out.Name != in.Name || out.CreatedBy != in.CreatedBy {
		t.Errorf("identity mismatch: %+v", out)
	}
	if out.Description != in.Description {
		t.Errorf("description = %q, want %q", out.Description, in.Description)
	}
	if out.Duration != in.Duration {
		t.Errorf("duration = %v, want %v", out.Duration, in.Duration)
	}
	if len(out.Tracks) != len(in.Tracks) {
		t.Fatalf("track count = %d, want %d", len(out.Tracks), len(in.Tracks))
	}
	for i := range in.Tracks {
		if out.Tracks[i] != in.Tracks[i] {
			t.Errorf("track %d = %+v, want %+v", i, out.Tracks[i], in.Tracks[i])
		}
	}
}

func TestPlaylistDuplicateInsert(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	guild := snowflake.ID(1001)

	if err := InsertPlaylist(ctx, samplePlaylist(guild, "dupe")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := InsertPlaylist(ctx, samplePlaylist(guild, "dupe")); !errors.Is(err, ErrPlaylistExists) {
		t.Fatalf("expected ErrPlaylistExists, got %v", err)
	}
	// Other guilds are a separate namespace.
	if err := InsertPlaylist(ctx, samplePlaylist(snowflake.ID(2002), "dupe")); err != nil {
		t.Errorf("cross-guild insert: %v", err)
	}
}

func TestPlaylistMissingIsNil(t *testing.T) {
	setupDB(t)
	rec, err := GetPlaylist(context.Background(), snowflake.ID(1), "ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for missing playlist, got %+v", rec)
	}
}

func TestPlaylistDeleteCascades(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	guild := snowflake.ID(1001)

	if err := InsertPlaylist(ctx, samplePlaylist(guild, "gone")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted, err := DeletePlaylist(ctx, guild, "gone")
	if err != nil || !deleted {
		t.Fatalf("delete: %v (deleted=%v)", err, deleted)
	}
	deleted, err = DeletePlaylist(ctx, guild, "gone")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Error("second delete reported a removed row")
	}

	// Tracks went with the parent row.
	var orphans int
	if err := DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM playlist_tracks WHERE guild_id = ? AND playlist_name = ?",
		guild.String(), "gone",
	).Scan(&orphans); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("expected 0 orphan tracks, got %d", orphans)
	}
}

func TestListPlaylists(t *testing.T) {
	setupDB(t)
	ctx := context.Background()
	guild := snowflake.ID(1001)

	for _, name := range []string{"first", "second"} {
		if err := InsertPlaylist(ctx, samplePlaylist(guild, name)); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}

	summaries, err := ListPlaylists(ctx, guild)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.TrackCount != 2 {
			t.Errorf("%s: track count = %d, want 2", s.Name, s.TrackCount)
		}
		if s.Duration != 9*time.Minute+30*time.Second {
			t.Errorf("%s: duration = %v", s.Name, s.Duration)
		}
	}

	empty, err := ListPlaylists(ctx, snowflake.ID(9999))
	if err != nil {
		t.Fatalf("list empty guild: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no playlists for empty guild, got %d", len(empty))
	}
}
