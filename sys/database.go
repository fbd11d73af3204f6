package sys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

const schemaVersion = "1"

// ErrPlaylistExists is returned by InsertPlaylist when the (guild, name) pair
// is already taken.
var ErrPlaylistExists = errors.New("playlist already exists")

func InitDatabase(ctx context.Context, dataSourceName string) error {
	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
		"PRAGMA foreign_keys=ON;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS playlists (
			guild_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_by TEXT NOT NULL,
			description TEXT DEFAULT '',
			duration_ms INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS playlist_tracks (
			guild_id TEXT NOT NULL,
			playlist_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			PRIMARY KEY (guild_id, playlist_name, position),
			FOREIGN KEY (guild_id, playlist_name)
				REFERENCES playlists (guild_id, name) ON DELETE CASCADE
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	_ = SetBotConfig(initCtx, "schema_version", schemaVersion)

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Playlists ---

type PlaylistTrack struct {
	Title string
	URL   string
}

type PlaylistRecord struct {
	GuildID     snowflake.ID
	Name        string
	CreatedBy   string
	Description string
	Duration    time.Duration
	Tracks      []PlaylistTrack
	CreatedAt   time.Time
}

type PlaylistSummary struct {
	Name       string
	CreatedBy  string
	TrackCount int
	Duration   time.Duration
	CreatedAt  time.Time
}

// InsertPlaylist persists a playlist and its tracks in a single transaction.
func InsertPlaylist(ctx context.Context, r *PlaylistRecord) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM playlists WHERE guild_id = ? AND name = ?",
		r.GuildID.String(), r.Name,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrPlaylistExists
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlists (guild_id, name, created_by, description, duration_ms)
		VALUES (?, ?, ?, ?, ?)
	`, r.GuildID.String(), r.Name, r.CreatedBy, r.Description, r.Duration.Milliseconds())
	if err != nil {
		return err
	}

	for i, t := range r.Tracks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO playlist_tracks (guild_id, playlist_name, position, title, url)
			VALUES (?, ?, ?, ?, ?)
		`, r.GuildID.String(), r.Name, i, t.Title, t.URL)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPlaylist returns the playlist with its tracks in stored order, or nil if
// no playlist with that name exists for the guild.
func GetPlaylist(ctx context.Context, guildID snowflake.ID, name string) (*PlaylistRecord, error) {
	row := DB.QueryRowContext(ctx, `
		SELECT guild_id, name, created_by, description, duration_ms, created_at
		FROM playlists WHERE guild_id = ? AND name = ?
	`, guildID.String(), name)

	r := &PlaylistRecord{}
	var gid string
	var durationMS int64
	err := row.Scan(&gid, &r.Name, &r.CreatedBy, &r.Description, &durationMS, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.GuildID, _ = snowflake.Parse(gid)
	r.Duration = time.Duration(durationMS) * time.Millisecond

	rows, err := DB.QueryContext(ctx, `
		SELECT title, url FROM playlist_tracks
		WHERE guild_id = ? AND playlist_name = ?
		ORDER BY position ASC
	`, guildID.String(), name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t PlaylistTrack
		if err := rows.Scan(&t.Title, &t.URL); err != nil {
			return nil, err
		}
		r.Tracks = append(r.Tracks, t)
	}
	return r, rows.Err()
}

// DeletePlaylist removes the playlist record and reports whether one existed.
func DeletePlaylist(ctx context.Context, guildID snowflake.ID, name string) (bool, error) {
	result, err := DB.ExecContext(ctx,
		"DELETE FROM playlists WHERE guild_id = ? AND name = ?",
		guildID.String(), name,
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

// ListPlaylists returns summaries for all of a guild's playlists, newest first.
func ListPlaylists(ctx context.Context, guildID snowflake.ID) ([]*PlaylistSummary, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT p.name, p.created_by, p.duration_ms, p.created_at,
			(SELECT COUNT(*) FROM playlist_tracks t
				WHERE t.guild_id = p.guild_id AND t.playlist_name = p.name)
		FROM playlists p WHERE p.guild_id = ?
		ORDER BY p.created_at DESC
	`, guildID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*PlaylistSummary
	for rows.Next() {
		s := &PlaylistSummary{}
		var durationMS int64
		if err := rows.Scan(&s.Name, &s.CreatedBy, &durationMS, &s.CreatedAt, &s.TrackCount); err != nil {
			return nil, err
		}
		s.Duration = time.Duration(durationMS) * time.Millisecond
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
