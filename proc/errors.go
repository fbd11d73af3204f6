package proc

import "errors"

// Error kinds surfaced by the playback pipeline. Command handlers match on
// these with errors.Is and translate them into user-facing messages.
var (
	// ErrNotFound means the search backend returned no usable result for a
	// query, or a named playlist does not exist.
	ErrNotFound = errors.New("not found")

	// ErrFetch wraps any download or transcode failure. The queue entry the
	// fetch was serving stays pending so a later attempt can retry it.
	ErrFetch = errors.New("fetch failed")

	// ErrEmptyQueue is returned by Pop when there is nothing pending.
	ErrEmptyQueue = errors.New("queue is empty")

	// ErrNotAuthorized means a stop request came from a user outside the
	// player's bound voice channel.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrDuplicateName means a playlist with that name already exists for
	// the guild.
	ErrDuplicateName = errors.New("playlist name already taken")

	// ErrNotConnected means no player exists for the guild.
	ErrNotConnected = errors.New("not connected to voice")

	// ErrPlaybackActive means a maintenance operation was refused because at
	// least one player is still live.
	ErrPlaybackActive = errors.New("playback in progress")
)
