package home

import (
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handlePlaylistCreate(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	name, _ := data.OptString("name")
	ref, _ := data.OptString("url")

	// Importing resolves every track sequentially, which takes well over the
	// 3s interaction window for any real playlist.
	_ = event.DeferCreateMessage(false)

	rec, err := proc.GetVoiceManager().Playlists().Create(sys.AppContext, *event.GuildID(), name, event.User().ID.String(), ref)
	switch {
	case err == nil:
		updateResponseText(event, fmt.Sprintf("Saved **%s**: %d track(s), %s total.", rec.Name, len(rec.Tracks), sys.FormatDuration(rec.Duration)))
	case errors.Is(err, proc.ErrDuplicateName):
		updateResponseText(event, sys.ErrPlaylistExistsMsg)
	case errors.Is(err, proc.ErrCatalogDisabled):
		updateResponseText(event, "Playlist import is not configured on this bot.")
	case errors.Is(err, proc.ErrNotFound):
		updateResponseText(event, "Could not read that playlist reference.")
	default:
		sys.LogError("Playlist import failed: %v", err)
		updateResponseText(event, "Failed to import the playlist.")
	}
}
