package home

import (
	"errors"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handlePlaylistDelete(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	name, _ := data.OptString("name")
	store := proc.GetVoiceManager().Playlists()
	guildID := *event.GuildID()

	rec, err := store.Load(sys.AppContext, guildID, name)
	if err != nil {
		replyText(event, sys.ErrPlaylistNotFoundMsg)
		return
	}

	// Only the creator, a guild administrator, or a bot owner may delete.
	userID := event.User().ID.String()
	isAdmin := event.Member() != nil && event.Member().Permissions.Has(discord.PermissionAdministrator)
	if rec.CreatedBy != userID && !isAdmin && !sys.IsOwner(userID) {
		replyText(event, "Only the playlist's creator can delete it.")
		return
	}

	if err := store.Delete(sys.AppContext, guildID, name); err != nil {
		if errors.Is(err, proc.ErrNotFound) {
			replyText(event, sys.ErrPlaylistNotFoundMsg)
			return
		}
		sys.LogError("Playlist delete failed: %v", err)
		replyText(event, "Failed to delete the playlist.")
		return
	}
	replyText(event, "Deleted **"+name+"**.")
}
