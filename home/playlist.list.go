package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handlePlaylistList(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	summaries, err := proc.GetVoiceManager().Playlists().List(sys.AppContext, *event.GuildID())
	if err != nil {
		sys.LogError("Playlist list failed: %v", err)
		replyText(event, "Failed to load playlists.")
		return
	}
	if len(summaries) == 0 {
		replyText(event, sys.MsgPlaylistNoneSaved)
		return
	}

	var sb strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&sb, "**%s** by <@%s>: %d track(s), %s\n", s.Name, s.CreatedBy, s.TrackCount, sys.FormatDuration(s.Duration))
	}
	replyText(event, strings.TrimRight(sb.String(), "\n"))
}
