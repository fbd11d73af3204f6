package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handlePlaylistInfo(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	name, _ := data.OptString("name")
	rec, err := proc.GetVoiceManager().Playlists().Load(sys.AppContext, *event.GuildID(), name)
	if err != nil {
		replyText(event, sys.ErrPlaylistNotFoundMsg)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** by <@%s>\n", rec.Name, rec.CreatedBy)
	if rec.Description != "" {
		fmt.Fprintf(&sb, "%s\n", rec.Description)
	}
	fmt.Fprintf(&sb, "%d track(s), %s total. Created %s.", len(rec.Tracks), sys.FormatDuration(rec.Duration), rec.CreatedAt.Format("2006-01-02"))
	replyText(event, sb.String())
}

func handlePlaylistTracklist(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	name, _ := data.OptString("name")
	rec, err := proc.GetVoiceManager().Playlists().Load(sys.AppContext, *event.GuildID(), name)
	if err != nil {
		replyText(event, sys.ErrPlaylistNotFoundMsg)
		return
	}

	var sb strings.Builder
	for i, t := range rec.Tracks {
		if i >= 20 {
			fmt.Fprintf(&sb, "... and %d more", len(rec.Tracks)-20)
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, sys.TruncateCenter(t.Title, 80))
	}
	replyText(event, strings.TrimRight(sb.String(), "\n"))
}
