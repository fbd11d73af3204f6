package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handleVoiceQueue(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	queue := proc.GetVoiceManager().Queue(*event.GuildID())
	replyText(event, queue.Summary())
}

func handleVoiceNowPlaying(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	player, ok := proc.GetVoiceManager().Player(*event.GuildID())
	if !ok {
		replyText(event, sys.ErrVoiceNothingPlaying)
		return
	}
	track, elapsed, playing := player.NowPlaying()
	if !playing {
		replyText(event, sys.ErrVoiceNothingPlaying)
		return
	}
	replyText(event, "Now playing: ["+track.Title+"]("+track.SourceLocator+") ("+sys.FormatDuration(elapsed)+")")
}
