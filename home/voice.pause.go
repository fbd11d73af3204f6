package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handleVoicePause(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	player, ok := proc.GetVoiceManager().Player(*event.GuildID())
	if !ok || !player.Pause() {
		replyText(event, sys.ErrVoiceNothingPlaying)
		return
	}
	replyText(event, sys.MsgVoicePaused)
}

func handleVoiceResume(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	player, ok := proc.GetVoiceManager().Player(*event.GuildID())
	if !ok || !player.Resume() {
		replyText(event, sys.ErrVoiceNothingPlaying)
		return
	}
	replyText(event, sys.MsgVoiceResumed)
}
