package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handleVoiceSkip(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	player, ok := proc.GetVoiceManager().Player(*event.GuildID())
	if !ok {
		replyText(event, sys.ErrVoiceNothingPlaying)
		return
	}
	track, _, playing := player.NowPlaying()
	if !player.Skip() || !playing {
		replyText(event, sys.ErrVoiceNothingPlaying)
		return
	}
	replyText(event, "Skipped: "+track.Title)
}

func handleVoiceShuffle(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	vm := proc.GetVoiceManager()
	queue := vm.Queue(*event.GuildID())
	if queue.Len() == 0 {
		replyText(event, sys.MsgVoiceQueueEmpty)
		return
	}

	// Shuffle re-downloads the window, so defer before blocking.
	_ = event.DeferCreateMessage(false)
	queue.Shuffle(sys.AppContext)
	updateResponseText(event, sys.MsgVoiceShuffled)
}
