package home

import (
	"errors"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handleVoiceStop(event *events.ApplicationCommandInteractionCreate, _ discord.SlashCommandInteractionData) {
	channelID, ok := requesterVoiceChannel(event)
	if !ok {
		replyText(event, sys.ErrVoiceNotInChannel)
		return
	}

	err := proc.GetVoiceManager().Stop(sys.AppContext, *event.GuildID(), channelID)
	replyText(event, stopReply(err))
}

// stopReply maps a stop outcome to its user notice. A channel mismatch is a
// guarded refusal, not an error: the player keeps playing and the requester
// gets a neutral notice.
func stopReply(err error) string {
	switch {
	case errors.Is(err, proc.ErrNotConnected):
		return sys.ErrVoiceNotConnected
	case errors.Is(err, proc.ErrNotAuthorized):
		return sys.ErrVoiceWrongChannel
	default:
		return sys.MsgVoiceStopped
	}
}
