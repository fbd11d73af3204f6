package home

import (
	"errors"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "clearcache",
		Description:              "Wipe the song download cache and idle queues (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
	}, handleClearCache)
}

func handleClearCache(event *events.ApplicationCommandInteractionCreate) {
	err := proc.GetVoiceManager().ClearCache()
	switch {
	case errors.Is(err, proc.ErrPlaybackActive):
		replyText(event, sys.ErrVoiceCacheBusy)
	case err != nil:
		sys.LogVoice("Cache clear failed: %v", err)
		replyText(event, sys.ErrVoiceCacheClearFail)
	default:
		replyText(event, sys.MsgVoiceCacheCleared)
	}
}
