package home

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "voice",
		Description: "Voice System",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "play",
				Description: "Play a song or add it to the queue",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "query",
						Description:  "The URL or song name to play",
						Required:     true,
						Autocomplete: true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "playlist",
						Description: "Queue a saved playlist instead of a single song",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stop",
				Description: "Stop playback and leave the channel",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "pause",
				Description: "Pause the current song",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "resume",
				Description: "Resume a paused song",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "skip",
				Description: "Skip to the next song in the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "shuffle",
				Description: "Shuffle the pending queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "queue",
				Description: "Show the pending queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "np",
				Description: "Show the currently playing song",
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}

		switch *data.SubCommandName {
		case "play":
			handleVoicePlay(event, data)
		case "stop":
			handleVoiceStop(event, data)
		case "pause":
			handleVoicePause(event, data)
		case "resume":
			handleVoiceResume(event, data)
		case "skip":
			handleVoiceSkip(event, data)
		case "shuffle":
			handleVoiceShuffle(event, data)
		case "queue":
			handleVoiceQueue(event, data)
		case "np":
			handleVoiceNowPlaying(event, data)
		}
	})

	sys.RegisterAutocompleteHandler("voice", handleVoiceAutocomplete)

	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		proc.GetVoiceManager().Bind(client)
	})

	sys.RegisterVoiceStateUpdateHandler(func(event *events.GuildVoiceStateUpdate) {
		// Only the bot's own disconnect matters here.
		if event.VoiceState.UserID != event.Client().ID() {
			return
		}
		if event.VoiceState.ChannelID == nil {
			proc.GetVoiceManager().Dismiss(context.Background(), event.VoiceState.GuildID)
		}
	})

	sys.RegisterDaemon(sys.LogVoice, func(ctx context.Context) (bool, func(), func()) {
		return true, func() {}, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			proc.GetVoiceManager().Shutdown(shutdownCtx)
		}
	})
}

// requesterVoiceChannel looks up the invoking member's current voice channel.
func requesterVoiceChannel(event *events.ApplicationCommandInteractionCreate) (snowflake.ID, bool) {
	if event.GuildID() == nil {
		return 0, false
	}
	voiceState, ok := event.Client().Caches.VoiceState(*event.GuildID(), event.User().ID)
	if !ok || voiceState.ChannelID == nil {
		return 0, false
	}
	return *voiceState.ChannelID, true
}

func replyText(event *events.ApplicationCommandInteractionCreate, content string) {
	_ = event.CreateMessage(discord.MessageCreate{Content: content})
}

func updateResponseText(event *events.ApplicationCommandInteractionCreate, content string) {
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.MessageUpdate{Content: &content})
}
