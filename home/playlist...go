package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/leeineian/ritmo/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "playlist",
		Description: "Saved playlists",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "create",
				Description: "Import a Spotify playlist under a name",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "name",
						Description: "Name to save the playlist under",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "url",
						Description: "Spotify playlist link, URI, or ID",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "delete",
				Description: "Delete a saved playlist",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "name",
						Description: "Name of the playlist to delete",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "list",
				Description: "List the playlists saved for this server",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "info",
				Description: "Show details of a saved playlist",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "name",
						Description: "Name of the playlist",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "tracklist",
				Description: "Show the tracks of a saved playlist",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "name",
						Description: "Name of the playlist",
						Required:    true,
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}

		switch *data.SubCommandName {
		case "create":
			handlePlaylistCreate(event, data)
		case "delete":
			handlePlaylistDelete(event, data)
		case "list":
			handlePlaylistList(event, data)
		case "info":
			handlePlaylistInfo(event, data)
		case "tracklist":
			handlePlaylistTracklist(event, data)
		}
	})
}
