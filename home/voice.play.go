package home

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"

	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

func handleVoicePlay(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	query, _ := data.OptString("query")
	playlistName, _ := data.OptString("playlist")

	channelID, ok := requesterVoiceChannel(event)
	if !ok {
		replyText(event, sys.ErrVoiceNotInChannel)
		return
	}

	// The first slots fetch synchronously, which blows the 3s interaction
	// window, so defer immediately.
	_ = event.DeferCreateMessage(false)

	guildID := *event.GuildID()
	vm := proc.GetVoiceManager()
	ctx := sys.AppContext

	player, err := vm.EnsurePlayer(ctx, guildID, channelID)
	if err != nil {
		sys.LogError("Failed to start player in guild %s: %v", guildID, err)
		updateResponseText(event, "Failed to join the voice channel: "+err.Error())
		return
	}

	queue := vm.Queue(guildID)

	if playlistName != "" {
		added, err := queueSavedPlaylist(ctx, vm, guildID, queue, playlistName)
		if err != nil {
			updateResponseText(event, err.Error())
			return
		}
		player.Play()
		updateResponseText(event, fmt.Sprintf("Queued %d track(s) from **%s**.", added, playlistName))
		return
	}

	track, err := vm.Resolver().Resolve(ctx, query)
	if err != nil {
		updateResponseText(event, "No results for: "+query)
		return
	}

	// A pasted URL passes through resolution with itself as the title;
	// probe the source for a readable one.
	if track.Title == track.SourceLocator {
		probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		info, perr := vm.Fetcher().Probe(probeCtx, track.SourceLocator)
		cancel()
		if perr == nil && info.Title != "" {
			track.Title = info.Title
		}
	}

	if err := queue.Push(ctx, track); err != nil {
		sys.LogError("Fetch failed for %q: %v", track.Title, err)
		updateResponseText(event, "Failed to download: "+track.Title)
		return
	}

	player.Play()
	updateResponseText(event, "Queued: ["+track.Title+"]("+track.SourceLocator+")")
}

// queueSavedPlaylist pushes every track of a stored playlist. The fetch
// errors of individual entries are not fatal; the queue retries them at pop
// time.
func queueSavedPlaylist(ctx context.Context, vm *proc.VoiceSystem, guildID snowflake.ID, queue *proc.SongQueue, name string) (int, error) {
	rec, err := vm.Playlists().Load(ctx, guildID, name)
	if err != nil {
		return 0, fmt.Errorf("%s", sys.ErrPlaylistNotFoundMsg)
	}
	added := 0
	for _, t := range rec.Tracks {
		if err := queue.Push(ctx, proc.Track{Title: t.Title, SourceLocator: t.URL}); err != nil {
			sys.LogQueue("Deferred fetch for %q: %v", t.Title, err)
		}
		added++
	}
	return added, nil
}

func handleVoiceAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()
	if focused.Name != "query" {
		return
	}
	query := focused.String()
	if query == "" {
		_ = event.AutocompleteResult(nil)
		return
	}

	results := proc.GetVoiceManager().Suggest(context.Background(), query)

	var choices []discord.AutocompleteChoice
	for i, r := range results {
		if i >= 25 {
			break
		}
		name := r.Title
		if len(name) > 100 {
			name = name[:97] + "..."
		}
		val := r.URL
		if len(val) > 100 {
			val = r.Title
			if len(val) > 100 {
				val = val[:100]
			}
		}
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  name,
			Value: val,
		})
	}
	_ = event.AutocompleteResult(choices)
}
