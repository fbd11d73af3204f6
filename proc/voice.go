package proc

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/snowflake/v2"
	"github.com/raitonoberu/ytmusic"

	"github.com/leeineian/ritmo/sys"
)

// SuggestResult is one autocomplete entry shown while the user types.
type SuggestResult struct {
	Title string
	URL   string
}

type cachedSuggest struct {
	results   []SuggestResult
	expiresAt time.Time
}

type suggestCache struct {
	sync.RWMutex
	items map[string]cachedSuggest
}

// VoiceSystem is the per-guild registry of players and queues, plus the
// shared resolver, fetcher, and playlist store. At most one live player
// exists per guild; a player leaves the registry exactly when it stops.
type VoiceSystem struct {
	mu        sync.Mutex
	players   map[snowflake.ID]*Player
	queues    map[snowflake.ID]*SongQueue
	transport VoiceTransport

	resolver  *Resolver
	fetcher   *Fetcher
	playlists *PlaylistStore
	cache     suggestCache
}

var (
	voiceSystem *VoiceSystem
	voiceOnce   sync.Once
)

// GetVoiceManager returns the process-wide voice system, constructing it on
// first use from the global configuration.
func GetVoiceManager() *VoiceSystem {
	voiceOnce.Do(func() {
		cfg := sys.GlobalConfig
		resolver := NewResolver(newYTSearchBackend())
		fetcher := NewFetcher(cfg.CacheDir, NewYtdlpDownloader())

		var catalog Catalog
		if sc, err := NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret); err == nil {
			catalog = sc
		} else {
			sys.LogSpotify("Catalog disabled: %v", err)
		}

		voiceSystem = &VoiceSystem{
			players:   make(map[snowflake.ID]*Player),
			queues:    make(map[snowflake.ID]*SongQueue),
			resolver:  resolver,
			fetcher:   fetcher,
			playlists: NewPlaylistStore(catalog, resolver),
			cache:     suggestCache{items: make(map[string]cachedSuggest)},
		}
		voiceSystem.startCacheGC()
	})
	return voiceSystem
}

// Bind attaches the gateway client once it is ready. Players cannot be
// created before this runs.
func (vs *VoiceSystem) Bind(client *bot.Client) {
	vs.mu.Lock()
	vs.transport = NewDiscordTransport(client)
	vs.mu.Unlock()
}

func (vs *VoiceSystem) Resolver() *Resolver       { return vs.resolver }
func (vs *VoiceSystem) Fetcher() *Fetcher         { return vs.fetcher }
func (vs *VoiceSystem) Playlists() *PlaylistStore { return vs.playlists }

// Queue returns the guild's song queue, creating it on first use. Queues
// outlive players so a stopped session keeps its backlog. Each queue fetches
// into its own cache subdirectory; the window files it deletes on shuffle
// are exclusively its own.
func (vs *VoiceSystem) Queue(guildID snowflake.ID) *SongQueue {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	q, ok := vs.queues[guildID]
	if !ok {
		q = NewSongQueue(vs.fetcher.Scoped(guildID.String()))
		vs.queues[guildID] = q
	}
	return q
}

// Player returns the guild's live player, if any.
func (vs *VoiceSystem) Player(guildID snowflake.ID) (*Player, bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	p, ok := vs.players[guildID]
	return p, ok
}

// EnsurePlayer returns the guild's live player, connecting a fresh one to
// channelID when none exists. An existing player keeps its original channel
// binding regardless of where the requester sits.
func (vs *VoiceSystem) EnsurePlayer(ctx context.Context, guildID, channelID snowflake.ID) (*Player, error) {
	vs.mu.Lock()
	if p, ok := vs.players[guildID]; ok {
		vs.mu.Unlock()
		return p, nil
	}
	transport := vs.transport
	vs.mu.Unlock()

	if transport == nil {
		return nil, ErrNotConnected
	}

	queue := vs.Queue(guildID)
	p, err := NewPlayer(ctx, transport, queue, guildID, channelID, vs.removePlayer)
	if err != nil {
		return nil, err
	}

	vs.mu.Lock()
	if existing, ok := vs.players[guildID]; ok {
		// Another command won the race; discard ours.
		vs.mu.Unlock()
		_ = p.Stop(ctx, channelID)
		return existing, nil
	}
	vs.players[guildID] = p
	vs.mu.Unlock()
	return p, nil
}

func (vs *VoiceSystem) removePlayer(p *Player) {
	vs.mu.Lock()
	if vs.players[p.GuildID()] == p {
		delete(vs.players, p.GuildID())
	}
	vs.mu.Unlock()
}

// Stop tears down the guild's player, honoring the channel authorization
// check. ErrNotConnected when no player is live.
func (vs *VoiceSystem) Stop(ctx context.Context, guildID, requesterChannel snowflake.ID) error {
	p, ok := vs.Player(guildID)
	if !ok {
		return ErrNotConnected
	}
	return p.Stop(ctx, requesterChannel)
}

// Dismiss tears down the guild's player unconditionally, used when the bot
// is moved or disconnected from its channel by the platform.
func (vs *VoiceSystem) Dismiss(ctx context.Context, guildID snowflake.ID) {
	p, ok := vs.Player(guildID)
	if !ok {
		return
	}
	sys.LogVoice("Disconnected from voice in guild %s, tearing down player", guildID)
	_ = p.Stop(ctx, p.ChannelID())
}

// Shutdown stops every live player. Queues and the artifact cache are left
// in place.
func (vs *VoiceSystem) Shutdown(ctx context.Context) {
	vs.mu.Lock()
	players := make([]*Player, 0, len(vs.players))
	for _, p := range vs.players {
		players = append(players, p)
	}
	vs.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(p *Player) {
			defer wg.Done()
			_ = p.Stop(ctx, p.ChannelID())
		}(p)
	}
	wg.Wait()
}

// ClearCache drops every idle queue and wipes the download cache. Refused
// with ErrPlaybackActive while any player is live, since its artifacts
// would vanish mid-play.
func (vs *VoiceSystem) ClearCache() error {
	vs.mu.Lock()
	if len(vs.players) > 0 {
		vs.mu.Unlock()
		return ErrPlaybackActive
	}
	vs.queues = make(map[snowflake.ID]*SongQueue)
	vs.mu.Unlock()

	sys.LogVoice("Clearing download cache")
	return vs.fetcher.CleanCache()
}

// Suggest produces autocomplete entries for a partial query by merging
// YouTube Music and YouTube results, music-first. Results are cached for an
// hour per query string.
func (vs *VoiceSystem) Suggest(ctx context.Context, q string) []SuggestResult {
	q = strings.TrimSpace(q)
	if q == "" || strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://") {
		return nil
	}

	vs.cache.RLock()
	if item, ok := vs.cache.items[q]; ok && time.Now().Before(item.expiresAt) {
		vs.cache.RUnlock()
		return item.results
	}
	vs.cache.RUnlock()

	sctx, cancel := context.WithTimeout(ctx, 2600*time.Millisecond)
	defer cancel()

	var resMu sync.Mutex
	var ytm, yt []SuggestResult
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s := ytmusic.TrackSearch(q)
		r, err := s.Next()
		if err != nil {
			return
		}
		for _, v := range r.Tracks {
			if v.VideoID == "" {
				continue
			}
			art := ""
			if len(v.Artists) > 0 {
				art = " - " + v.Artists[0].Name
			}
			resMu.Lock()
			if !seen[v.VideoID] {
				seen[v.VideoID] = true
				ytm = append(ytm, SuggestResult{
					URL:   "https://music.youtube.com/watch?v=" + v.VideoID,
					Title: sys.TruncateWithPreserve(v.Title, 100, "[YTM] ", art),
				})
			}
			resMu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		results, err := vs.resolver.Search(sctx, q)
		if err != nil {
			return
		}
		for _, v := range results {
			id := VideoID(v.URL)
			resMu.Lock()
			if !seen[id] {
				seen[id] = true
				yt = append(yt, SuggestResult{
					URL:   v.URL,
					Title: sys.TruncateWithPreserve(v.Title, 100, "[YT] ", ""),
				})
			}
			resMu.Unlock()
		}
	}()

	d := make(chan struct{})
	go func() {
		wg.Wait()
		close(d)
	}()
	select {
	case <-d:
	case <-time.After(2300 * time.Millisecond):
	case <-ctx.Done():
	}

	resMu.Lock()
	defer resMu.Unlock()
	fin := append(append([]SuggestResult{}, ytm...), yt...)
	if len(fin) > 25 {
		fin = fin[:25]
	}

	if len(fin) > 0 {
		vs.cache.Lock()
		vs.cache.items[q] = cachedSuggest{results: fin, expiresAt: time.Now().Add(1 * time.Hour)}
		vs.cache.Unlock()
	}
	return fin
}

// startCacheGC sweeps expired autocomplete entries every ten minutes.
func (vs *VoiceSystem) startCacheGC() {
	sys.SafeGo(func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			now := time.Now()
			vs.cache.Lock()
			for k, v := range vs.cache.items {
				if now.After(v.expiresAt) {
					delete(vs.cache.items, k)
				}
			}
			vs.cache.Unlock()
		}
	})
}
