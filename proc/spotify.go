package proc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/leeineian/ritmo/sys"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIBase  = "https://api.spotify.com/v1"
)

// ErrCatalogDisabled is returned when no catalog credentials are configured.
var ErrCatalogDisabled = errors.New("catalog credentials not configured")

var spotifyIDRegex = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// CatalogTrack is one song's metadata as reported by the catalog, not yet
// resolved to a playable locator.
type CatalogTrack struct {
	Artists    []string
	Name       string
	DurationMS int
}

// CatalogPlaylist is an ordered track listing from the catalog.
type CatalogPlaylist struct {
	Name        string
	Description string
	Tracks      []CatalogTrack
}

// Catalog fetches ordered track metadata for a playlist reference.
type Catalog interface {
	GetPlaylist(ctx context.Context, id string) (*CatalogPlaylist, error)
}

// ParseSpotifyPlaylistID extracts the playlist ID from the reference forms
// users paste: spotify:playlist:<id>, an open.spotify.com link, or a bare
// 22-character ID.
func ParseSpotifyPlaylistID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if id, ok := strings.CutPrefix(ref, "spotify:playlist:"); ok {
		return id, spotifyIDRegex.MatchString(id)
	}
	if strings.Contains(ref, "open.spotify.com") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", false
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, part := range parts {
			if part == "playlist" && i+1 < len(parts) {
				return parts[i+1], spotifyIDRegex.MatchString(parts[i+1])
			}
		}
		return "", false
	}
	if spotifyIDRegex.MatchString(ref) {
		return ref, true
	}
	return "", false
}

// SpotifyClient is a client-credentials Spotify Web API client. Requests are
// rate limited client-side to stay clear of 429s on large playlists.
type SpotifyClient struct {
	clientID     string
	clientSecret string
	http         *http.Client
	limiter      *rate.Limiter

	tokenMu   chan struct{}
	token     string
	expiresAt time.Time
}

func NewSpotifyClient(clientID, clientSecret string) (*SpotifyClient, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrCatalogDisabled
	}
	c := &SpotifyClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 15 * time.Second},
		limiter:      rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		tokenMu:      make(chan struct{}, 1),
	}
	c.tokenMu <- struct{}{}
	return c, nil
}

type spotifyTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyTrack struct {
	Name       string          `json:"name"`
	DurationMS int             `json:"duration_ms"`
	Artists    []spotifyArtist `json:"artists"`
}

type spotifyPlaylistItem struct {
	Track *spotifyTrack `json:"track"`
}

type spotifyTrackPage struct {
	Items []spotifyPlaylistItem `json:"items"`
	Next  string                `json:"next"`
}

type spotifyPlaylistResponse struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Tracks      spotifyTrackPage `json:"tracks"`
}

// ensureToken refreshes the client-credentials token when it is within 30
// seconds of expiry. Serialized through tokenMu so concurrent callers do not
// race the refresh.
func (c *SpotifyClient) ensureToken(ctx context.Context) (string, error) {
	select {
	case <-c.tokenMu:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { c.tokenMu <- struct{}{} }()

	if c.token != "" && time.Until(c.expiresAt) > 30*time.Second {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spotifyTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting catalog token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("catalog token request failed: %s: %s", resp.Status, body)
	}

	var tok spotifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding catalog token: %w", err)
	}
	c.token = tok.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	sys.LogSpotify("Refreshed API token (valid %ds)", tok.ExpiresIn)
	return c.token, nil
}

func (c *SpotifyClient) getJSON(ctx context.Context, apiURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiURL)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog request failed: %s: %s", resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetPlaylist fetches the full playlist, following pagination until the
// catalog reports no further pages. Track order is preserved.
func (c *SpotifyClient) GetPlaylist(ctx context.Context, id string) (*CatalogPlaylist, error) {
	var head spotifyPlaylistResponse
	endpoint := fmt.Sprintf("%s/playlists/%s?fields=name,description,tracks(next,items(track(name,duration_ms,artists(name))))", spotifyAPIBase, id)
	if err := c.getJSON(ctx, endpoint, &head); err != nil {
		return nil, err
	}

	pl := &CatalogPlaylist{Name: head.Name, Description: head.Description}
	appendPage := func(page spotifyTrackPage) {
		for _, item := range page.Items {
			if item.Track == nil {
				// Removed or region-locked entries come back null.
				continue
			}
			t := CatalogTrack{
				Name:       item.Track.Name,
				DurationMS: item.Track.DurationMS,
				Artists:    make([]string, 0, len(item.Track.Artists)),
			}
			for _, a := range item.Track.Artists {
				t.Artists = append(t.Artists, a.Name)
			}
			pl.Tracks = append(pl.Tracks, t)
		}
	}

	appendPage(head.Tracks)
	next := head.Tracks.Next
	for next != "" {
		var page spotifyTrackPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		appendPage(page)
		next = page.Next
	}

	sys.LogSpotify("Fetched playlist %q (%d tracks)", pl.Name, len(pl.Tracks))
	return pl, nil
}
