package proc

import "testing"

func TestParseSpotifyPlaylistID(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		wantID string
		wantOK bool
	}{
		{"uri", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", true},
		{"open url", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", true},
		{"open url with query", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abcd", "37i9dQZF1DXcBWIGoYBM5M", true},
		{"bare id", "37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", true},
		{"whitespace", "  37i9dQZF1DXcBWIGoYBM5M  ", "37i9dQZF1DXcBWIGoYBM5M", true},
		{"track url", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "", false},
		{"short id", "tooShort", "", false},
		{"free text", "my favourite songs", "", false},
		{"uri with bad id", "spotify:playlist:nope", "nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseSpotifyPlaylistID(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
		})
	}
}

func TestCatalogQuery(t *testing.T) {
	tests := []struct {
		name string
		in   CatalogTrack
		want string
	}{
		{"single artist", CatalogTrack{Artists: []string{"Daft Punk"}, Name: "Around the World"}, "Daft Punk - Around the World"},
		{"two artists", CatalogTrack{Artists: []string{"Elton John", "Dua Lipa"}, Name: "Cold Heart"}, "Elton John, Dua Lipa - Cold Heart"},
		{"no artist", CatalogTrack{Name: "Untitled"}, "Untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := catalogQuery(tt.in); got != tt.want {
				t.Errorf("catalogQuery = %q, want %q", got, tt.want)
			}
		})
	}
}
