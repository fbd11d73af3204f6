package proc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeDownloader struct {
	downloads int
	fail      error
}

func (d *fakeDownloader) Download(ctx context.Context, locator, dest string) error {
	d.downloads++
	if d.fail != nil {
		return d.fail
	}
	return os.WriteFile(dest, []byte("opus-data"), 0644)
}

func (d *fakeDownloader) Probe(ctx context.Context, locator string) (*MediaInfo, error) {
	return &MediaInfo{ID: VideoID(locator), Title: "probe"}, nil
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url with extra params", "https://www.youtube.com/watch?feature=share&v=abc123", "abc123"},
		{"short link", "https://youtu.be/xyz789?t=30", "xyz789"},
		{"shorts", "https://www.youtube.com/shorts/short01?feature=share", "short01"},
		{"music url", "https://music.youtube.com/watch?v=mus1cID", "mus1cID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VideoID(tt.in); got != tt.want {
				t.Errorf("VideoID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestVideoIDFallbackStable(t *testing.T) {
	a := VideoID("https://example.com/stream/123")
	b := VideoID("https://example.com/stream/123")
	if a != b {
		t.Errorf("fallback IDs differ: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestFetchIdempotent(t *testing.T) {
	dir := t.TempDir()
	dl := &fakeDownloader{}
	f := NewFetcher(dir, dl)
	ctx := context.Background()
	locator := "https://www.youtube.com/watch?v=cachehit01"

	first, err := f.Fetch(ctx, locator)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := f.Fetch(ctx, locator)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if first.LocalPath != second.LocalPath {
		t.Errorf("paths differ: %q vs %q", first.LocalPath, second.LocalPath)
	}
	if dl.downloads != 1 {
		t.Errorf("expected 1 download, got %d", dl.downloads)
	}
	if first.LocalPath != f.ArtifactPath(locator) {
		t.Errorf("fetch path %q does not match ArtifactPath %q", first.LocalPath, f.ArtifactPath(locator))
	}
}

func TestFetchWrapsDownloadError(t *testing.T) {
	dir := t.TempDir()
	dl := &fakeDownloader{fail: errors.New("boom")}
	f := NewFetcher(dir, dl)

	_, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=failcase01")
	if !errors.Is(err, ErrFetch) {
		t.Errorf("expected ErrFetch, got %v", err)
	}
}

func TestRemoveAfterFetch(t *testing.T) {
	dir := t.TempDir()
	f := NewFetcher(dir, &fakeDownloader{})

	art, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=removeme01")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := f.Remove(art); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(art.LocalPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("artifact file still exists after remove")
	}
	// Removing twice is fine.
	if err := f.Remove(art); err != nil {
		t.Errorf("second remove: %v", err)
	}
}

func TestCleanCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tracks")
	f := NewFetcher(dir, &fakeDownloader{})

	if _, err := f.Fetch(context.Background(), "https://www.youtube.com/watch?v=sweepme001"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := f.CleanCache(); err != nil {
		t.Fatalf("clean: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty cache dir, found %d entries", len(entries))
	}
}
