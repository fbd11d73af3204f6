package proc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/leeineian/ritmo/sys"
	"github.com/lrstanley/go-ytdlp"
)

var (
	videoIDRegex = regexp.MustCompile(`(?:\?|&)v=([^&]+)`)
	rawIDRegex   = regexp.MustCompile(`(?:\?|&)id=([^&]+)`)
)

// MediaInfo is metadata resolved without downloading.
type MediaInfo struct {
	ID       string
	Title    string
	Uploader string
	Duration time.Duration
}

// Downloader is the download/transcode backend. The production implementation
// shells out to yt-dlp; tests substitute a fake with call counting.
type Downloader interface {
	// Download produces a finished Ogg/Opus file at dest, or cleans up and
	// returns an error. The file must appear at dest atomically.
	Download(ctx context.Context, locator, dest string) error
	// Probe resolves metadata for a locator without downloading.
	Probe(ctx context.Context, locator string) (*MediaInfo, error)
}

// FetchedArtifact references a cached media file, keyed by the stable
// identifier derived from its source locator.
type FetchedArtifact struct {
	ID        string
	LocalPath string
}

// Fetcher obtains locally playable artifacts for source locators, caching by
// identifier so repeated requests reuse the same file.
type Fetcher struct {
	cacheDir string
	dl       Downloader
}

func NewFetcher(cacheDir string, dl Downloader) *Fetcher {
	return &Fetcher{cacheDir: cacheDir, dl: dl}
}

// VideoID extracts a stable identifier from a YouTube-style locator. Locators
// without a recognizable ID hash to a stable hex digest instead, so the same
// locator always maps to the same cache file.
func VideoID(u string) string {
	id := ""
	if matches := videoIDRegex.FindStringSubmatch(u); len(matches) > 1 {
		id = matches[1]
	} else if matches := rawIDRegex.FindStringSubmatch(u); len(matches) > 1 {
		id = matches[1]
	} else if strings.Contains(u, "youtu.be/") {
		parts := strings.Split(u, "youtu.be/")
		if len(parts) >= 2 {
			vidParts := strings.Split(parts[1], "?")
			if len(vidParts) > 0 {
				id = vidParts[0]
			}
		}
	} else if strings.Contains(u, "shorts/") {
		parts := strings.Split(u, "shorts/")
		if len(parts) >= 2 {
			vidParts := strings.Split(parts[1], "?")
			if len(vidParts) > 0 {
				id = vidParts[0]
			}
		}
	}

	if id == "" || len(id) > 50 {
		hash := sha256.Sum256([]byte(u))
		return hex.EncodeToString(hash[:16])
	}
	return id
}

// ArtifactPath returns the cache path an artifact for the locator would use.
// Shuffle's deletion and the cache-hit check both go through this derivation.
func (f *Fetcher) ArtifactPath(locator string) string {
	return filepath.Join(f.cacheDir, VideoID(locator)+".opus")
}

// Scoped returns a fetcher caching under a subdirectory of this one's root.
// Each guild's queue fetches through its own scope, so one queue deleting
// window files can never touch an artifact another queue's window points at.
func (f *Fetcher) Scoped(name string) *Fetcher {
	return &Fetcher{cacheDir: filepath.Join(f.cacheDir, name), dl: f.dl}
}

// Fetch returns a playable artifact for the locator, downloading only on a
// cache miss.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (FetchedArtifact, error) {
	id := VideoID(locator)
	path := filepath.Join(f.cacheDir, id+".opus")

	if st, err := os.Stat(path); err == nil && st.Size() > 0 {
		sys.LogFetch("Cache hit: %s", id)
		return FetchedArtifact{ID: id, LocalPath: path}, nil
	}

	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		return FetchedArtifact{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	sys.LogFetch("Downloading %s", locator)
	if err := f.dl.Download(ctx, locator, path); err != nil {
		return FetchedArtifact{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	return FetchedArtifact{ID: id, LocalPath: path}, nil
}

// Probe resolves display metadata for a locator without downloading it.
func (f *Fetcher) Probe(ctx context.Context, locator string) (*MediaInfo, error) {
	return f.dl.Probe(ctx, locator)
}

// Remove deletes a cached artifact's file. Missing files are not an error.
func (f *Fetcher) Remove(a FetchedArtifact) error {
	if a.LocalPath == "" {
		return nil
	}
	if err := os.Remove(a.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CleanCache wipes the cache directory and recreates it empty.
func (f *Fetcher) CleanCache() error {
	if err := os.RemoveAll(f.cacheDir); err != nil {
		return err
	}
	return os.MkdirAll(f.cacheDir, 0755)
}

// ===========================
// yt-dlp
// ===========================

// newYtdlp returns a new yt-dlp command with common setup.
func newYtdlp() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings()

	if proxy := os.Getenv("YOUTUBE_PROXY"); proxy != "" {
		cmd.Proxy(proxy)
	}

	return cmd
}

// buildYtdlpArgs returns common args for yt-dlp commands
func buildYtdlpArgs() []string {
	return []string{
		"--no-playlist",
		"--no-check-certificates",
		"--no-warnings",
		"--extractor-args", "youtube:player_client=android,web",
		"--prefer-free-formats",
		"--socket-timeout", "30",
		"--retries", "20",
		"--fragment-retries", "20",
	}
}

// YtdlpDownloader implements Downloader against the yt-dlp binary.
type YtdlpDownloader struct{}

func NewYtdlpDownloader() *YtdlpDownloader {
	return &YtdlpDownloader{}
}

// Download extracts the locator's audio into an Ogg/Opus file and renames it
// into place at dest. All intermediate files live in a scratch directory next
// to dest so a failed run never leaves a partial file the cache check could
// mistake for a finished artifact.
func (d *YtdlpDownloader) Download(ctx context.Context, locator, dest string) error {
	work := dest + ".work"
	if err := os.MkdirAll(work, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(work)

	out := filepath.Join(work, "audio")
	cmd := newYtdlp()
	args := buildYtdlpArgs()
	res, err := cmd.
		Format("bestaudio[ext=webm]/bestaudio/best").
		ExtractAudio().
		AudioFormat("opus").
		Output(out + ".%(ext)s").
		NoSimulate().
		IgnoreConfig().
		NoWarnings().
		Run(ctx, append(args, locator)...)
	if err != nil {
		if res != nil && res.Stderr != "" {
			sys.LogFetch("yt-dlp failed for %s: %s", locator, strings.TrimSpace(res.Stderr))
		}
		return err
	}

	produced := out + ".opus"
	if _, err := os.Stat(produced); err != nil {
		// Some extractors keep the source extension when the audio is
		// already Opus in an Ogg container.
		matches, _ := filepath.Glob(out + ".*")
		if len(matches) == 0 {
			return errors.New("yt-dlp produced no output file")
		}
		produced = matches[0]
	}

	return os.Rename(produced, dest)
}

// Probe resolves title, uploader, duration and ID without downloading.
func (d *YtdlpDownloader) Probe(ctx context.Context, locator string) (*MediaInfo, error) {
	cmd := newYtdlp()
	args := append(buildYtdlpArgs(), "--skip-download")
	res, err := cmd.
		Print("%(title)s\t%(uploader)s\t%(duration)s\t%(id)s").
		NoSimulate().
		IgnoreConfig().
		NoWarnings().
		Run(ctx, append(args, locator)...)
	if err != nil {
		return nil, err
	}

	ls := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	for _, l := range ls {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 {
			continue
		}
		dur, _ := time.ParseDuration(ps[2] + "s")
		return &MediaInfo{Title: ps[0], Uploader: ps[1], Duration: dur, ID: ps[3]}, nil
	}
	return nil, errors.New("failed to resolve metadata")
}
