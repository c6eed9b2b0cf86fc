package fetch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	log "github.com/sirupsen/logrus"

	"github.com/ytget/dlqueue/internal/model"
	"github.com/ytget/dlqueue/internal/platform"
)

// Timeout constants
const (
	DefaultResolveTimeout = 60 * time.Second
	ProgressInterval      = 500 * time.Millisecond
)

// YTDLPFetcher implements Fetcher on top of the yt-dlp binary.
type YTDLPFetcher struct {
	resolveTimeout time.Duration
}

// NewYTDLPFetcher creates a fetcher with default timeouts.
func NewYTDLPFetcher() *YTDLPFetcher {
	return &YTDLPFetcher{
		resolveTimeout: DefaultResolveTimeout,
	}
}

// SetResolveTimeout sets the timeout for metadata-only operations.
func (f *YTDLPFetcher) SetResolveTimeout(timeout time.Duration) {
	f.resolveTimeout = timeout
}

// Resolve fetches metadata without downloading. Playlist URLs expand into
// one item per listed entry when the options allow playlists; everything
// else resolves to single-item metadata with the title filled in.
func (f *YTDLPFetcher) Resolve(ctx context.Context, url string, opts model.Options) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.resolveTimeout)
	defer cancel()

	if opts.AllowPlaylist && platform.IsPlaylistURL(url) {
		return f.resolvePlaylist(ctx, url)
	}

	dl := ytdlp.New().
		SkipDownload().
		DumpJSON().
		NoPlaylist()
	if opts.CookiesFile != "" {
		dl.Cookies(opts.CookiesFile)
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", url, err)
	}

	meta := &Metadata{}
	info, err := result.GetExtractedInfo()
	if err == nil && len(info) > 0 && info[0].Title != nil {
		meta.Title = *info[0].Title
	}
	return meta, nil
}

// ExpectedOutputPath predicts the final file path a download would produce
// under the current options, without downloading any bytes.
func (f *YTDLPFetcher) ExpectedOutputPath(ctx context.Context, url string, opts model.Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.resolveTimeout)
	defer cancel()

	dl := ytdlp.New().
		SkipDownload().
		NoPlaylist().
		Print("filename").
		Output(FilenameTemplate(opts))
	if opts.RestrictFilenames {
		dl.RestrictFilenames()
	}
	if opts.CookiesFile != "" {
		dl.Cookies(opts.CookiesFile)
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to predict filename for %s: %w", url, err)
	}

	name := strings.TrimSpace(result.Stdout)
	if name == "" {
		return "", fmt.Errorf("empty filename prediction for %s", url)
	}

	return filepath.Join(opts.DestinationDir, filepath.Base(name)), nil
}

// Fetch performs the transfer. The collision check runs here, immediately
// before yt-dlp starts writing, so it is authoritative even when multiple
// jobs target the same directory.
func (f *YTDLPFetcher) Fetch(ctx context.Context, url string, opts model.Options, overwrite bool, events Events) error {
	if err := platform.CreateDirectoryIfNotExists(opts.DestinationDir); err != nil {
		return fmt.Errorf("failed to ensure destination dir: %w", err)
	}
	if opts.TempDir != "" {
		if err := platform.CreateDirectoryIfNotExists(opts.TempDir); err != nil {
			return fmt.Errorf("failed to ensure temp dir: %w", err)
		}
	}

	expected, err := f.ExpectedOutputPath(ctx, url, opts)
	if err != nil {
		// Filename prediction failing is not fatal; the download itself
		// will surface any real error.
		log.Warnf("could not predict output path for %s: %v", url, err)
	} else if !overwrite && platform.FileExists(expected) {
		return &DestinationExistsError{Path: expected}
	}

	dl := ytdlp.New().
		Format(BuildFormat(opts)).
		Output(FilenameTemplate(opts)).
		NoPlaylist().
		Paths("home:" + opts.DestinationDir)
	if opts.TempDir != "" {
		dl.Paths("temp:" + opts.TempDir)
	}
	if overwrite {
		dl.ForceOverwrites()
	}
	if opts.RestrictFilenames {
		dl.RestrictFilenames()
	}
	if opts.RateLimit != "" && opts.RateLimit != "0" {
		dl.LimitRate(opts.RateLimit)
	}
	if opts.CookiesFile != "" {
		dl.Cookies(opts.CookiesFile)
	}
	if opts.AudioOnly {
		dl.ExtractAudio()
		if opts.AudioExt != "" {
			dl.AudioFormat(opts.AudioExt)
		}
	}

	dl.ProgressFunc(ProgressInterval, func(update ytdlp.ProgressUpdate) {
		if events.OnProgress != nil && update.TotalBytes > 0 {
			pct := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
			events.OnProgress(pct)
		}
		if events.OnStatus != nil {
			if update.TotalBytes > 0 {
				events.OnStatus(fmt.Sprintf("%.2f MB / %.2f MB",
					float64(update.DownloadedBytes)/1024/1024,
					float64(update.TotalBytes)/1024/1024))
			} else {
				events.OnStatus(fmt.Sprintf("Downloaded %.2f MB...",
					float64(update.DownloadedBytes)/1024/1024))
			}
		}
		if events.OnTitle != nil && update.Info != nil && update.Info.Title != nil && *update.Info.Title != "" {
			events.OnTitle(*update.Info.Title)
		}
	})

	if _, err := dl.Run(ctx, url); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("download failed for %s: %w", url, err)
	}

	return nil
}
