package fetch

import (
	"context"
	"fmt"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/dlqueue/internal/platform"
)

// URL templates
const (
	VideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// resolvePlaylist lists the entries of a playlist URL and returns them as
// collection metadata. Entries without a usable video ID are dropped; they
// are partial failures, not fatal ones.
func (f *YTDLPFetcher) resolvePlaylist(ctx context.Context, url string) (*Metadata, error) {
	playlistID, err := platform.ExtractPlaylistID(url)
	if err != nil {
		return nil, fmt.Errorf("could not extract playlist ID from %s: %w", url, err)
	}

	d := ytdlp.New()
	entries, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if entry.VideoID == "" {
			continue
		}
		items = append(items, Item{
			URL:   fmt.Sprintf(VideoURLTemplate, entry.VideoID),
			ID:    entry.VideoID,
			Title: entry.Title,
		})
	}

	title := playlistID
	if len(items) > 0 && items[0].Title != "" {
		title = items[0].Title + " Playlist"
	}

	return &Metadata{
		Title:        title,
		IsCollection: true,
		Items:        items,
	}, nil
}
