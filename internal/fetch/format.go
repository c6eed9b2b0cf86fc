package fetch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ytget/dlqueue/internal/model"
)

// DefaultFilenameTemplate mirrors the historical output naming: title,
// uploader and the stable media ID, so files stay recognizable and unique.
const DefaultFilenameTemplate = "%(title).80s [%(uploader)s][%(id)s].%(ext)s"

// BuildFormat constructs the yt-dlp format selector for the given options.
// Audio-only downloads pick the best audio stream in the preferred format;
// video downloads combine a quality-capped video stream with best audio,
// with codec hints matched by regex, falling back to plain "best".
func BuildFormat(opts model.Options) string {
	if opts.AudioOnly {
		if opts.AudioExt != "" {
			return fmt.Sprintf("bestaudio[ext=%s]/bestaudio/best", opts.AudioExt)
		}
		return "bestaudio/best"
	}

	video := "bestvideo"
	if height, ok := qualityHeight(opts.Quality); ok {
		video = fmt.Sprintf("bestvideo[height<=%d]", height)
	}

	if opts.VideoExt != "" {
		video += fmt.Sprintf("[ext=%s]", opts.VideoExt)
	}
	if opts.VideoCodec != "" {
		video += fmt.Sprintf("[vcodec~=%s]", opts.VideoCodec)
	}

	audio := "bestaudio"
	if opts.AudioCodec != "" {
		audio += fmt.Sprintf("[acodec~=%s]", opts.AudioCodec)
	}

	return fmt.Sprintf("%s+%s/best", video, audio)
}

// FilenameTemplate returns the configured output template or the default.
func FilenameTemplate(opts model.Options) string {
	if opts.FilenameTemplate != "" {
		return opts.FilenameTemplate
	}
	return DefaultFilenameTemplate
}

// qualityHeight interprets a quality setting like "1080" or "720p" as a
// pixel-height cap. "best" and empty mean no cap.
func qualityHeight(quality string) (int, bool) {
	quality = strings.TrimSuffix(strings.TrimSpace(quality), "p")
	if quality == "" || strings.EqualFold(quality, "best") {
		return 0, false
	}

	height, err := strconv.Atoi(quality)
	if err != nil || height <= 0 {
		return 0, false
	}
	return height, true
}
