package platform

import (
	"fmt"
	"net/url"
	"strings"
)

// URL parameters and separators
const (
	PlaylistURLParam       = "list="
	PlaylistParamSeparator = "&"
	PlaylistPathFragment   = "/playlist"
)

// ValidateURL checks that raw is a plausible download URL: an absolute
// http(s) URL without embedded whitespace.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("empty URL")
	}
	if strings.ContainsAny(raw, " \t\n") {
		return fmt.Errorf("URL contains whitespace: %q", raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL has no host: %q", raw)
	}
	return nil
}

// IsPlaylistURL reports whether url points at a playlist rather than a
// single media item.
func IsPlaylistURL(url string) bool {
	return strings.Contains(url, PlaylistURLParam) || strings.Contains(url, PlaylistPathFragment)
}

// ExtractPlaylistID extracts the playlist ID from a playlist URL.
// Supported formats:
//   - https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID
//   - https://www.youtube.com/playlist?list=PLAYLIST_ID
func ExtractPlaylistID(url string) (string, error) {
	if !strings.Contains(url, PlaylistURLParam) {
		return "", fmt.Errorf("URL does not contain playlist parameter")
	}

	parts := strings.Split(url, PlaylistURLParam)
	if len(parts) < 2 {
		return "", fmt.Errorf("could not extract playlist ID from URL")
	}

	playlistID := parts[1]

	// Drop any trailing parameters
	if strings.Contains(playlistID, PlaylistParamSeparator) {
		playlistID = strings.Split(playlistID, PlaylistParamSeparator)[0]
	}

	if playlistID == "" {
		return "", fmt.Errorf("empty playlist ID")
	}

	return playlistID, nil
}
