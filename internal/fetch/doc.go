package fetch

// Package fetch is the media fetcher boundary: resolving a URL to metadata,
// predicting the output filename, and performing the transfer itself. The
// default implementation drives yt-dlp via github.com/lrstanley/go-ytdlp,
// with playlist listing through github.com/ytget/ytdlp/v2.
