package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/ytget/dlqueue/internal/fetch"
	"github.com/ytget/dlqueue/internal/model"
	"github.com/ytget/dlqueue/internal/platform"
)

// Quality presets for downloads
type QualityPreset string

const (
	QualityBest   QualityPreset = "best"
	QualityHigh   QualityPreset = "1080p"
	QualityMedium QualityPreset = "720p"
	QualityAudio  QualityPreset = "audio"
)

// Settings keys
const (
	KeyDownloadDir       = "download_directory"
	KeyTempDir           = "temp_directory"
	KeyMaxParallel       = "max_parallel_downloads"
	KeyQualityPreset     = "quality_preset"
	KeyFilenameTemplate  = "filename_template"
	KeyRateLimit         = "rate_limit"
	KeyCookiesFile       = "cookies_file"
	KeyRestrictFilenames = "restrict_filenames"
	KeyAllowPlaylists    = "allow_playlists"
	KeyDownloadTimeout   = "download_timeout"
)

// Default values
const (
	DefaultMaxParallel   = 2
	MaxParallelLimit     = 10
	DefaultQualityPreset = QualityMedium
)

// Settings manages application configuration backed by a viper store. An
// optional config file named dlqueue.yaml is merged over the defaults.
type Settings struct {
	v *viper.Viper
}

// NewSettings creates a settings store with defaults applied.
func NewSettings() *Settings {
	v := viper.New()
	v.SetDefault(KeyMaxParallel, DefaultMaxParallel)
	v.SetDefault(KeyQualityPreset, string(DefaultQualityPreset))
	v.SetDefault(KeyFilenameTemplate, fetch.DefaultFilenameTemplate)
	v.SetDefault(KeyRestrictFilenames, false)
	v.SetDefault(KeyAllowPlaylists, true)
	v.SetDefault(KeyDownloadTimeout, time.Duration(0))
	return &Settings{v: v}
}

// Load reads the config file from dir. A missing file is not an error;
// the defaults stand.
func (s *Settings) Load(dir string) error {
	s.v.SetConfigName("dlqueue")
	s.v.SetConfigType("yaml")
	s.v.AddConfigPath(dir)
	if err := s.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			return nil
		}
		return err
	}
	return nil
}

// GetDownloadDirectory returns the configured download directory
func (s *Settings) GetDownloadDirectory() string {
	dir := s.v.GetString(KeyDownloadDir)
	if dir == "" {
		defaultDir, err := platform.GetHomeDownloadsDir()
		if err != nil {
			defaultDir = "/tmp/downloads"
		}
		s.SetDownloadDirectory(defaultDir)
		return defaultDir
	}
	return dir
}

// SetDownloadDirectory sets the download directory
func (s *Settings) SetDownloadDirectory(dir string) {
	s.v.Set(KeyDownloadDir, dir)
}

// GetTempDirectory returns the directory for in-progress downloads. It
// defaults to the download directory itself.
func (s *Settings) GetTempDirectory() string {
	dir := s.v.GetString(KeyTempDir)
	if dir == "" {
		return s.GetDownloadDirectory()
	}
	return dir
}

// SetTempDirectory sets the directory for in-progress downloads
func (s *Settings) SetTempDirectory(dir string) {
	s.v.Set(KeyTempDir, dir)
}

// GetMaxParallelDownloads returns the maximum number of parallel downloads
func (s *Settings) GetMaxParallelDownloads() int {
	value := s.v.GetInt(KeyMaxParallel)
	if value <= 0 {
		return DefaultMaxParallel
	}
	if value > MaxParallelLimit {
		return MaxParallelLimit
	}
	return value
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads
func (s *Settings) SetMaxParallelDownloads(count int) {
	if count < 1 {
		count = 1
	}
	if count > MaxParallelLimit {
		count = MaxParallelLimit
	}
	s.v.Set(KeyMaxParallel, count)
}

// GetQualityPreset returns the configured quality preset
func (s *Settings) GetQualityPreset() QualityPreset {
	switch QualityPreset(s.v.GetString(KeyQualityPreset)) {
	case QualityBest:
		return QualityBest
	case QualityHigh:
		return QualityHigh
	case QualityAudio:
		return QualityAudio
	default:
		return QualityMedium
	}
}

// SetQualityPreset sets the quality preset
func (s *Settings) SetQualityPreset(preset QualityPreset) {
	s.v.Set(KeyQualityPreset, string(preset))
}

// GetFilenameTemplate returns the output filename template
func (s *Settings) GetFilenameTemplate() string {
	tmpl := s.v.GetString(KeyFilenameTemplate)
	if tmpl == "" {
		return fetch.DefaultFilenameTemplate
	}
	return tmpl
}

// SetFilenameTemplate sets the output filename template
func (s *Settings) SetFilenameTemplate(tmpl string) {
	s.v.Set(KeyFilenameTemplate, tmpl)
}

// GetRateLimit returns the per-download rate limit ("4M", "500K"), empty
// for unlimited.
func (s *Settings) GetRateLimit() string {
	return s.v.GetString(KeyRateLimit)
}

// SetRateLimit sets the per-download rate limit
func (s *Settings) SetRateLimit(limit string) {
	s.v.Set(KeyRateLimit, limit)
}

// GetCookiesFile returns the path to a Netscape cookies file, empty when
// unset.
func (s *Settings) GetCookiesFile() string {
	return s.v.GetString(KeyCookiesFile)
}

// SetCookiesFile sets the cookies file path
func (s *Settings) SetCookiesFile(path string) {
	s.v.Set(KeyCookiesFile, path)
}

// GetRestrictFilenames reports whether output names are restricted to
// ASCII.
func (s *Settings) GetRestrictFilenames() bool {
	return s.v.GetBool(KeyRestrictFilenames)
}

// SetRestrictFilenames sets ASCII-only output naming
func (s *Settings) SetRestrictFilenames(restrict bool) {
	s.v.Set(KeyRestrictFilenames, restrict)
}

// GetAllowPlaylists reports whether playlist URLs fan out into their
// entries.
func (s *Settings) GetAllowPlaylists() bool {
	return s.v.GetBool(KeyAllowPlaylists)
}

// SetAllowPlaylists sets playlist fan-out behavior
func (s *Settings) SetAllowPlaylists(allow bool) {
	s.v.Set(KeyAllowPlaylists, allow)
}

// GetDownloadTimeout returns the per-download timeout, zero for none.
func (s *Settings) GetDownloadTimeout() time.Duration {
	return s.v.GetDuration(KeyDownloadTimeout)
}

// SetDownloadTimeout sets the per-download timeout
func (s *Settings) SetDownloadTimeout(d time.Duration) {
	s.v.Set(KeyDownloadTimeout, d)
}

// Options assembles the download options for new submissions from the
// current settings.
func (s *Settings) Options() model.Options {
	preset := s.GetQualityPreset()
	opts := model.Options{
		AllowPlaylist:     s.GetAllowPlaylists(),
		RestrictFilenames: s.GetRestrictFilenames(),
		Quality:           string(preset),
		RateLimit:         s.GetRateLimit(),
		CookiesFile:       s.GetCookiesFile(),
		FilenameTemplate:  s.GetFilenameTemplate(),
		DestinationDir:    s.GetDownloadDirectory(),
		TempDir:           s.GetTempDirectory(),
		Timeout:           s.GetDownloadTimeout(),
	}
	if preset == QualityAudio {
		opts.AudioOnly = true
		opts.Quality = string(QualityBest)
	}
	return opts
}
