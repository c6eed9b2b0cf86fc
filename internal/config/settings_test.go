package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ytget/dlqueue/internal/fetch"
)

func TestDownloadDirectory(t *testing.T) {
	settings := NewSettings()

	// Default value
	dir := settings.GetDownloadDirectory()
	if dir == "" {
		t.Error("Download directory should not be empty")
	}

	// Custom value
	customDir := "/custom/downloads"
	settings.SetDownloadDirectory(customDir)

	retrievedDir := settings.GetDownloadDirectory()
	if retrievedDir != customDir {
		t.Errorf("Expected download directory %s, got %s", customDir, retrievedDir)
	}
}

func TestTempDirectoryFallsBackToDownloadDir(t *testing.T) {
	settings := NewSettings()
	settings.SetDownloadDirectory("/downloads")

	if dir := settings.GetTempDirectory(); dir != "/downloads" {
		t.Errorf("Expected temp directory to fall back to /downloads, got %s", dir)
	}

	settings.SetTempDirectory("/tmp/partial")
	if dir := settings.GetTempDirectory(); dir != "/tmp/partial" {
		t.Errorf("Expected temp directory /tmp/partial, got %s", dir)
	}
}

func TestMaxParallelDownloads(t *testing.T) {
	settings := NewSettings()

	if got := settings.GetMaxParallelDownloads(); got != DefaultMaxParallel {
		t.Errorf("Expected default %d, got %d", DefaultMaxParallel, got)
	}

	settings.SetMaxParallelDownloads(5)
	if got := settings.GetMaxParallelDownloads(); got != 5 {
		t.Errorf("Expected 5, got %d", got)
	}

	settings.SetMaxParallelDownloads(0)
	if got := settings.GetMaxParallelDownloads(); got != 1 {
		t.Errorf("Expected clamp to 1, got %d", got)
	}

	settings.SetMaxParallelDownloads(50)
	if got := settings.GetMaxParallelDownloads(); got != MaxParallelLimit {
		t.Errorf("Expected clamp to %d, got %d", MaxParallelLimit, got)
	}
}

func TestQualityPreset(t *testing.T) {
	settings := NewSettings()

	if got := settings.GetQualityPreset(); got != DefaultQualityPreset {
		t.Errorf("Expected default preset %s, got %s", DefaultQualityPreset, got)
	}

	settings.SetQualityPreset(QualityBest)
	if got := settings.GetQualityPreset(); got != QualityBest {
		t.Errorf("Expected preset %s, got %s", QualityBest, got)
	}

	settings.SetQualityPreset("bogus")
	if got := settings.GetQualityPreset(); got != QualityMedium {
		t.Errorf("Expected unknown preset to fall back to %s, got %s", QualityMedium, got)
	}
}

func TestFilenameTemplate(t *testing.T) {
	settings := NewSettings()

	if got := settings.GetFilenameTemplate(); got != fetch.DefaultFilenameTemplate {
		t.Errorf("Expected default template, got %s", got)
	}

	settings.SetFilenameTemplate("%(id)s.%(ext)s")
	if got := settings.GetFilenameTemplate(); got != "%(id)s.%(ext)s" {
		t.Errorf("Expected custom template, got %s", got)
	}
}

func TestOptionsAssembly(t *testing.T) {
	settings := NewSettings()
	settings.SetDownloadDirectory("/downloads")
	settings.SetTempDirectory("/tmp/partial")
	settings.SetQualityPreset(QualityHigh)
	settings.SetRateLimit("4M")
	settings.SetRestrictFilenames(true)
	settings.SetDownloadTimeout(30 * time.Minute)

	opts := settings.Options()
	if opts.DestinationDir != "/downloads" {
		t.Errorf("Expected destination /downloads, got %s", opts.DestinationDir)
	}
	if opts.TempDir != "/tmp/partial" {
		t.Errorf("Expected temp dir /tmp/partial, got %s", opts.TempDir)
	}
	if opts.Quality != string(QualityHigh) {
		t.Errorf("Expected quality %s, got %s", QualityHigh, opts.Quality)
	}
	if opts.RateLimit != "4M" {
		t.Errorf("Expected rate limit 4M, got %s", opts.RateLimit)
	}
	if !opts.RestrictFilenames {
		t.Error("Expected restricted filenames")
	}
	if opts.AudioOnly {
		t.Error("Expected video download for a video preset")
	}
	if opts.Timeout != 30*time.Minute {
		t.Errorf("Expected timeout 30m, got %s", opts.Timeout)
	}
}

func TestOptionsAudioPreset(t *testing.T) {
	settings := NewSettings()
	settings.SetQualityPreset(QualityAudio)

	opts := settings.Options()
	if !opts.AudioOnly {
		t.Error("Expected audio-only options for the audio preset")
	}
	if opts.Quality != string(QualityBest) {
		t.Errorf("Expected quality best for audio, got %s", opts.Quality)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("max_parallel_downloads: 4\nquality_preset: best\n")
	if err := os.WriteFile(filepath.Join(dir, "dlqueue.yaml"), content, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	settings := NewSettings()
	if err := settings.Load(dir); err != nil {
		t.Fatalf("Expected no error loading config, got %v", err)
	}
	if got := settings.GetMaxParallelDownloads(); got != 4 {
		t.Errorf("Expected 4 from config file, got %d", got)
	}
	if got := settings.GetQualityPreset(); got != QualityBest {
		t.Errorf("Expected preset best from config file, got %s", got)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	settings := NewSettings()
	if err := settings.Load(t.TempDir()); err != nil {
		t.Errorf("Expected missing config file to be tolerated, got %v", err)
	}
	if got := settings.GetMaxParallelDownloads(); got != DefaultMaxParallel {
		t.Errorf("Expected defaults, got %d", got)
	}
}
