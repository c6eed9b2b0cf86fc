package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Options is the download configuration a job is pinned to at submission
// time. The engine copies it by value when a job is created, so later
// settings changes never affect an in-flight job.
type Options struct {
	AudioOnly         bool
	AllowPlaylist     bool
	RestrictFilenames bool
	Quality           string // "best", "1080", "720", ...
	VideoExt          string // preferred container, e.g. "mp4"
	AudioExt          string // preferred audio format, e.g. "mp3"
	VideoCodec        string // codec hint matched by regex, e.g. "avc"
	AudioCodec        string // codec hint matched by regex, e.g. "aac"
	RateLimit         string // e.g. "4.2M", empty for unlimited
	CookiesFile       string
	FilenameTemplate  string
	DestinationDir    string // where finished files land
	TempDir           string // where in-progress downloads live
	Timeout           time.Duration // 0 means no timeout
}

// Job carries one URL through expansion, duplicate-checking and fetching.
type Job struct {
	ID                 string
	SourceURL          string
	Options            Options
	State              JobState
	ProgressPercent    float64 // 0-100, monotone while running
	ExpectedOutputPath string  // filled in once known
	Title              string
	LastError          string
	CancelRequested    bool // set at most once, never cleared
	CreatedAt          time.Time
	StartedAt          time.Time
	FinishedAt         time.Time
}

// NewJob creates a job for one item URL with its option snapshot, in the
// given initial state.
func NewJob(sourceURL string, opts Options, state JobState) *Job {
	return &Job{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		Options:   opts,
		State:     state,
		CreatedAt: time.Now(),
	}
}

// DisplayTitle returns the resolved title when known, the output filename
// as a fallback, or the source URL.
func (j *Job) DisplayTitle() string {
	if j.Title != "" && !strings.HasPrefix(j.Title, "http") {
		return j.Title
	}

	if j.ExpectedOutputPath != "" {
		parts := strings.FieldsFunc(j.ExpectedOutputPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			name := parts[len(parts)-1]
			if idx := strings.LastIndex(name, "."); idx > 0 {
				name = name[:idx]
			}
			return name
		}
	}

	return j.SourceURL
}
