package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/ytget/dlqueue/internal/config"
	"github.com/ytget/dlqueue/internal/engine"
	"github.com/ytget/dlqueue/internal/fetch"
	"github.com/ytget/dlqueue/internal/model"
)

// promptKind distinguishes the two interactive questions.
type promptKind int

const (
	promptOverwrite promptKind = iota
	promptSessionDuplicate
)

type promptRequest struct {
	kind  promptKind
	key   string // job ID for overwrite, URL for session duplicate
	label string
}

// consoleSink renders engine events on stdout. Progress lines are
// throttled so a fast download does not flood the terminal.
type consoleSink struct {
	mu      sync.Mutex
	titles  map[string]string
	limiter ratelimit.Limiter
	prompts chan promptRequest
}

func newConsoleSink() *consoleSink {
	return &consoleSink{
		titles:  make(map[string]string),
		limiter: ratelimit.New(5),
		prompts: make(chan promptRequest, 16),
	}
}

func (c *consoleSink) label(jobID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if title, ok := c.titles[jobID]; ok && title != "" {
		return title
	}
	return jobID
}

func (c *consoleSink) OnJobTitle(jobID, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles[jobID] = title
}

func (c *consoleSink) OnJobProgress(jobID string, percent float64) {
	c.limiter.Take()
	fmt.Printf("[%5.1f%%] %s\n", percent, c.label(jobID))
}

func (c *consoleSink) OnJobStatus(jobID, text string) {
	fmt.Printf("%s: %s\n", c.label(jobID), text)
}

func (c *consoleSink) OnJobError(jobID, message string) {
	fmt.Fprintf(os.Stderr, "%s: error: %s\n", c.label(jobID), message)
}

func (c *consoleSink) OnJobFinished(jobID string, success bool) {
	if !success {
		fmt.Printf("%s: not downloaded\n", c.label(jobID))
	}
}

func (c *consoleSink) OnOverwritePrompt(jobID, path string) {
	c.prompts <- promptRequest{
		kind:  promptOverwrite,
		key:   jobID,
		label: fmt.Sprintf("File already exists: %s. Overwrite? [y/N] ", path),
	}
}

func (c *consoleSink) OnSessionDuplicatePrompt(url string) {
	c.prompts <- promptRequest{
		kind:  promptSessionDuplicate,
		key:   url,
		label: fmt.Sprintf("Already downloaded this session: %s. Download again? [y/N] ", url),
	}
}

func main() {
	var (
		downloadDir = flag.String("dir", "", "download directory (default: ~/Downloads)")
		tempDir     = flag.String("temp", "", "directory for in-progress files (default: download directory)")
		quality     = flag.String("quality", "", "quality preset: best, 1080p, 720p, audio")
		parallel    = flag.Int("parallel", 0, "maximum simultaneous downloads (1-10)")
		noPlaylist  = flag.Bool("no-playlist", false, "download only the video for playlist URLs")
		rateLimit   = flag.String("rate", "", "per-download rate limit, e.g. 4M")
		cookies     = flag.String("cookies", "", "path to a Netscape cookies file")
		template    = flag.String("template", "", "output filename template")
		restrict    = flag.Bool("restrict", false, "restrict output filenames to ASCII")
		timeout     = flag.Duration("timeout", 0, "per-download timeout, e.g. 30m")
		configDir   = flag.String("config", ".", "directory containing dlqueue.yaml")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: dlqueue [flags] URL [URL ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	settings := config.NewSettings()
	if err := settings.Load(*configDir); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}
	if *downloadDir != "" {
		settings.SetDownloadDirectory(*downloadDir)
	}
	if *tempDir != "" {
		settings.SetTempDirectory(*tempDir)
	}
	if *quality != "" {
		settings.SetQualityPreset(config.QualityPreset(*quality))
	}
	if *parallel != 0 {
		settings.SetMaxParallelDownloads(*parallel)
	}
	if *rateLimit != "" {
		settings.SetRateLimit(*rateLimit)
	}
	if *cookies != "" {
		settings.SetCookiesFile(*cookies)
	}
	if *template != "" {
		settings.SetFilenameTemplate(*template)
	}
	if *restrict {
		settings.SetRestrictFilenames(true)
	}
	if *noPlaylist {
		settings.SetAllowPlaylists(false)
	}
	if *timeout != 0 {
		settings.SetDownloadTimeout(*timeout)
	}

	opts := settings.Options()
	sink := newConsoleSink()
	var svc engine.Engine = engine.NewService(fetch.NewYTDLPFetcher(), sink, settings.GetMaxParallelDownloads())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	svc.SubmitURLs(urls, opts)

	stdin := bufio.NewReader(os.Stdin)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	exitCode := 0
loop:
	for {
		select {
		case req := <-sink.prompts:
			fmt.Print(req.label)
			answer := readYesNo(stdin)
			switch req.kind {
			case promptOverwrite:
				svc.ResolveOverwrite(req.key, answer)
			case promptSessionDuplicate:
				svc.ResolveSessionDuplicate(req.key, answer)
			}
		case <-ticker.C:
			if svc.Idle() {
				break loop
			}
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "interrupted, cancelling downloads")
			exitCode = 1
			break loop
		}
	}

	done := make(chan struct{})
	go func() {
		svc.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		fmt.Fprintln(os.Stderr, "shutdown timed out")
		exitCode = 1
	}

	for _, job := range svc.Jobs() {
		if job.State != model.StateCompleted && job.State != model.StateCancelled {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

// readYesNo reads one answer line; anything but y/yes counts as no.
func readYesNo(r *bufio.Reader) bool {
	line, err := r.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
