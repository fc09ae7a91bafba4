package diagnostics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pdf-audio/internal/domain"
	"pdf-audio/internal/gateway"
	"pdf-audio/internal/voices"
)

// DefaultProbeTimeout bounds the backend reachability check.
const DefaultProbeTimeout = 10 * time.Second

// VoiceSource is the backend call used to probe reachability.
type VoiceSource interface {
	FetchVoices(ctx context.Context) ([]domain.VoiceDescriptor, error)
}

// Checker validates backend reachability and required filesystem paths.
type Checker struct {
	source       VoiceSource
	probeTimeout time.Duration
	mkdirAll     func(string, os.FileMode) error
	createTemp   func(string, string) (*os.File, error)
	remove       func(string) error
	now          func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(source VoiceSource) *Checker {
	return &Checker{
		source:       source,
		probeTimeout: DefaultProbeTimeout,
		mkdirAll:     os.MkdirAll,
		createTemp:   os.CreateTemp,
		remove:       os.Remove,
		now:          time.Now,
	}
}

// Run executes all checks concurrently and returns them in a stable order.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	checks := []func(context.Context) domain.DiagnosticItem{
		func(context.Context) domain.DiagnosticItem { return c.checkBaseURL(settings.APIBaseURL) },
		func(ctx context.Context) domain.DiagnosticItem { return c.checkVoices(ctx, settings.TargetLanguage) },
		func(context.Context) domain.DiagnosticItem { return c.checkDownloadDir(settings.DownloadDir) },
	}

	items := make([]domain.DiagnosticItem, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			items[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkBaseURL validates the configured backend origin.
func (c *Checker) checkBaseURL(baseURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "api_base_url",
		Name: "API base URL",
	}

	if err := gateway.ValidateBaseURL(baseURL); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Hint = "Set API_BASE_URL to an absolute http(s) URL or leave it empty for a co-located backend."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	if strings.TrimSpace(baseURL) == "" {
		item.Message = "Backend is co-located with the client."
	} else {
		item.Message = fmt.Sprintf("Using backend at %s", strings.TrimRight(baseURL, "/"))
	}
	return item
}

// checkVoices fetches the catalog and requires at least one voice for the
// target language.
func (c *Checker) checkVoices(ctx context.Context, language string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "backend_voices",
		Name: "Voice catalog",
	}

	if c.source == nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No backend client configured."
		item.Hint = "Fix the API base URL first."
		return item
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	started := c.now()
	catalog, err := c.source.FetchVoices(probeCtx)
	item.Latency = c.now().Sub(started)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Backend unreachable: %v", err)
		item.Hint = "Start the conversion backend and check API_BASE_URL."
		return item
	}

	if strings.TrimSpace(language) == "" {
		language = voices.DefaultLanguage
	}
	filtered := voices.FilterAndLabel(catalog, language)
	if len(filtered) == 0 {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Backend lists %d voices, none for language %q.", len(catalog), language)
		item.Hint = "Check TARGET_LANGUAGE or the voices installed on the backend."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("%d voices available, %d for language %q.", len(catalog), len(filtered), language)
	return item
}

// checkDownloadDir validates download directory existence and write access.
func (c *Checker) checkDownloadDir(downloadDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "download_dir",
		Name: "Download directory",
	}

	if strings.TrimSpace(downloadDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Download directory is empty."
		item.Hint = "Set DOWNLOAD_DIR to a folder where MP3 files can be saved."
		return item
	}

	if err := c.mkdirAll(downloadDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create download directory: %s", downloadDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(downloadDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Download directory is not writable: %s", downloadDir)
		item.Hint = "Choose a writable directory for audio downloads."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", downloadDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	source VoiceSource,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	c := NewChecker(source)
	c.mkdirAll = mkdirAll
	c.createTemp = createTemp
	c.remove = remove
	c.probeTimeout = time.Second
	return c
}
