// Package download turns classified course resources into files on disk.
// It resolves the true binary endpoint behind each resource (viewer pages,
// folder archives, assignment attachments), fetches content over the
// authenticated session, derives filenames, and records every success in
// the shared history ledger.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/orenbm/moodledown"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

// Patterns isolates the deployment-specific URL literals the engine matches
// against. They are the most likely point of breakage against a different
// Moodle theme or version, so they are configuration rather than inline
// constants.
type Patterns struct {
	// ViewerPages marks URLs whose HTML responses wrap the real content.
	ViewerPages []string

	// FolderViewMarker and FolderArchiveEndpoint drive the folder "view"
	// to "download as archive" URL rewrite.
	FolderViewMarker      string
	FolderArchiveEndpoint string
}

// DefaultPatterns returns the patterns for a stock Moodle deployment.
func DefaultPatterns() Patterns {
	return Patterns{
		ViewerPages:           []string{"mod/resource/view.php", "mod/page/view.php"},
		FolderViewMarker:      "view.php",
		FolderArchiveEndpoint: "download_folder.php",
	}
}

// isViewerPage reports whether url serves a wrapper page instead of a file.
func (p Patterns) isViewerPage(url string) bool {
	for _, marker := range p.ViewerPages {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}

// folderArchiveURL rewrites a folder "view" URL to its archive-download
// endpoint. URLs without an id parameter are returned unchanged.
func (p Patterns) folderArchiveURL(url string) string {
	if strings.Contains(url, p.FolderViewMarker) && strings.Contains(url, "?id=") {
		return strings.Replace(url, p.FolderViewMarker, p.FolderArchiveEndpoint, 1)
	}
	return url
}

// Config holds the engine options.
type Config struct {
	// OrganizeBySections creates one subdirectory per course section.
	OrganizeBySections bool

	// FetchTimeout bounds each file fetch. Folder archives are generated
	// server-side on demand, so this must be generous.
	FetchTimeout time.Duration

	// PageTimeout bounds assignment-page fetches, which are plain HTML.
	PageTimeout time.Duration

	// Pause is the politeness delay between batch items.
	Pause time.Duration

	Patterns Patterns
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		OrganizeBySections: true,
		FetchTimeout:       2 * time.Minute,
		PageTimeout:        30 * time.Second,
		Pause:              800 * time.Millisecond,
		Patterns:           DefaultPatterns(),
	}
}

// Engine downloads resources one at a time. It is single-threaded by
// design: the batch loop processes each item fully before the next, with a
// fixed pause in between to avoid hammering the Moodle server.
type Engine struct {
	fetcher  moodledown.Fetcher
	resolver moodledown.PageResolver
	ledger   moodledown.Ledger
	fs       afero.Fs
	logger   *slog.Logger
	cfg      Config
	limiter  *rate.Limiter
}

// NewEngine creates an Engine. A nil logger disables logging; zero Config
// durations fall back to the defaults.
func NewEngine(fetcher moodledown.Fetcher, resolver moodledown.PageResolver, ledger moodledown.Ledger, fsys afero.Fs, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	def := DefaultConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = def.PageTimeout
	}
	if cfg.Pause <= 0 {
		cfg.Pause = def.Pause
	}
	if len(cfg.Patterns.ViewerPages) == 0 {
		cfg.Patterns = def.Patterns
	}
	return &Engine{
		fetcher:  fetcher,
		resolver: resolver,
		ledger:   ledger,
		fs:       fsys,
		logger:   logger,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.Pause), 1),
	}
}

// Result aggregates one batch.
type Result struct {
	Successful []string
	Skipped    []string
	Failed     []string
}

// OK reports overall success: zero failed items. An empty batch counts as
// success.
func (r Result) OK() bool {
	return len(r.Failed) == 0
}

// DownloadAll downloads every resource in items under baseDir, organizing
// by section when configured. Items are processed in deterministic
// (section, name) order. Individual failures are collected, never
// propagated; the only way to stop a batch early is canceling ctx, which
// marks the remaining items failed.
func (e *Engine) DownloadAll(ctx context.Context, items map[string]moodledown.Resource, baseDir string, progress moodledown.ProgressFunc) Result {
	var result Result
	if len(items) == 0 {
		e.logger.Info("no new items to download")
		return result
	}
	if progress == nil {
		progress = func(string, float64) {}
	}

	sectionDirs := e.prepareDirs(items, baseDir)

	sorted := make([]moodledown.Resource, 0, len(items))
	for _, res := range items {
		sorted = append(sorted, res)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Section != sorted[j].Section {
			return sorted[i].Section < sorted[j].Section
		}
		return sorted[i].Name < sorted[j].Name
	})

	total := float64(len(sorted))
	e.logger.Info("starting download batch", "items", len(sorted), "dir", baseDir)

	for i, res := range sorted {
		// Cancellation is honored between items only; an in-flight fetch
		// runs to its own timeout.
		if err := e.limiter.Wait(ctx); err != nil {
			for _, rest := range sorted[i:] {
				result.Failed = append(result.Failed, failureLine(rest, "canceled"))
			}
			progress("Canceled", 100)
			return result
		}

		done := float64(i) / total * 100
		progress(fmt.Sprintf("Processing: %s", res.Name), done)

		section := res.Section
		if section == "" {
			section = moodledown.DefaultSection
		}
		dir := baseDir
		if e.cfg.OrganizeBySections {
			if d, ok := sectionDirs[section]; ok {
				dir = d
			}
		}

		progress(fmt.Sprintf("Downloading: %s", res.Name), done+20/total)
		outcome := e.DownloadOne(ctx, res, dir)
		done = float64(i+1) / total * 100

		switch outcome.Status {
		case moodledown.StatusFailed:
			e.logger.Error("download failed", "name", res.Name, "url", res.URL, "reason", outcome.Message)
			result.Failed = append(result.Failed, failureLine(res, outcome.Message))
			progress(fmt.Sprintf("Failed: %s - %s", res.Name, outcome.Message), done)
		case moodledown.StatusSkipped:
			e.logger.Info("download skipped", "name", res.Name, "reason", outcome.Message)
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s (%s)", res.Name, outcome.Message))
			progress(fmt.Sprintf("Skipped: %s", res.Name), done)
		default:
			name := res.Name
			if outcome.Filepath != "" {
				name = filepath.Base(outcome.Filepath)
			}
			e.logger.Info("download succeeded", "name", name, "size", outcome.Size)
			result.Successful = append(result.Successful, name)
			progress(fmt.Sprintf("Downloaded: %s", name), done)
		}
	}

	e.logger.Info("download batch finished",
		"successful", len(result.Successful),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)
	return result
}

// prepareDirs creates the per-section subdirectories up front. A section
// whose directory cannot be created degrades to the base folder.
func (e *Engine) prepareDirs(items map[string]moodledown.Resource, baseDir string) map[string]string {
	dirs := make(map[string]string)
	if !e.cfg.OrganizeBySections {
		if err := e.fs.MkdirAll(baseDir, 0o755); err != nil {
			e.logger.Error("failed to create download folder", "dir", baseDir, "error", err)
		}
		return dirs
	}

	for _, res := range items {
		section := res.Section
		if section == "" {
			section = moodledown.DefaultSection
		}
		if _, ok := dirs[section]; ok {
			continue
		}
		dir := filepath.Join(baseDir, moodledown.SanitizeName(section, "Section"))
		if err := e.fs.MkdirAll(dir, 0o755); err != nil {
			e.logger.Error("failed to create section folder, using base folder", "dir", dir, "error", err)
			dir = baseDir
		}
		dirs[section] = dir
	}
	return dirs
}

// DownloadOne downloads a single resource into dir and records success in
// the ledger. It never panics and never returns an error; every failure
// mode becomes a failed Outcome.
func (e *Engine) DownloadOne(ctx context.Context, res moodledown.Resource, dir string) moodledown.Outcome {
	return e.downloadOne(ctx, res, dir, 0)
}

func (e *Engine) downloadOne(ctx context.Context, res moodledown.Resource, dir string, depth int) moodledown.Outcome {
	if err := res.Validate(); err != nil {
		return failure(moodledown.ErrorMessage(err))
	}

	fetchURL := res.URL

	switch res.Kind {
	case moodledown.KindAssignment:
		// Expansion is bounded to one level: attachments are documents and
		// an assignment can never attach another assignment.
		if depth > 0 {
			return failure("nested assignment expansion rejected")
		}
		return e.downloadAssignment(ctx, res, dir)
	case moodledown.KindFolder:
		if rewritten := e.cfg.Patterns.folderArchiveURL(fetchURL); rewritten != fetchURL {
			e.logger.Info("adjusted folder URL for archive download", "url", rewritten)
			fetchURL = rewritten
		}
	}

	resp, outcome := e.fetch(ctx, fetchURL, e.cfg.FetchTimeout)
	if resp == nil {
		return outcome
	}

	// A successful HTML response from a viewer page is a wrapper, not the
	// file; chase the embedded resource once.
	if resp.OK() && strings.Contains(resp.ContentType(), "text/html") && e.cfg.Patterns.isViewerPage(resp.URL) {
		embedded, ok := e.resolver.EmbeddedResource(resp.Text(), resp.URL)
		if !ok {
			return failure("could not find embedded resource in viewer page")
		}
		resp, outcome = e.fetch(ctx, embedded, e.cfg.FetchTimeout)
		if resp == nil {
			return outcome
		}
	}

	if !resp.OK() {
		return failure(httpFailureMessage(resp))
	}

	base, ext := e.resolveFilename(res, resp, fetchURL)
	target := filepath.Join(dir, base+"."+ext)

	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return failure(fmt.Sprintf("file system error: %v", err))
	}
	if err := afero.WriteFile(e.fs, target, resp.Body, 0o644); err != nil {
		return failure(fmt.Sprintf("file system error: %v", err))
	}

	size := int64(len(resp.Body))
	if size == 0 && resp.Header.Get("Content-Length") != "0" {
		// Zero bytes the server never declared usually means a truncated
		// or erroneous transfer.
		e.logger.Warn("downloaded file is empty without a zero-length declaration", "file", target)
		return moodledown.Outcome{Status: moodledown.StatusFailed, Message: "empty file downloaded", Filepath: target}
	}

	if err := e.ledger.Record(res.URL, target); err != nil {
		e.logger.Error("failed to record download in history", "url", res.URL, "error", err)
	}

	e.logger.Info("saved file", "path", target, "bytes", size)
	return moodledown.Outcome{Status: moodledown.StatusSuccess, Message: "download successful", Filepath: target, Size: size}
}

// downloadAssignment expands an assignment into its intro attachments and
// downloads each as a document. An assignment without attachments is a
// legitimate no-op, not an error.
func (e *Engine) downloadAssignment(ctx context.Context, res moodledown.Resource, dir string) moodledown.Outcome {
	resp, outcome := e.fetch(ctx, res.URL, e.cfg.PageTimeout)
	if resp == nil {
		e.logger.Warn("assignment page fetch failed", "url", res.URL, "reason", outcome.Message)
		return skipped("no intro attachments in assignment")
	}
	if !resp.OK() {
		e.logger.Warn("assignment page fetch failed", "url", res.URL, "status", resp.StatusCode)
		return skipped("no intro attachments in assignment")
	}

	attachments := e.resolver.AssignmentAttachments(resp.Text(), resp.URL)
	if len(attachments) == 0 {
		return skipped("no intro attachments in assignment")
	}

	successes, failures := 0, 0
	var failureMessages []string
	for i, att := range attachments {
		name := att.Name
		if len(attachments) > 1 {
			name = fmt.Sprintf("%s_%02d_%s", res.Name, i+1, att.Name)
		}
		item := moodledown.Resource{
			URL:     att.URL,
			Name:    moodledown.SanitizeName(moodledown.StripLabelPrefix(name), "assignment_file"),
			Section: res.Section,
			Kind:    moodledown.KindDocument,
		}
		out := e.downloadOne(ctx, item, dir, 1)
		if out.OK() {
			successes++
		} else {
			failures++
			failureMessages = append(failureMessages, fmt.Sprintf("%s: %s", item.Name, out.Message))
		}
	}

	switch {
	case successes > 0 && failures == 0:
		return skipped(fmt.Sprintf("downloaded %d assignment attachment(s)", successes))
	case successes > 0:
		return skipped(fmt.Sprintf("downloaded %d assignment attachment(s), %d failed (%s)",
			successes, failures, strings.Join(failureMessages, "; ")))
	default:
		return failure("failed to download assignment attachments: " + strings.Join(failureMessages, "; "))
	}
}

// fetch performs one authenticated GET with a timeout. On transport errors
// it returns a nil response plus the failure outcome to report.
func (e *Engine) fetch(ctx context.Context, url string, timeout time.Duration) (*moodledown.Response, moodledown.Outcome) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.fetcher.Fetch(fetchCtx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, failure(fmt.Sprintf("timeout fetching %s", url))
		}
		return nil, failure(fmt.Sprintf("network error fetching %s: %v", url, err))
	}
	return resp, moodledown.Outcome{}
}

// httpFailureMessage formats a non-2xx response, including a short body
// snippet for small text or JSON error bodies.
func httpFailureMessage(resp *moodledown.Response) string {
	reason := http.StatusText(resp.StatusCode)
	if reason == "" {
		reason = "Unknown Status"
	}
	msg := fmt.Sprintf("HTTP error %d %s", resp.StatusCode, reason)

	ct := resp.ContentType()
	if !strings.Contains(ct, "text") && !strings.Contains(ct, "json") {
		return msg
	}
	length, err := strconv.Atoi(resp.Header.Get("Content-Length"))
	if err != nil || length >= 5000 {
		return msg
	}
	body := resp.Text()
	if len(body) > 500 {
		body = body[:500]
	}
	if body != "" {
		msg += ": " + body
	}
	return msg
}

func failure(msg string) moodledown.Outcome {
	return moodledown.Outcome{Status: moodledown.StatusFailed, Message: msg}
}

func skipped(msg string) moodledown.Outcome {
	return moodledown.Outcome{Status: moodledown.StatusSkipped, Message: msg}
}

// failureLine formats one failed item for the batch report.
func failureLine(res moodledown.Resource, reason string) string {
	return fmt.Sprintf("%q (Section: %s, URL: %s) - %s", res.Name, res.Section, res.URL, reason)
}
