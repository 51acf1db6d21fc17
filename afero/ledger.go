// Package afero provides filesystem-backed storage for moodledown, built on
// the afero filesystem abstraction so tests can run against an in-memory
// filesystem.
package afero

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/orenbm/moodledown"
	"github.com/spf13/afero"
)

// separator divides the two fields of a ledger line.
const separator = "\t"

// Ensure Ledger implements moodledown.Ledger at compile time.
var _ moodledown.Ledger = (*Ledger)(nil)

// Ledger is the download-history log: one tab-separated line per downloaded
// URL, mapping it to the local file it produced. The backing file is shared
// across runs and courses; each engine instance opens its own Ledger.
//
// Ledger is safe for concurrent use; parallel course downloads share one
// instance.
type Ledger struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	urls map[string]struct{}
}

// entry is one surviving ledger line, kept verbatim for rewriting.
type entry struct {
	url  string
	line string
}

// Open loads the ledger at path, verifying that every referenced file still
// exists and pruning entries whose files are gone. When anything was pruned
// (missing file, or an earlier line superseded by a later one for the same
// URL) the backing file is rewritten with only the survivors.
//
// Open never fails: an unreadable backing file degrades to an empty
// exclusion set, trading redundant downloads for forward progress.
func Open(fsys afero.Fs, path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Ledger{
		fs:     fsys,
		path:   path,
		urls:   make(map[string]struct{}),
		logger: logger,
	}
	l.loadAndVerify()
	return l
}

func (l *Ledger) loadAndVerify() {
	exists, err := afero.Exists(l.fs, l.path)
	if err == nil && !exists {
		l.logger.Info("download history not found, starting fresh", "path", l.path)
		return
	}

	f, err := l.fs.Open(l.path)
	if err != nil {
		l.logger.Error("cannot read download history, proceeding without exclusions", "path", l.path, "error", err)
		return
	}
	defer f.Close()

	var (
		survivors []entry
		index     = make(map[string]int) // url -> position in survivors
		pruned    int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		url, filepath, ok := parseLine(line)
		if !ok {
			l.logger.Warn("skipping malformed history entry", "line", line)
			continue
		}

		fileExists, _ := afero.Exists(l.fs, filepath)
		if !fileExists {
			l.logger.Info("logged file missing, removing entry", "url", url, "path", filepath)
			pruned++
			continue
		}

		// Last line for a URL wins; the superseded line counts as pruned
		// so the cleanup rewrite collapses duplicates.
		if i, dup := index[url]; dup {
			survivors[i].line = ""
			pruned++
		}
		index[url] = len(survivors)
		survivors = append(survivors, entry{url: url, line: line})
	}
	if err := scanner.Err(); err != nil {
		l.logger.Error("error reading download history, proceeding without exclusions", "path", l.path, "error", err)
		l.urls = make(map[string]struct{})
		return
	}

	for _, e := range survivors {
		if e.line != "" {
			l.urls[e.url] = struct{}{}
		}
	}
	l.logger.Info("loaded download history", "path", l.path, "urls", len(l.urls), "pruned", pruned)

	if pruned > 0 {
		l.rewrite(survivors)
	}
}

// rewrite replaces the backing file with only the surviving lines.
func (l *Ledger) rewrite(survivors []entry) {
	var b strings.Builder
	for _, e := range survivors {
		if e.line == "" {
			continue
		}
		b.WriteString(e.line)
		b.WriteString("\n")
	}
	if err := afero.WriteFile(l.fs, l.path, []byte(b.String()), 0o644); err != nil {
		l.logger.Error("failed to rewrite cleaned download history", "path", l.path, "error", err)
		return
	}
	l.logger.Info("download history cleaned", "path", l.path)
}

// parseLine splits a ledger line into its two non-empty fields.
func parseLine(line string) (url, filepath string, ok bool) {
	parts := strings.SplitN(line, separator, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	url, filepath = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if url == "" || filepath == "" {
		return "", "", false
	}
	return url, filepath, true
}

// Contains reports whether url was already downloaded.
func (l *Ledger) Contains(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.urls[url]
	return ok
}

// URLs returns a copy of the exclusion set.
func (l *Ledger) URLs() map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	urls := make(map[string]struct{}, len(l.urls))
	for u := range l.urls {
		urls[u] = struct{}{}
	}
	return urls
}

// Record appends url -> path to the backing file and adds the URL to the
// in-memory set. The in-memory set is updated even when the append fails:
// the file is already on disk, only the cross-run memory of it is at risk.
func (l *Ledger) Record(url, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls[url] = struct{}{}

	f, err := l.fs.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening download history for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s%s%s\n", url, separator, path); err != nil {
		return fmt.Errorf("appending to download history: %w", err)
	}
	return nil
}
