// Package slog provides logging decorators for the core interfaces.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/orenbm/moodledown"
)

// Ensure LoggingFetcher implements moodledown.Fetcher.
var _ moodledown.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with debug logging.
type LoggingFetcher struct {
	next   moodledown.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next moodledown.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch logs the URL, response size and status, and delegates to the
// wrapped fetcher.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (resp *moodledown.Response, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"url", url,
			"duration", time.Since(begin),
			"err", err,
		}
		if resp != nil {
			attrs = append(attrs, "status", resp.StatusCode, "bytes", len(resp.Body))
		}
		f.logger.Info("fetch", attrs...)
	}(time.Now())
	return f.next.Fetch(ctx, url)
}
