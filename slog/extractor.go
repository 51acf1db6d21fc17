package slog

import (
	"log/slog"
	"time"

	"github.com/orenbm/moodledown"
)

// Ensure LoggingExtractor implements moodledown.Extractor.
var _ moodledown.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor with debug logging.
type LoggingExtractor struct {
	next   moodledown.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next moodledown.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Resources logs how many resources were found and how many were excluded
// as already downloaded, and delegates to the wrapped extractor.
func (e *LoggingExtractor) Resources(html, pageURL string, exclude map[string]struct{}) map[string]moodledown.Resource {
	begin := time.Now()
	resources := e.next.Resources(html, pageURL, exclude)
	e.logger.Info("extracted resources",
		"page", pageURL,
		"found", len(resources),
		"excluded", len(exclude),
		"duration", time.Since(begin),
	)
	return resources
}

// Courses logs how many courses were found and delegates to the wrapped
// extractor.
func (e *LoggingExtractor) Courses(html, pageURL string) []moodledown.Course {
	begin := time.Now()
	courses := e.next.Courses(html, pageURL)
	e.logger.Info("extracted courses",
		"page", pageURL,
		"found", len(courses),
		"duration", time.Since(begin),
	)
	return courses
}
