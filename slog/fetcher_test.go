package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/orenbm/moodledown"
	"github.com/orenbm/moodledown/mock"
	moodslog "github.com/orenbm/moodledown/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("logs status bytes and duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) (*moodledown.Response, error) {
				return &moodledown.Response{
					URL:        url,
					StatusCode: http.StatusOK,
					Header:     http.Header{},
					Body:       []byte("file content"),
				}, nil
			},
		}

		fetcher := moodslog.NewLoggingFetcher(inner, logger)
		resp, err := fetcher.Fetch(context.Background(), "https://moodle.test/file.pdf")

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		output := buf.String()
		assert.Contains(t, output, "fetch")
		assert.Contains(t, output, "url=https://moodle.test/file.pdf")
		assert.Contains(t, output, "status=200")
		assert.Contains(t, output, "bytes=12")
		assert.Contains(t, output, "duration=")
	})

	t.Run("logs error on failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) (*moodledown.Response, error) {
				return nil, errors.New("network error")
			},
		}

		fetcher := moodslog.NewLoggingFetcher(inner, logger)
		_, err := fetcher.Fetch(context.Background(), "https://moodle.test/file.pdf")

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "err=\"network error\"")
	})
}

func TestLoggingExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	inner := &mock.Extractor{
		ResourcesFn: func(html, pageURL string, exclude map[string]struct{}) map[string]moodledown.Resource {
			return map[string]moodledown.Resource{
				"https://moodle.test/a.pdf": {URL: "https://moodle.test/a.pdf", Name: "A", Kind: moodledown.KindPDF},
			}
		},
		CoursesFn: func(html, pageURL string) []moodledown.Course {
			return []moodledown.Course{{Name: "Algorithms", URL: "https://moodle.test/course/view.php?id=1"}}
		},
	}

	extractor := moodslog.NewLoggingExtractor(inner, logger)

	resources := extractor.Resources("<html></html>", "https://moodle.test/course/view.php?id=1", map[string]struct{}{"x": {}})
	assert.Len(t, resources, 1)
	assert.Contains(t, buf.String(), "found=1")
	assert.Contains(t, buf.String(), "excluded=1")

	buf.Reset()
	courses := extractor.Courses("<html></html>", "https://moodle.test/my/")
	assert.Len(t, courses, 1)
	assert.Contains(t, buf.String(), "extracted courses")
}
