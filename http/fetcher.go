// Package http provides the HTTP-based implementation of
// moodledown.Fetcher used for file downloads. It does not render pages;
// authentication comes from a cookie jar shared with the browser session.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orenbm/moodledown"
)

// DefaultFetchTimeout bounds a single request when the caller's context
// carries no deadline of its own.
const DefaultFetchTimeout = 2 * time.Minute

// Ensure Fetcher implements moodledown.Fetcher at compile time.
var _ moodledown.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves content over plain HTTP requests. Non-2xx responses
// are returned as responses, not errors, so callers can inspect status and
// body.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	jar       http.CookieJar
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the fallback timeout for requests.
// Defaults to DefaultFetchTimeout if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithCookieJar attaches a cookie jar, typically one populated from the
// browser session's cookies.
func WithCookieJar(jar http.CookieJar) Option {
	return func(f *Fetcher) {
		f.jar = jar
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
		Jar:     f.jar,
	}

	return f
}

// Fetch retrieves the content at url. The returned Response carries the
// final URL after redirects.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*moodledown.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &moodledown.Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
