package moodledown

import (
	"context"
	"net/http"
	"strings"
)

// Response is the result of one authenticated GET. The body is fully read
// before the response is returned; course files are fetched whole, not
// streamed.
type Response struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the media type of the response without parameters,
// lowercased, or "" when the header is absent.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Text returns the body decoded as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Fetcher performs authenticated HTTP GETs using the same session state as
// the browser that rendered the course page. The core performs no
// authentication itself.
//
// Implementations must follow redirects, send a realistic browser User-Agent,
// and honor context cancellation and deadlines.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// PageSource provides the rendered HTML of the current course page and the
// page's absolute URL. Any client-side dynamic content must already have
// settled by the time HTML is called.
type PageSource interface {
	HTML() (html string, pageURL string, err error)
}
