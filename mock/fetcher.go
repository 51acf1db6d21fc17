package mock

import (
	"context"

	"github.com/orenbm/moodledown"
)

var _ moodledown.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of moodledown.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (*moodledown.Response, error)
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*moodledown.Response, error) {
	return f.FetchFn(ctx, url)
}
