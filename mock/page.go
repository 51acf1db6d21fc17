package mock

import "github.com/orenbm/moodledown"

var _ moodledown.PageResolver = (*PageResolver)(nil)

// PageResolver is a mock implementation of moodledown.PageResolver.
type PageResolver struct {
	EmbeddedResourceFn      func(html, baseURL string) (string, bool)
	AssignmentAttachmentsFn func(html, baseURL string) []moodledown.Attachment
}

func (r *PageResolver) EmbeddedResource(html, baseURL string) (string, bool) {
	return r.EmbeddedResourceFn(html, baseURL)
}

func (r *PageResolver) AssignmentAttachments(html, baseURL string) []moodledown.Attachment {
	return r.AssignmentAttachmentsFn(html, baseURL)
}

var _ moodledown.PageSource = (*PageSource)(nil)

// PageSource is a mock implementation of moodledown.PageSource.
type PageSource struct {
	HTMLFn func() (string, string, error)
}

func (p *PageSource) HTML() (string, string, error) {
	return p.HTMLFn()
}
