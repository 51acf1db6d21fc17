package moodledown

// Attachment is one intro-attachment link found on an assignment page.
type Attachment struct {
	URL  string
	Name string
}

// PageResolver inspects fetched HTML pages the download engine cannot treat
// as files: viewer wrapper pages that embed the real content, and assignment
// pages whose intro attachments must be expanded. Implementations are
// best-effort and never fail; absence of a match is an ordinary result.
type PageResolver interface {
	// EmbeddedResource returns the absolute URL of the content embedded in
	// a viewer page, or ok=false when no embedded resource can be located.
	EmbeddedResource(html, baseURL string) (url string, ok bool)

	// AssignmentAttachments returns the distinct intro attachments linked
	// from an assignment page, in document order.
	AssignmentAttachments(html, baseURL string) []Attachment
}
