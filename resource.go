package moodledown

// Kind classifies what a course-page link points at. The value drives the
// download strategy: folders are rewritten to archive endpoints, assignments
// are expanded into their intro attachments, and ignored kinds never reach
// the download engine at all.
type Kind int

// Resource kinds, ordered roughly from most to least specific.
const (
	KindUnknown Kind = iota
	KindDocument
	KindPDF
	KindWord
	KindExcel
	KindPowerPoint
	KindArchive
	KindText
	KindFolder
	KindURLLink
	KindAssignment
	KindIgnored
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindDocument:   "document",
	KindPDF:        "pdf",
	KindWord:       "word",
	KindExcel:      "excel",
	KindPowerPoint: "powerpoint",
	KindArchive:    "archive",
	KindText:       "text",
	KindFolder:     "folder",
	KindURLLink:    "url",
	KindAssignment: "assignment",
	KindIgnored:    "ignored",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Downloadable reports whether the download engine accepts resources of this
// kind. External links, quiz/forum-style activities and unclassifiable links
// are not files and are filtered out by the classifier.
func (k Kind) Downloadable() bool {
	switch k {
	case KindUnknown, KindURLLink, KindIgnored:
		return false
	}
	return true
}

// Resource is a candidate downloadable unit discovered on a course page.
// Resources are created by the classifier and never mutated afterwards;
// the absolute URL is the deduplication key within one page scan.
type Resource struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Section string `json:"section"`
	Kind    Kind   `json:"kind"`
}

// Validate returns an error if the resource cannot be downloaded as-is.
func (r *Resource) Validate() error {
	if r.URL == "" {
		return Errorf(EINVALID, "resource URL required")
	}
	if r.Name == "" {
		return Errorf(EINVALID, "resource name required")
	}
	if !r.Kind.Downloadable() {
		return Errorf(EINVALID, "resource kind %q is not downloadable", r.Kind)
	}
	return nil
}

// DefaultSection is the section name used when a course page has no
// recognizable section structure.
const DefaultSection = "Course Materials"

// Course is an entry on the user's Moodle dashboard.
type Course struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Extractor classifies a rendered course page into downloadable resources.
// Implementations are best-effort: malformed or unexpected HTML degrades to
// a partial (possibly empty) result, never an error.
type Extractor interface {
	// Resources returns a URL-keyed map of downloadable resources found on
	// the page. pageURL is used to resolve relative hrefs. URLs present in
	// exclude are omitted from the result.
	Resources(html string, pageURL string, exclude map[string]struct{}) map[string]Resource

	// Courses returns the course entries listed on a dashboard page.
	Courses(html string, pageURL string) []Course
}
