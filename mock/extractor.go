package mock

import "github.com/orenbm/moodledown"

var _ moodledown.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of moodledown.Extractor.
type Extractor struct {
	ResourcesFn func(html, pageURL string, exclude map[string]struct{}) map[string]moodledown.Resource
	CoursesFn   func(html, pageURL string) []moodledown.Course
}

func (e *Extractor) Resources(html, pageURL string, exclude map[string]struct{}) map[string]moodledown.Resource {
	return e.ResourcesFn(html, pageURL, exclude)
}

func (e *Extractor) Courses(html, pageURL string) []moodledown.Course {
	return e.CoursesFn(html, pageURL)
}
