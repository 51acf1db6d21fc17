package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/orenbm/moodledown"
)

// starredPrefixes are star-status labels some themes prepend to the visible
// course name. Longest first so "Course is not starred" wins over
// "Course is starred".
var starredPrefixes = []string{
	"Course is not starred",
	"Course is starred",
	"Course not starred",
	"Course starred",
}

// Courses extracts the course list from a dashboard page's course-overview
// block. Hidden accessibility helpers inside the course link are dropped
// before reading the name.
func (c *Classifier) Courses(html string, pageURL string) []moodledown.Course {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Warn("dashboard page failed to parse", "error", err)
		return nil
	}

	var courses []moodledown.Course
	doc.Find(`section[data-block="myoverview"] li.course-listitem`).Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a.coursename").First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		clone := link.Clone()
		clone.Find(".sr-only, .visually-hidden, .accesshide").Remove()
		name := strings.Join(strings.Fields(clone.Text()), " ")
		for _, prefix := range starredPrefixes {
			if strings.HasPrefix(name, prefix) {
				name = strings.TrimSpace(strings.TrimPrefix(name, prefix))
				break
			}
		}
		if name == "" {
			return
		}

		abs := absoluteURL(pageURL, href)
		if abs == "" {
			return
		}
		courses = append(courses, moodledown.Course{Name: name, URL: abs})
	})

	c.logger.Info("extracted dashboard courses", "count", len(courses))
	return courses
}

// CourseTitle reads the course name from a course page header. Returns ""
// when no title can be found.
func (c *Classifier) CourseTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, sel := range []string{".page-header-headings h1", "header h1", "h1"} {
		if title := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " "); title != "" {
			return title
		}
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
