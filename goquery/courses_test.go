package goquery_test

import (
	"testing"

	"github.com/orenbm/moodledown/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dashboardURL = "https://moodle.test/my/"

func TestClassifier_Courses(t *testing.T) {
	t.Parallel()

	c := goquery.NewClassifier(nil)

	t.Run("extracts names and links", func(t *testing.T) {
		t.Parallel()
		html := `<section data-block="myoverview">
		<ul>
		<li class="course-listitem">
			<a class="coursename" href="/course/view.php?id=42">
				<span class="sr-only">Course name</span>
				Intro to Algorithms
			</a>
		</li>
		<li class="course-listitem">
			<a class="coursename" href="https://moodle.test/course/view.php?id=43">Linear Algebra</a>
		</li>
		</ul>
		</section>`

		courses := c.Courses(html, dashboardURL)

		require.Len(t, courses, 2)
		assert.Equal(t, "Intro to Algorithms", courses[0].Name)
		assert.Equal(t, "https://moodle.test/course/view.php?id=42", courses[0].URL)
		assert.Equal(t, "Linear Algebra", courses[1].Name)
	})

	t.Run("star status prefix stripped", func(t *testing.T) {
		t.Parallel()
		html := `<section data-block="myoverview"><ul>
		<li class="course-listitem"><a class="coursename" href="/course/view.php?id=1">Course is starred Calculus</a></li>
		<li class="course-listitem"><a class="coursename" href="/course/view.php?id=2">Course is not starred Physics</a></li>
		</ul></section>`

		courses := c.Courses(html, dashboardURL)

		require.Len(t, courses, 2)
		assert.Equal(t, "Calculus", courses[0].Name)
		assert.Equal(t, "Physics", courses[1].Name)
	})

	t.Run("no overview block", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, c.Courses("<p>welcome</p>", dashboardURL))
	})
}

func TestClassifier_CourseTitle(t *testing.T) {
	t.Parallel()

	c := goquery.NewClassifier(nil)

	t.Run("page header heading preferred", func(t *testing.T) {
		t.Parallel()
		html := `<html><head><title>Course: Algorithms | Moodle</title></head>
		<body><div class="page-header-headings"><h1>Intro   to Algorithms</h1></div>
		<h1>Some other heading</h1></body></html>`
		assert.Equal(t, "Intro to Algorithms", c.CourseTitle(html))
	})

	t.Run("falls back to any h1", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "Linear Algebra", c.CourseTitle("<h1>Linear Algebra</h1>"))
	})

	t.Run("falls back to document title", func(t *testing.T) {
		t.Parallel()
		html := `<html><head><title>Physics 101</title></head><body></body></html>`
		assert.Equal(t, "Physics 101", c.CourseTitle(html))
	})

	t.Run("empty page", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "", c.CourseTitle(""))
	})
}
