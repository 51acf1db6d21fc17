package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/orenbm/moodledown"
	"github.com/orenbm/moodledown/mock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("downloads a course into a named folder", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{html: "<html>course</html>", pageURL: "https://moodle.test/course/view.php?id=42"}
		deps, stdout, _ := testDeps(sess)
		deps.Title = func(html string) string { return "Intro to Algorithms" }
		deps.Extractor = &mock.Extractor{
			ResourcesFn: func(html, pageURL string, exclude map[string]struct{}) map[string]moodledown.Resource {
				return map[string]moodledown.Resource{
					"https://moodle.test/pluginfile.php/1/notes.pdf": {
						URL:     "https://moodle.test/pluginfile.php/1/notes.pdf",
						Name:    "notes.pdf",
						Section: "Week 1",
						Kind:    moodledown.KindPDF,
					},
				}
			},
		}

		cmd := &DownloadCmd{Courses: []string{"https://moodle.test/course/view.php?id=42"}, Dir: "/dl", Parallel: 1}
		err := cmd.Run(deps)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://moodle.test/course/view.php?id=42"}, sess.navigated)
		assert.True(t, sess.closed)
		assert.Equal(t, "student@example.edu", sess.loggedInAs)

		exists, statErr := afero.Exists(deps.FS, "/dl/Intro to Algorithms/Week 1/notes.pdf")
		require.NoError(t, statErr)
		assert.True(t, exists)
		assert.Contains(t, stdout.String(), "1 downloaded, 0 skipped, 0 failed")
	})

	t.Run("requires courses or --all", func(t *testing.T) {
		t.Parallel()

		deps, _, _ := testDeps(&fakeSession{})
		err := (&DownloadCmd{}).Run(deps)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--all")
	})

	t.Run("requires credentials", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := testDeps(&fakeSession{})
		deps.Password = ""
		err := (&DownloadCmd{Courses: []string{"https://moodle.test/course/view.php?id=1"}}).Run(deps)
		require.Error(t, err)
		assert.Contains(t, stderr.String(), "MOODLE_USERNAME")
	})

	t.Run("all discovers dashboard courses", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{html: "<html></html>", pageURL: "https://moodle.test/my/"}
		deps, stdout, _ := testDeps(sess)
		deps.Extractor = &mock.Extractor{
			CoursesFn: func(html, pageURL string) []moodledown.Course {
				return []moodledown.Course{{Name: "Calculus", URL: "https://moodle.test/course/view.php?id=7"}}
			},
			ResourcesFn: func(html, pageURL string, exclude map[string]struct{}) map[string]moodledown.Resource {
				return nil
			},
		}

		cmd := &DownloadCmd{All: true, Dir: "/dl", Parallel: 1}
		err := cmd.Run(deps)

		require.NoError(t, err)
		assert.Contains(t, sess.navigated, "dashboard")
		assert.Contains(t, sess.navigated, "https://moodle.test/course/view.php?id=7")
		assert.Contains(t, stdout.String(), "nothing new to download")
	})

	t.Run("login failure is reported per course", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{loginErr: errors.New("bad credentials")}
		deps, _, stderr := testDeps(sess)

		cmd := &DownloadCmd{Courses: []string{"https://moodle.test/course/view.php?id=1"}, Dir: "/dl"}
		err := cmd.Run(deps)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "all courses failed")
		assert.Contains(t, stderr.String(), "bad credentials")
		assert.True(t, sess.closed)
	})

	t.Run("failed items surface in the exit error", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{
			html:    "<html>course</html>",
			pageURL: "https://moodle.test/course/view.php?id=42",
			fetchFn: func(_ context.Context, url string) (*moodledown.Response, error) {
				return nil, errors.New("connection reset")
			},
		}
		deps, _, stderr := testDeps(sess)
		deps.Extractor = &mock.Extractor{
			ResourcesFn: func(html, pageURL string, exclude map[string]struct{}) map[string]moodledown.Resource {
				return map[string]moodledown.Resource{
					"https://moodle.test/a.pdf": {URL: "https://moodle.test/a.pdf", Name: "A", Kind: moodledown.KindPDF},
				}
			},
		}

		cmd := &DownloadCmd{Courses: []string{"https://moodle.test/course/view.php?id=42"}, Dir: "/dl"}
		err := cmd.Run(deps)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 failed item(s)")
		assert.Contains(t, stderr.String(), "failed:")
	})
}

func TestUnzipCmd_Run(t *testing.T) {
	t.Parallel()

	deps, stdout, _ := testDeps(&fakeSession{})
	require.NoError(t, deps.FS.MkdirAll("/dl", 0o755))

	err := (&UnzipCmd{Folder: "/dl"}).Run(deps)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Unzip finished")

	err = (&UnzipCmd{Folder: "/missing"}).Run(deps)
	assert.Error(t, err)
}

func TestCoursesCmd_Run(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{html: "<html></html>", pageURL: "https://moodle.test/my/"}
	deps, stdout, _ := testDeps(sess)
	deps.Extractor = &mock.Extractor{
		CoursesFn: func(html, pageURL string) []moodledown.Course {
			return []moodledown.Course{{Name: "Calculus", URL: "https://moodle.test/course/view.php?id=7"}}
		},
	}

	err := (&CoursesCmd{}).Run(deps)
	require.NoError(t, err)
	assert.True(t, strings.Contains(stdout.String(), "Calculus"))
	assert.True(t, sess.closed)
}
