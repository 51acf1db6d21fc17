package goquery_test

import (
	"testing"

	"github.com/orenbm/moodledown/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewerURL = "https://moodle.test/mod/resource/view.php?id=55"

func TestResolver_EmbeddedResource(t *testing.T) {
	t.Parallel()

	r := goquery.NewResolver(nil)

	t.Run("resource iframe wins", func(t *testing.T) {
		t.Parallel()
		html := `<body>
			<iframe id="resourceobject" src="/pluginfile.php/1/mod_resource/content/1/slides.pdf"></iframe>
			<a href="/pluginfile.php/1/mod_resource/content/1/other.pdf">other</a>
		</body>`

		url, ok := r.EmbeddedResource(html, viewerURL)
		require.True(t, ok)
		assert.Equal(t, "https://moodle.test/pluginfile.php/1/mod_resource/content/1/slides.pdf", url)
	})

	t.Run("resource workarea class", func(t *testing.T) {
		t.Parallel()
		html := `<iframe class="resourceworkarea" src="/pluginfile.php/2/f.pdf"></iframe>`

		url, ok := r.EmbeddedResource(html, viewerURL)
		require.True(t, ok)
		assert.Equal(t, "https://moodle.test/pluginfile.php/2/f.pdf", url)
	})

	t.Run("pdf object tag", func(t *testing.T) {
		t.Parallel()
		html := `<object type="application/pdf" data="/pluginfile.php/3/doc.pdf"></object>`

		url, ok := r.EmbeddedResource(html, viewerURL)
		require.True(t, ok)
		assert.Equal(t, "https://moodle.test/pluginfile.php/3/doc.pdf", url)
	})

	t.Run("iframe inside main region preferred over stray iframe", func(t *testing.T) {
		t.Parallel()
		html := `<body>
			<iframe src="/ads/banner.html"></iframe>
			<div id="region-main"><iframe src="/pluginfile.php/4/doc.pdf"></iframe></div>
		</body>`

		url, ok := r.EmbeddedResource(html, viewerURL)
		require.True(t, ok)
		assert.Equal(t, "https://moodle.test/pluginfile.php/4/doc.pdf", url)
	})

	t.Run("any iframe as last frame fallback", func(t *testing.T) {
		t.Parallel()
		html := `<iframe src="/pluginfile.php/5/doc.pdf"></iframe>`

		url, ok := r.EmbeddedResource(html, viewerURL)
		require.True(t, ok)
		assert.Equal(t, "https://moodle.test/pluginfile.php/5/doc.pdf", url)
	})

	t.Run("pluginfile hyperlink fallback", func(t *testing.T) {
		t.Parallel()
		html := `<div id="region-main"><a href="/pluginfile.php/6/handout.docx">Download</a></div>`

		url, ok := r.EmbeddedResource(html, viewerURL)
		require.True(t, ok)
		assert.Equal(t, "https://moodle.test/pluginfile.php/6/handout.docx", url)
	})

	t.Run("nothing embedded", func(t *testing.T) {
		t.Parallel()
		html := `<div id="region-main"><p>This page has no file.</p></div>`

		_, ok := r.EmbeddedResource(html, viewerURL)
		assert.False(t, ok)
	})

	t.Run("absolute src passes through", func(t *testing.T) {
		t.Parallel()
		html := `<iframe id="resourceobject" src="https://cdn.moodle.test/pluginfile.php/7/x.pdf"></iframe>`

		url, ok := r.EmbeddedResource(html, viewerURL)
		require.True(t, ok)
		assert.Equal(t, "https://cdn.moodle.test/pluginfile.php/7/x.pdf", url)
	})
}
