package goquery

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/orenbm/moodledown"
)

// Ensure Resolver implements moodledown.PageResolver at compile time.
var _ moodledown.PageResolver = (*Resolver)(nil)

// Resolver locates the real content behind HTML pages the download engine
// receives instead of files: viewer wrapper pages and assignment pages.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger disables logging.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{logger: logger}
}

// embedMatcher is one step of the embedded-resource cascade. It returns the
// raw (possibly relative) URL of the embedded content.
type embedMatcher func(doc *goquery.Document) (string, bool)

var embedMatchers = []embedMatcher{
	matchResourceFrame,
	matchPDFObject,
	matchRegionFrame,
	matchPluginfileLink,
}

// EmbeddedResource searches a viewer page for the content it wraps and
// returns its absolute URL. The cascade tries, in order: the resource
// iframe, a PDF object tag, any iframe in the main region (then anywhere),
// and finally a pluginfile hyperlink.
func (r *Resolver) EmbeddedResource(html, baseURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		r.logger.Warn("viewer page failed to parse", "error", err)
		return "", false
	}

	for _, m := range embedMatchers {
		if raw, ok := m(doc); ok {
			abs := absoluteURL(baseURL, raw)
			if abs == "" {
				continue
			}
			r.logger.Info("found embedded resource", "url", abs)
			return abs, true
		}
	}

	r.logger.Warn("no embedded resource found in viewer page", "url", baseURL)
	return "", false
}

func matchResourceFrame(doc *goquery.Document) (string, bool) {
	src, ok := doc.Find("iframe#resourceobject, iframe.resourceworkarea").First().Attr("src")
	return src, ok && src != ""
}

func matchPDFObject(doc *goquery.Document) (string, bool) {
	data, ok := doc.Find(`object[type="application/pdf"]`).First().Attr("data")
	return data, ok && data != ""
}

func matchRegionFrame(doc *goquery.Document) (string, bool) {
	frame := doc.Find("#region-main iframe").First()
	if frame.Length() == 0 {
		frame = doc.Find("iframe").First()
	}
	src, ok := frame.Attr("src")
	return src, ok && src != ""
}

func matchPluginfileLink(doc *goquery.Document) (string, bool) {
	href, ok := doc.Find(`a[href*="pluginfile.php"]`).First().Attr("href")
	return href, ok && href != ""
}

// absoluteURL resolves raw against base, returning "" when no absolute URL
// can be produced.
func absoluteURL(base, raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}
