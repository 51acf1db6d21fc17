// Package goquery implements HTML heuristics for Moodle pages: the course
// resource classifier, viewer-page resolution, assignment attachment
// extraction, and dashboard course listing.
//
// Moodle themes vary wildly, so every extraction here is a cascade of
// selectors tried in priority order with a documented fallback. Nothing in
// this package returns an error: malformed HTML degrades to a partial,
// possibly empty, result.
package goquery

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/orenbm/moodledown"
)

// Ensure Classifier implements moodledown.Extractor at compile time.
var _ moodledown.Extractor = (*Classifier)(nil)

// Classifier turns a rendered course page into downloadable resources.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier creates a Classifier. A nil logger disables logging.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{logger: logger}
}

// section is one segmented course section and its container element.
type section struct {
	name string
	sel  *goquery.Selection
}

// Resources returns a URL-keyed map of downloadable resources found on the
// page. Resources appearing in more than one section are attributed to the
// first. URLs present in exclude are omitted.
func (c *Classifier) Resources(html string, pageURL string, exclude map[string]struct{}) map[string]moodledown.Resource {
	out := make(map[string]moodledown.Resource)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Warn("course page failed to parse", "error", err)
		return out
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		c.logger.Warn("invalid page URL", "url", pageURL, "error", err)
		base = nil
	}

	sections := c.segmentSections(doc)
	for _, sec := range sections {
		for _, res := range c.sectionResources(sec, base) {
			if _, ok := out[res.URL]; !ok {
				out[res.URL] = res
			}
		}
	}

	found := len(out)
	for u := range exclude {
		delete(out, u)
	}
	c.logger.Info("classified course page",
		"sections", len(sections),
		"found", found,
		"excluded", found-len(out),
	)
	return out
}

// segmentSections locates the section containers on a course page. When no
// section structure is recognized, the whole document becomes one implicit
// section named "Course Materials".
func (c *Classifier) segmentSections(doc *goquery.Document) []section {
	containers := doc.Find("li.section.main, div.section.main, li.topic.main, div.topic.main, li.week.main, div.week.main")
	if containers.Length() == 0 {
		containers = doc.Find("div.course-content > ul > li.section")
	}
	if containers.Length() == 0 {
		containers = doc.Find("div#region-main .section")
	}
	if containers.Length() == 0 {
		c.logger.Warn("no section containers found, treating page as a single section")
		return []section{{name: moodledown.DefaultSection, sel: doc.Selection}}
	}

	var sections []section
	containers.Each(func(i int, sel *goquery.Selection) {
		sections = append(sections, section{name: c.sectionName(sel, i), sel: sel})
	})
	return sections
}

// sectionName derives a non-empty, filesystem-safe section name.
func (c *Classifier) sectionName(sel *goquery.Selection, idx int) string {
	name := strings.TrimSpace(sel.Find("h3.sectionname, h4.sectionname, .section-title span.inplaceeditable").First().Text())

	if name == "" {
		name, _ = sel.Attr("aria-label")
		name = strings.TrimSpace(name)
	}

	if name == "" {
		if idx == 0 && isGeneralSection(sel) {
			name = "General"
		} else {
			name = fmt.Sprintf("Section %d", idx)
		}
	}

	return moodledown.SanitizeName(name, fmt.Sprintf("Section_%d", idx))
}

// isGeneralSection checks the section summary for the locale-specific
// "General" keyword used by the first section on many courses.
func isGeneralSection(sel *goquery.Selection) bool {
	summary := strings.ToLower(strings.TrimSpace(sel.Find(".summarytext").First().Text()))
	if summary == "" {
		return false
	}
	return strings.Contains(summary, "general") || strings.Contains(summary, "כללי")
}

// sectionResources extracts downloadable resources from one section.
func (c *Classifier) sectionResources(sec section, base *url.URL) []moodledown.Resource {
	var out []moodledown.Resource

	sec.sel.Find("li.activity, div.activity").Each(func(_ int, activity *goquery.Selection) {
		link := activity.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || href == "#" || strings.HasSuffix(href, "#") {
			return
		}

		abs := resolveURL(base, href)
		if abs == "" {
			return
		}

		kind := classifyKind(link, abs)
		if !kind.Downloadable() {
			return
		}

		name := displayName(link)
		if name == "" {
			return
		}

		out = append(out, moodledown.Resource{
			URL:     abs,
			Name:    name,
			Section: sec.name,
			Kind:    kind,
		})
	})

	return out
}

// displayName derives the human-readable resource name: the instance-name
// span (including one nested level), falling back to the anchor's own text,
// then strips label prefixes and sanitizes.
func displayName(link *goquery.Selection) string {
	name := ""
	instance := link.Find("span.instancename").First()
	if instance.Length() > 0 {
		// The accesshide child repeats the module type; drop it first.
		clone := instance.Clone()
		clone.Find(".accesshide").Remove()
		name = strings.TrimSpace(clone.Text())
		if name == "" {
			name = strings.TrimSpace(instance.Find("span").First().Text())
		}
	}
	if name == "" {
		name = strings.TrimSpace(link.Text())
	}
	if name == "" {
		return ""
	}
	return moodledown.SanitizeName(moodledown.StripLabelPrefix(name), "")
}

// resolveURL resolves href against base, returning "" when it cannot be
// made absolute.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}

// kindMatcher is one step of the classification cascade. Matchers are pure
// and evaluated in priority order until one claims the link.
type kindMatcher func(link *goquery.Selection, href string) (moodledown.Kind, bool)

var kindMatchers = []kindMatcher{
	matchURLPattern,
	matchModuleClass,
	matchIcon,
	matchExtension,
	matchResourceView,
}

// classifyKind runs the matcher cascade for one anchor.
func classifyKind(link *goquery.Selection, abs string) moodledown.Kind {
	href := strings.ToLower(abs)
	for _, m := range kindMatchers {
		if kind, ok := m(link, href); ok {
			return kind
		}
	}
	return moodledown.KindUnknown
}

// matchURLPattern classifies by the module-view path in the URL itself.
func matchURLPattern(_ *goquery.Selection, href string) (moodledown.Kind, bool) {
	switch {
	case strings.Contains(href, "folder/view.php") || strings.Contains(href, "/folder/"):
		return moodledown.KindFolder, true
	case strings.Contains(href, "assign/view.php"):
		return moodledown.KindAssignment, true
	case strings.Contains(href, "quiz/view.php"), strings.Contains(href, "forum/view.php"):
		return moodledown.KindIgnored, true
	case strings.Contains(href, "url/view.php"):
		return moodledown.KindURLLink, true
	}
	return moodledown.KindUnknown, false
}

// ignoredModtypes are activity module classes that never produce files.
// Assignments are deliberately absent: they carry intro attachments and get
// expanded by the download engine instead.
var ignoredModtypes = map[string]struct{}{
	"modtype_quiz":          {},
	"modtype_forum":         {},
	"modtype_feedback":      {},
	"modtype_choice":        {},
	"modtype_survey":        {},
	"modtype_questionnaire": {},
	"modtype_hvp":           {},
}

// matchModuleClass classifies by the modtype_* marker class Moodle puts on
// an ancestor of the link.
func matchModuleClass(link *goquery.Selection, _ string) (moodledown.Kind, bool) {
	ancestor := link.Closest("[class*=modtype_]")
	if ancestor.Length() == 0 {
		return moodledown.KindUnknown, false
	}
	class, _ := ancestor.Attr("class")
	for _, cls := range strings.Fields(class) {
		if !strings.HasPrefix(cls, "modtype_") {
			continue
		}
		if _, ignored := ignoredModtypes[cls]; ignored {
			return moodledown.KindIgnored, true
		}
		switch cls {
		case "modtype_folder":
			return moodledown.KindFolder, true
		case "modtype_url":
			return moodledown.KindURLLink, true
		case "modtype_assign":
			return moodledown.KindAssignment, true
		}
	}
	return moodledown.KindUnknown, false
}

// iconKinds maps icon URL substrings to document subtypes. The hyphenated
// forms are exact theme icon names; the bare forms are looser fallbacks and
// must be checked after, in order.
var iconKindsExact = []struct {
	marker string
	kind   moodledown.Kind
}{
	{"/pdf-", moodledown.KindPDF},
	{"/powerpoint-", moodledown.KindPowerPoint},
	{"/document-", moodledown.KindWord},
	{"/spreadsheet-", moodledown.KindExcel},
	{"/archive-", moodledown.KindArchive},
	{"/folder-", moodledown.KindFolder},
	{"/text-", moodledown.KindText},
	{"/url-", moodledown.KindURLLink},
}

var iconKindsLoose = []struct {
	marker string
	kind   moodledown.Kind
}{
	{"/pdf", moodledown.KindPDF},
	{"/document", moodledown.KindDocument},
	{"/word", moodledown.KindWord},
	{"/powerpoint", moodledown.KindPowerPoint},
	{"/spreadsheet", moodledown.KindExcel},
	{"/excel", moodledown.KindExcel},
	{"/archive", moodledown.KindArchive},
	{"/zip", moodledown.KindArchive},
	{"/folder", moodledown.KindFolder},
}

// matchIcon classifies by the activity icon's source URL.
func matchIcon(link *goquery.Selection, _ string) (moodledown.Kind, bool) {
	src, ok := link.Find("img.activityicon").First().Attr("src")
	if !ok || src == "" {
		return moodledown.KindUnknown, false
	}
	src = strings.ToLower(src)
	for _, entry := range iconKindsExact {
		if strings.Contains(src, entry.marker) {
			return entry.kind, true
		}
	}
	for _, entry := range iconKindsLoose {
		if strings.Contains(src, entry.marker) {
			return entry.kind, true
		}
	}
	return moodledown.KindUnknown, false
}

// extensionKinds is the allow-list of direct-link file extensions.
var extensionKinds = map[string]moodledown.Kind{
	"pdf":  moodledown.KindPDF,
	"doc":  moodledown.KindWord,
	"docx": moodledown.KindWord,
	"ppt":  moodledown.KindPowerPoint,
	"pptx": moodledown.KindPowerPoint,
	"xls":  moodledown.KindExcel,
	"xlsx": moodledown.KindExcel,
	"zip":  moodledown.KindArchive,
	"rar":  moodledown.KindArchive,
	"7z":   moodledown.KindArchive,
	"txt":  moodledown.KindText,
	"csv":  moodledown.KindText,
	"jpg":  moodledown.KindDocument,
	"jpeg": moodledown.KindDocument,
	"png":  moodledown.KindDocument,
	"gif":  moodledown.KindDocument,
	"mp4":  moodledown.KindDocument,
	"mp3":  moodledown.KindDocument,
	"mov":  moodledown.KindDocument,
}

// matchExtension classifies direct file links by URL path extension.
func matchExtension(_ *goquery.Selection, href string) (moodledown.Kind, bool) {
	u, err := url.Parse(href)
	if err != nil || u.Path == "" {
		return moodledown.KindUnknown, false
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext == "" {
		return moodledown.KindUnknown, false
	}
	if kind, ok := extensionKinds[ext]; ok {
		return kind, true
	}
	return moodledown.KindUnknown, false
}

// matchResourceView treats generic resource-view links as documents.
func matchResourceView(_ *goquery.Selection, href string) (moodledown.Kind, bool) {
	if strings.Contains(href, "resource/view.php") {
		return moodledown.KindDocument, true
	}
	return moodledown.KindUnknown, false
}
