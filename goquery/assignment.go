package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/orenbm/moodledown"
)

// introMarkers identify pluginfile links that are assignment intro
// attachments, as opposed to student submission uploads.
var introMarkers = []string{"/mod_assign/intro", "/mod_assign/introattachment"}

// AssignmentAttachments returns the distinct intro attachments linked from
// an assignment page, in document order. Display names come from the
// anchor's own text, an img alt inside the anchor, or the nearest img alt
// preceding it, falling back to a fixed placeholder.
func (r *Resolver) AssignmentAttachments(html, baseURL string) []moodledown.Attachment {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		r.logger.Warn("assignment page failed to parse", "error", err)
		return nil
	}

	var attachments []moodledown.Attachment
	seen := make(map[string]struct{})

	doc.Find(`a[href*="pluginfile.php"]`).Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		if !isIntroAttachment(href) {
			return
		}

		abs := absoluteURL(baseURL, href)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		attachments = append(attachments, moodledown.Attachment{
			URL:  abs,
			Name: attachmentName(anchor),
		})
	})

	r.logger.Info("scanned assignment page", "url", baseURL, "attachments", len(attachments))
	return attachments
}

func isIntroAttachment(href string) bool {
	for _, marker := range introMarkers {
		if strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

// attachmentName derives a display name for one attachment link.
func attachmentName(anchor *goquery.Selection) string {
	if name := strings.TrimSpace(anchor.Text()); name != "" {
		return name
	}
	if alt, ok := anchor.Find("img[alt]").First().Attr("alt"); ok {
		if alt = strings.TrimSpace(alt); alt != "" {
			return alt
		}
	}
	// File-manager markup puts the icon just before the link.
	if alt, ok := anchor.PrevAllFiltered("img[alt]").First().Attr("alt"); ok {
		if alt = strings.TrimSpace(alt); alt != "" {
			return alt
		}
	}
	if alt, ok := anchor.Parent().Find("img[alt]").First().Attr("alt"); ok {
		if alt = strings.TrimSpace(alt); alt != "" {
			return alt
		}
	}
	return "assignment_file"
}
