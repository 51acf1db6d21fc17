package download

import (
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/orenbm/moodledown"
)

var (
	dispositionExtended = regexp.MustCompile(`(?i)filename\*=utf-8''([^;]+)`)
	dispositionQuoted   = regexp.MustCompile(`filename="([^"]+)"`)
	dispositionPlain    = regexp.MustCompile(`filename=([^;]+)`)
)

// extensionOverrides pins the extension for content types where the mime
// registry offers several candidates or an unhelpful first choice.
var extensionOverrides = map[string]string{
	"application/pdf":               "pdf",
	"application/msword":            "doc",
	"application/vnd.ms-powerpoint": "ppt",
	"application/vnd.ms-excel":      "xls",
	"application/zip":               "zip",
	"application/x-zip-compressed":  "zip",
	"text/plain":                    "txt",
	"text/html":                     "html",
	"image/jpeg":                    "jpg",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
}

// resolveFilename derives the final (base, extension) pair for a response.
// The name comes from the Content-Disposition header when present, falling
// back to the resource's display name; the extension cascades from the
// header name to the fetched URL path to the content type, with folders
// always forced to zip.
func (e *Engine) resolveFilename(res moodledown.Resource, resp *moodledown.Response, fetchURL string) (string, string) {
	name := filenameFromHeader(resp.Header.Get("Content-Disposition"))

	base, ext := splitName(name)
	if base == "" {
		base = res.Name
		// Display names often carry the extension already; strip it so the
		// final name does not end up with it doubled.
		if b, e := splitName(res.Name); validExtension(e) {
			base = b
			if ext == "" {
				ext = e
			}
		}
	}

	if ext == "" {
		ext = extensionFromURL(resp.URL)
	}
	if ext == "" {
		if mapped, ok := extensionOverrides[resp.ContentType()]; ok {
			ext = mapped
		} else if exts, err := mime.ExtensionsByType(resp.ContentType()); err == nil && len(exts) > 0 {
			ext = strings.TrimPrefix(exts[0], ".")
		}
	}

	// Folder downloads come back as server-generated zip archives whatever
	// the headers claim.
	if res.Kind == moodledown.KindFolder || strings.Contains(fetchURL, e.cfg.Patterns.FolderArchiveEndpoint) {
		ext = "zip"
	}

	if ext == "" {
		e.logger.Warn("could not determine file extension", "name", base, "url", fetchURL)
		ext = "bin"
	}

	return moodledown.SanitizeName(base, "downloaded_file"), strings.ToLower(ext)
}

// filenameFromHeader extracts a filename from a Content-Disposition header.
// It prefers the RFC 5987 extended form, then the quoted form with
// percent-decoding and a Latin-1 misencoding recovery, then the bare form.
// Returns "" when no filename can be extracted.
func filenameFromHeader(disposition string) string {
	if disposition == "" {
		return ""
	}

	if m := dispositionExtended.FindStringSubmatch(disposition); m != nil {
		if decoded, err := url.PathUnescape(m[1]); err == nil {
			return strings.TrimSpace(decoded)
		}
		return strings.TrimSpace(m[1])
	}

	if m := dispositionQuoted.FindStringSubmatch(disposition); m != nil {
		name := m[1]
		if strings.Contains(name, "%") {
			if decoded, err := url.PathUnescape(name); err == nil && decoded != name {
				return strings.TrimSpace(decoded)
			}
		}
		// Some servers stuff raw UTF-8 bytes into the header, which the
		// transport layer then reads as Latin-1. Reinterpreting the bytes
		// recovers the original name.
		if recovered, ok := recoverLatin1(name); ok {
			return strings.TrimSpace(recovered)
		}
		return strings.TrimSpace(name)
	}

	if m := dispositionPlain.FindStringSubmatch(disposition); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), `"`)
	}

	return ""
}

// recoverLatin1 reinterprets a Latin-1 decoded string as UTF-8 bytes. It
// only reports success when the reinterpretation yields valid UTF-8 that
// differs from the input, so plain ASCII names pass through untouched.
func recoverLatin1(s string) (string, bool) {
	hasHigh := false
	for _, r := range s {
		if r > 0xFF {
			return "", false
		}
		if r > 0x7F {
			hasHigh = true
		}
	}
	if !hasHigh {
		return "", false
	}
	raw := make([]byte, 0, len(s))
	for _, r := range s {
		raw = append(raw, byte(r))
	}
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// splitName splits a filename into base and extension without the dot.
// A name with no dot, or a leading-dot name like ".bashrc", has no
// extension.
func splitName(name string) (string, string) {
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), strings.TrimPrefix(ext, ".")
}

// validExtension reports whether s looks like a real file extension: short
// and purely alphanumeric. This keeps dots inside ordinary display names
// like "Lecture 1.2 Notes" from being mistaken for extensions.
func validExtension(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

// extensionFromURL pulls an extension from a URL path, ignoring query
// strings and fragments.
func extensionFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if len(ext) < 2 {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
