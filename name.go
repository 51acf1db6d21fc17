package moodledown

import (
	"regexp"
	"strings"
)

// invalidNameChars matches characters that are not portable in file or
// directory names: the Windows-reserved set plus ASCII control characters.
var invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// labelPrefix matches the localized "File:"/"Folder:" label some Moodle
// themes prepend to the visible resource name (English and Hebrew).
var labelPrefix = regexp.MustCompile(`(?i)^\s*(file|folder|קובץ|תיקייה)(\s*[:\-]\s*|\s+)`)

// SanitizeName makes s safe to use as a single file or directory name:
// filesystem-invalid characters become underscores and leading/trailing
// underscores, dots and spaces are trimmed. If nothing survives, fallback
// is returned instead, so the result is never empty for a non-empty
// fallback.
func SanitizeName(s, fallback string) string {
	s = invalidNameChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._ ")
	if s == "" {
		return fallback
	}
	return s
}

// StripLabelPrefix removes a leading localized "File"/"Folder" label from a
// display name, if present.
func StripLabelPrefix(s string) string {
	return strings.TrimSpace(labelPrefix.ReplaceAllString(s, ""))
}
