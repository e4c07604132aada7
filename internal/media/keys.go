package media

import (
	"path"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w.\-()+\s]`)

// SafeFilename replaces every character outside word characters, dot, dash,
// parentheses, plus and whitespace with an underscore. Path separators are
// therefore never kept.
func SafeFilename(name string) string {
	clean := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if clean == "" || clean == "." || clean == ".." {
		return "file"
	}
	return clean
}

// ObjectKey derives the storage key for an asset. The asset id segment makes
// keys unique even when the same owner uploads the same filename twice.
func ObjectKey(ownerID, assetID, filename string) string {
	return path.Join("videos", SafeFilename(ownerID), assetID, SafeFilename(filename))
}

// NormalizeContentType lowercases a MIME type and drops any parameters.
func NormalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func AllowedContentType(contentType string, prefixes []string) bool {
	ct := NormalizeContentType(contentType)
	if ct == "" {
		return false
	}
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(ct, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}
