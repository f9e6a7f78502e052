package storage

import (
	"path/filepath"
	"strings"
	"unicode"
)

const fallbackBaseName = "video"

// SanitizeFilename keeps letters, digits, underscores and hyphens in the
// base name and extension; spaces become underscores.
func SanitizeFilename(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	base = sanitizeComponent(base)
	if base == "" {
		base = fallbackBaseName
	}

	ext = sanitizeComponent(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func sanitizeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
