package upload

import (
	"path"
	"strings"
	"unicode"
)

// DefaultAllowedExtensions are the file types accepted when none are configured.
var DefaultAllowedExtensions = []string{
	"txt", "pdf", "png", "jpg", "jpeg", "gif", "doc", "docx", "zip", "mp4", "mp3",
}

// SanitizeFilename reduces name to a safe base filename: directory parts are
// dropped, whitespace becomes "_", anything outside [A-Za-z0-9._-] is removed
// and leading dots and underscores are trimmed. The result may be empty.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_'):
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "._")
}

// extension returns the lower-cased extension of name without the dot.
func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
