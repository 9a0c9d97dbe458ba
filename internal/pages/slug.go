package pages

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 200

// Slugify lowercases, ASCII-folds and hyphenates text for use in a URL path segment.
// It returns an empty string when nothing usable remains.
func Slugify(text string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}

	return strings.Trim(b.String(), "-")
}

// TrashedSlug renames a slug so its namespace slot is released when the page is trashed.
func TrashedSlug(slug, id string) string {
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return slug + "__trashed-" + suffix
}
