package store

import (
	"strings"

	"github.com/google/uuid"
)

// slugSuffixLen is how much of a random UUID gets appended to dedupe a
// colliding slug.
const slugSuffixLen = 8

// Slugify converts a title into a URL slug: lowercase, alphanumeric runs
// joined by single hyphens.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// uniqueSlug disambiguates a colliding slug with a random suffix.
func uniqueSlug(slug string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:slugSuffixLen]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
