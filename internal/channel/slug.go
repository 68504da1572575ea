package channel

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxSlugLen is the longest upstream slug trusted as-is. Longer values are
// opaque ids, not human slugs.
const MaxSlugLen = 30

// Slugify lower-cases name and collapses every run of non-alphanumerics into
// one hyphen, trimming hyphens at both ends.
func Slugify(name string) string {
	lower := cases.Lower(language.Und).String(name)
	return strings.Trim(nonAlphaNum.ReplaceAllString(lower, "-"), "-")
}

// ResolveSlug returns upstream when it looks like a human slug, otherwise a
// slug derived from name. maxLen <= 0 uses MaxSlugLen.
func ResolveSlug(upstream, name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxSlugLen
	}
	upstream = strings.TrimSpace(upstream)
	if upstream != "" && len(upstream) <= maxLen {
		return upstream
	}
	return Slugify(name)
}
