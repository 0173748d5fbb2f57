package publish

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var sectionCaser = cases.Lower(language.Und)

func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// NormalizeSection maps user input such as " Tech " to the stored key "tech"
func NormalizeSection(section string) string {
	return sectionCaser.String(normalizeText(section))
}

func normalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))

	for _, tag := range tags {
		tag = NormalizeSection(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		normalized = append(normalized, tag)
	}

	return normalized
}
