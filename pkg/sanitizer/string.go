package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

var reSlugSeparators = regexp.MustCompile(`[\s_]+`)
var reSlugInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
var reRepeatedHyphens = regexp.MustCompile(`-{2,}`)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeLocation(location string) string {
	return TrimAndNormalize(location)
}

// NormalizeDescription keeps line breaks, trimming each line and dropping runs of blank lines.
func NormalizeDescription(description string) string {
	lines := strings.Split(strings.ReplaceAll(description, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = TrimAndNormalize(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func NormalizeLabel(label string) string {
	normalized := TrimAndNormalize(label)
	return strings.ToLower(normalized)
}

// NormalizeCategory turns a display name or slug into the lowercase hyphenated slug form.
func NormalizeCategory(category string) string {
	s := strings.ToLower(strings.TrimSpace(category))
	s = reSlugSeparators.ReplaceAllString(s, "-")
	s = reSlugInvalid.ReplaceAllString(s, "")
	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
