package pipeline

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxTitle = 140
	defaultSource   = "Tech News"
)

var asciiPunctuation = strings.NewReplacer(
	"\u2013", "-", // en dash
	"\u2014", "-", // em dash
	"\u2212", "-", // minus
	"\u2018", "'",
	"\u2019", "'",
	"\u201C", `"`,
	"\u201D", `"`,
	"\u2026", "...",
	"\u00A0", " ",
)

// Sanitize maps typographic punctuation to ASCII and collapses whitespace
func Sanitize(s string) string {
	return strings.Join(strings.Fields(asciiPunctuation.Replace(s)), " ")
}

// Shorten cuts s to at most max runes, ending the cut text with an ellipsis
func Shorten(s string, max int) string {
	if max <= 0 {
		max = DefaultMaxTitle
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max-1]), " \t\n") + "…"
}

// Caption builds the post text shown next to the poster
func Caption(title string, bullets []string, source, url, hashtags string) string {
	if source == "" {
		source = defaultSource
	}
	var b strings.Builder
	b.WriteString(Sanitize(title))
	b.WriteString("\n\n")
	for i, bullet := range bullets {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(bullet)
	}
	b.WriteString("\n\nSource: ")
	b.WriteString(source)
	b.WriteString("\n")
	b.WriteString(url)
	b.WriteString("\n")
	b.WriteString(hashtags)
	return b.String()
}
