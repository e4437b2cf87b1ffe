package summarize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMaxBullets = 4
	DefaultMaxChars   = 420

	maxSentences   = 12
	minSentenceLen = 30
	maxSentenceLen = 180
)

var boilerplatePrefixes = []string{"advertisement", "subscribe", "sign in"}

// clean collapses runs of whitespace and trims the result
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SplitSentences splits text after '.', '!' or '?' when followed by whitespace
func SplitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if !isTerminal(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Bullets picks up to maxBullets informative sentences from the start of the article.
// The bullets never exceed maxChars in total; title is returned when nothing qualifies.
func Bullets(article, title string, maxBullets, maxChars int) []string {
	if maxBullets <= 0 {
		maxBullets = DefaultMaxBullets
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	sentences := SplitSentences(article)
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}

	var picked []string
	for _, s := range sentences {
		s = clean(s)
		if n := utf8.RuneCountInString(s); n > minSentenceLen && n < maxSentenceLen && !isBoilerplate(s) {
			picked = append(picked, s)
		}
		if len(picked) >= maxBullets {
			break
		}
	}
	if len(picked) == 0 {
		return []string{title}
	}
	return capChars(picked, maxChars)
}

func isBoilerplate(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// capChars keeps leading bullets while their combined length fits into maxChars
func capChars(bullets []string, maxChars int) []string {
	var (
		out   []string
		total int
	)
	for _, b := range bullets {
		n := utf8.RuneCountInString(b)
		if total+n > maxChars {
			break
		}
		out = append(out, b)
		total += n
	}
	return out
}

// parseListing reads model output with one bullet per line, dropping list markers
func parseListing(out string, maxBullets int) []string {
	var bullets []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•· ")
		line = trimNumbering(line)
		line = clean(line)
		if line == "" {
			continue
		}
		bullets = append(bullets, line)
		if len(bullets) >= maxBullets {
			break
		}
	}
	return bullets
}

func trimNumbering(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
