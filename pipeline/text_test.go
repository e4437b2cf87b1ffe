package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dashes", "a\u2013b\u2014c\u2212d", "a-b-c-d"},
		{"quotes", "\u2018it\u2019s\u2019 \u201Cquoted\u201D", `'it's' "quoted"`},
		{"ellipsis", "wait\u2026", "wait..."},
		{"nbsp and spaces", "  a\u00A0\u00A0b \n\t c  ", "a b c"},
		{"empty", "", ""},
		{"plain", "Go 1.24 released", "Go 1.24 released"},
		{"mixed", "AI's \u201Cfuture\u201D \u2014  now", `AI's "future" - now`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShorten(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := Shorten(long, 140)
	if utf8.RuneCountInString(got) != 140 {
		t.Errorf("expected 140 runes, got %d", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "\u2026") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}

	exact := strings.Repeat("b", 140)
	if Shorten(exact, 140) != exact {
		t.Error("text at the limit must stay unchanged")
	}

	// trailing space before the cut is trimmed
	spaced := strings.Repeat("c", 8) + "  " + strings.Repeat("d", 10)
	if got := Shorten(spaced, 10); got != "cccccccc\u2026" {
		t.Errorf("Shorten = %q", got)
	}

	// multibyte input is cut on rune boundaries
	cyr := strings.Repeat("ж", 20)
	got = Shorten(cyr, 5)
	if !utf8.ValidString(got) || got != strings.Repeat("ж", 4)+"\u2026" {
		t.Errorf("Shorten = %q", got)
	}

	if got := Shorten(long, 0); utf8.RuneCountInString(got) != DefaultMaxTitle {
		t.Errorf("zero max should use the default, got %d runes", utf8.RuneCountInString(got))
	}
}

func TestCaption(t *testing.T) {
	got := Caption("Title\u2014x", []string{"one", "two"}, "", "https://e.com/a", "#AI #Dev")
	want := "Title-x\n\n- one\n- two\n\nSource: Tech News\nhttps://e.com/a\n#AI #Dev"
	if got != want {
		t.Errorf("Caption =\n%q\nwant\n%q", got, want)
	}
}
