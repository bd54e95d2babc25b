package htmltext

import (
	"strings"
	"testing"
)

func TestStrip(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"plain text", "plain text"},
		{"<div>a</div><div>b</div>", "a b"},
		{"line\n\n\nbreaks   and    spaces", "line breaks and spaces"},
	}

	for _, c := range cases {
		if got := Strip(c.in); got != c.want {
			t.Errorf("Strip(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExcerptWordBoundary(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"

	got := Excerpt(text, 20)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated excerpt should end with ellipsis: %q", got)
	}
	if strings.Contains(got, "jumps") {
		t.Errorf("excerpt too long: %q", got)
	}

	// Short input passes through untouched
	if got := Excerpt("short", 20); got != "short" {
		t.Errorf("Excerpt(short) = %q", got)
	}
}
