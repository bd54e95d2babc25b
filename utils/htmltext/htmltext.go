package htmltext

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Strip removes HTML tags from a string, returning the visible text with
// whitespace collapsed. Article content is markdown that may embed raw HTML;
// excerpts and search previews should show neither.
func Strip(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapse(s)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}

	return collapse(b.String())
}

// Excerpt returns the stripped text truncated to max runes, cut at a word
// boundary with an ellipsis appended.
func Excerpt(s string, max int) string {
	text := Strip(s)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	cut := string(runes[:max])
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:") + "..."
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
