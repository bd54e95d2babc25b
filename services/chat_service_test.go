package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDeriveTitleTruncation(t *testing.T) {
	long := strings.Repeat("a", 80)
	title := deriveTitle(long)
	if len([]rune(title)) != conversationTitleLen {
		t.Errorf("title length = %d, want %d", len([]rune(title)), conversationTitleLen)
	}

	short := "Why is my invoice wrong?"
	if got := deriveTitle(short); got != short {
		t.Errorf("short message title = %q, want %q", got, short)
	}

	if got := deriveTitle("   "); got != "New conversation" {
		t.Errorf("blank message title = %q, want fallback", got)
	}
}

func TestBuildPromptCapsArticleContext(t *testing.T) {
	// "z" appears nowhere in the prompt template, so counting it counts
	// only article content
	longContent := strings.Repeat("z", contextCharsPerArticle+500)
	results := []SearchResult{
		{Title: "Long Article", Content: longContent},
		{Title: "Short Article", Content: "short"},
	}

	prompt := buildPrompt("question?", results)

	if strings.Count(prompt, "z") != contextCharsPerArticle {
		t.Errorf("article context not capped: got %d chars of content", strings.Count(prompt, "z"))
	}
	if !strings.Contains(prompt, "Article: Short Article\nshort") {
		t.Error("short article content missing from prompt")
	}
	if !strings.HasSuffix(prompt, "Question: question?") {
		t.Error("prompt does not end with the question")
	}
}

func TestBuildPromptTruncatesOnRunes(t *testing.T) {
	multibyte := strings.Repeat("é", contextCharsPerArticle+10)
	results := []SearchResult{{Title: "Accents", Content: multibyte}}

	prompt := buildPrompt("question?", results)

	if !utf8.ValidString(prompt) {
		t.Fatal("truncation split a multi-byte character")
	}
	if got := strings.Count(prompt, "é"); got != contextCharsPerArticle {
		t.Errorf("got %d runes of content, want %d", got, contextCharsPerArticle)
	}
}

func TestFormatSourcesCapped(t *testing.T) {
	results := []SearchResult{
		{Title: "One", Slug: "one"},
		{Title: "Two", Slug: "two"},
		{Title: "Three", Slug: "three"},
		{Title: "Four", Slug: "four"},
		{Title: "Five", Slug: "five"},
	}

	section := formatSources(results)

	if got := strings.Count(section, "/kb/"); got != maxSourceLinks {
		t.Errorf("sources section has %d links, want %d", got, maxSourceLinks)
	}
	if strings.Contains(section, "/kb/four") {
		t.Error("fourth source leaked into the sources section")
	}
	if !strings.Contains(section, "[One](/kb/one)") {
		t.Error("markdown link format wrong")
	}
}

func TestBuildSourcesKeepsAllResults(t *testing.T) {
	results := []SearchResult{
		{ID: 1, Title: "One", Slug: "one", Score: f(0.91)},
		{ID: 2, Title: "Two", Slug: "two"},
	}

	sources := buildSources(results)
	if len(sources) != 2 {
		t.Fatalf("expected 2 structured sources, got %d", len(sources))
	}
	if sources[0].ArticleID != 1 || sources[0].Score != 0.91 {
		t.Errorf("source 0 = %+v", sources[0])
	}
	if sources[1].Score != 0 {
		t.Errorf("missing score should map to 0, got %f", sources[1].Score)
	}
}

func TestGenerateAnswerWithoutResults(t *testing.T) {
	svc := &ChatService{}

	answer, sources, tokens := svc.GenerateAnswer(nil, "anything", nil)
	if answer != noResultsMessage {
		t.Errorf("empty retrieval answer = %q, want fixed message", answer)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources, got %d", len(sources))
	}
	if tokens != 0 {
		t.Errorf("expected 0 tokens, got %d", tokens)
	}
}

func TestGenerateAnswerWithAIDisabled(t *testing.T) {
	svc := &ChatService{}
	results := []SearchResult{{ID: 1, Title: "One", Slug: "one"}}

	answer, sources, _ := svc.GenerateAnswer(nil, "anything", results)
	if answer != completionFailedMessage {
		t.Errorf("disabled-AI answer = %q, want apology", answer)
	}
	// The apology does not claim nothing was found, so the retrieved
	// sources stay attached
	if len(sources) != 1 {
		t.Errorf("expected 1 source, got %d", len(sources))
	}
}
