package services

import (
	"bytes"
	"strings"
	"testing"
)

func TestSanitizePDFTruncatesTrailingGarbage(t *testing.T) {
	pdf := []byte("%PDF-1.4\nsome content\n%%EOF\n")
	garbage := append(append([]byte{}, pdf...), []byte("<html>tracking pixel</html>")...)

	cleaned := sanitizePDF(garbage)
	if !bytes.Equal(cleaned, pdf) {
		t.Errorf("trailing garbage not removed: %q", cleaned)
	}
}

func TestSanitizePDFLeavesNonPDFAlone(t *testing.T) {
	data := []byte("not a pdf at all %%EOF extra")
	if !bytes.Equal(sanitizePDF(data), data) {
		t.Error("non-PDF content should pass through unchanged")
	}
}

func TestSanitizePDFKeepsTrailingNewlines(t *testing.T) {
	pdf := []byte("%PDF-1.4\ncontent\n%%EOF\r\n")
	if !bytes.Equal(sanitizePDF(pdf), pdf) {
		t.Error("trailing newlines after the EOF marker are valid and must be kept")
	}
}

func TestExtractPDFTextRejectsEmpty(t *testing.T) {
	if _, err := ExtractPDFText(nil); err == nil {
		t.Error("expected an error for empty content")
	}
}

func TestFirstLine(t *testing.T) {
	text := "\n\n  Getting Started Guide  \nSecond line"
	if got := firstLine(text); got != "Getting Started Guide" {
		t.Errorf("firstLine = %q", got)
	}

	long := strings.Repeat("t", 300)
	if got := firstLine(long); len([]rune(got)) != 255 {
		t.Errorf("long title not capped at 255, got %d", len([]rune(got)))
	}

	if got := firstLine("   \n  "); got != "Imported document" {
		t.Errorf("blank text fallback = %q", got)
	}
}
