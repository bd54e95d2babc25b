package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/supportal/api/model"
	"github.com/supportal/api/utils/htmltext"
)

// ArticleImporter turns uploaded PDF documents into draft articles
type ArticleImporter struct {
	articles *ArticleService
}

// NewArticleImporter creates a new importer
func NewArticleImporter(articles *ArticleService) *ArticleImporter {
	return &ArticleImporter{articles: articles}
}

// ImportPDF extracts the text of a PDF and creates a draft article from it.
// The first non-empty line becomes the title unless one is given. The draft
// goes through the normal review-and-publish flow afterwards.
func (imp *ArticleImporter) ImportPDF(ctx context.Context, title string, content []byte, categoryID *uint) (*ImportResult, error) {
	text, err := ExtractPDFText(content)
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = firstLine(text)
	}

	article, err := imp.articles.Create(ctx, CreateArticleInput{
		Title:            title,
		Content:          text,
		ShortDescription: htmltext.Excerpt(text, 490),
		CategoryID:       categoryID,
	})
	if err != nil {
		return nil, err
	}

	return &ImportResult{
		Article:    article,
		Characters: len(text),
	}, nil
}

// ImportResult reports what an import produced
type ImportResult struct {
	Article    *model.Article `json:"article"`
	Characters int            `json:"characters"`
}

// sanitizePDF truncates trailing garbage after the last %%EOF marker. PDFs
// downloaded from the web often carry appended HTML or tracking data that
// trips the parser.
func sanitizePDF(content []byte) []byte {
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return content
	}

	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)
	if lastEOF == -1 {
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}

	if len(content)-pdfEnd > 10 {
		log.Printf("PDF import: removing %d bytes of trailing garbage after %%EOF", len(content)-pdfEnd)
		return content[:pdfEnd]
	}
	return content
}

// ExtractPDFText extracts plain text from PDF bytes, preserving line
// structure where the document allows it.
func ExtractPDFText(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	var textBuilder strings.Builder

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			// Fallback to plain text when row extraction fails
			text, plainErr := page.GetPlainText(nil)
			if plainErr != nil {
				log.Printf("PDF import: text extraction failed for page %d: %v", i, plainErr)
				continue
			}
			textBuilder.WriteString(text)
			textBuilder.WriteString("\n")
			continue
		}

		for _, row := range rows {
			var rowText strings.Builder
			for _, word := range row.Content {
				rowText.WriteString(word.S)
			}
			line := strings.TrimSpace(rowText.String())
			if line != "" {
				textBuilder.WriteString(line)
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if len(extracted) < 50 {
		return "", fmt.Errorf("insufficient text extracted from PDF (%d characters), document may be scanned and need OCR", len(extracted))
	}

	return extracted, nil
}

// firstLine returns the first non-empty line, capped for use as a title
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			runes := []rune(line)
			if len(runes) > 255 {
				return string(runes[:255])
			}
			return line
		}
	}
	return "Imported document"
}
