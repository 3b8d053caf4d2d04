package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html/charset"

	"knowledge-ingest-platform/internal/logger"
)

// LocalStrategy reads an item from disk and extracts plain text. Common
// document formats get format-aware extraction; everything else is decoded
// as UTF-8 text.
type LocalStrategy struct {
	timeout time.Duration
}

func NewLocalStrategy(timeout time.Duration) *LocalStrategy {
	return &LocalStrategy{timeout: timeout}
}

func (s *LocalStrategy) Name() string { return "local-read" }

func (s *LocalStrategy) Timeout() time.Duration { return s.timeout }

func (s *LocalStrategy) Acquire(ctx context.Context, identity string, prefetched []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := prefetched
	if content == nil {
		var err error
		content, err = os.ReadFile(identity)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", identity, err)
		}
	}

	title := filepath.Base(identity)

	var text string
	var err error
	switch strings.ToLower(filepath.Ext(identity)) {
	case ".pdf":
		text, err = extractPDFText(content)
	case ".xlsx":
		text, err = extractXLSXText(content)
	default:
		text, err = decodeText(content)
	}
	if err != nil {
		return nil, err
	}

	return &Result{Text: text, Title: title}, nil
}

// extractPDFText extracts plain text from PDF bytes
func extractPDFText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract PDF page text", "page", i, "error", err)
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if len(extracted) == 0 {
		return "", fmt.Errorf("no text extracted from PDF")
	}
	return extracted, nil
}

// extractXLSXText flattens spreadsheet rows into tab-separated lines,
// one sheet per block.
func extractXLSXText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var textBuilder strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Warn("Failed to read sheet rows", "sheet", sheet, "error", err)
			continue
		}
		textBuilder.WriteString(sheet)
		textBuilder.WriteString("\n")
		for _, row := range rows {
			textBuilder.WriteString(strings.Join(row, "\t"))
			textBuilder.WriteString("\n")
		}
		textBuilder.WriteString("\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if len(extracted) == 0 {
		return "", fmt.Errorf("no text extracted from spreadsheet")
	}
	return extracted, nil
}

// decodeText converts arbitrary text bytes to UTF-8
func decodeText(content []byte) (string, error) {
	utf8Reader, err := charset.NewReader(bytes.NewReader(content), "")
	if err != nil {
		// Charset detection failed; assume the bytes are already UTF-8.
		return string(content), nil
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil {
		return string(content), nil
	}
	return string(decoded), nil
}
