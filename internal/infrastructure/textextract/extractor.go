package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
	"policyguard/internal/ports"
)

// Extractor reads PDF policies page by page and treats any other upload as
// UTF-8 text.
type Extractor struct{}

var _ ports.TextExtractor = (*Extractor)(nil)

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractText(ctx context.Context, fileName string, content []byte) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	var (
		text string
		err  error
	)
	if isPDF(fileName, content) {
		text, err = extractPDF(content)
	} else {
		text, err = extractPlain(content)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %q", compliance.ErrEmptyPolicy, fileName)
	}
	return text, nil
}

func isPDF(fileName string, content []byte) bool {
	return strings.EqualFold(filepath.Ext(fileName), ".pdf") || bytes.HasPrefix(content, []byte("%PDF-"))
}

func extractPDF(content []byte) (text string, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if recovered := recover(); recovered != nil {
			text = ""
			err = fmt.Errorf("%w: %v", compliance.ErrUnreadableDocument, recovered)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", compliance.ErrUnreadableDocument, err)
	}

	parts := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", compliance.ErrUnreadableDocument, i, err)
		}
		if trimmed := strings.TrimSpace(pageText); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: document is not valid utf-8 text", compliance.ErrUnreadableDocument)
	}
	return string(content), nil
}
