// Package extract turns an uploaded document into ordered pages of raw text.
// Pages that yield no text are dropped here so downstream stages only ever
// see non-empty input.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoExtractableText reports a document with no recoverable text, e.g. a
// scanned or image-only PDF. Callers surface it as a user-facing message.
var ErrNoExtractableText = errors.New("no readable text found in document; it may be scanned or image-based")

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Page is one unit of extracted text. Numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// Pages extracts text from the file at path. The returned slice is ordered
// front-to-back and contains only pages with non-empty text.
func Pages(path string) ([]Page, error) {
	var (
		pages []Page
		err   error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err = pdfPages(path)
	case ".txt", ".md":
		pages, err = plainTextPages(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if len(pages) == 0 {
		return nil, ErrNoExtractableText
	}
	return pages, nil
}

func pdfPages(path string) ([]Page, error) {
	f, err := os.Open(path) // #nosec G304 -- path is an application-managed upload path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// plainTextPages treats the whole file as a single page.
func plainTextPages(path string) ([]Page, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is an application-managed upload path
	if err != nil {
		return nil, err
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}
