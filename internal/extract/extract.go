// Package extract turns uploaded RFQ and bid documents into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtraction        = errors.New("text extraction failed")
)

// Format is a document type recognised by Text.
type Format int

const (
	FormatUnknown Format = iota
	FormatText
	FormatPDF
)

// Detect resolves the format from the content type first, then the file
// extension, then the leading bytes.
func Detect(name, contentType string, data []byte) Format {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "application/pdf":
		return FormatPDF
	case "text/plain", "text/markdown", "text/x-markdown":
		return FormatText
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".txt", ".md", ".markdown":
		return FormatText
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return FormatPDF
	}
	return FormatUnknown
}

// Text extracts readable text from a document. Text and markdown are
// returned as is. PDFs go through pdfcpu's content extraction.
func Text(name, contentType string, data []byte) (string, error) {
	switch Detect(name, contentType, data) {
	case FormatText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrExtraction, name)
		}
		return string(data), nil
	case FormatPDF:
		return pdfText(name, data)
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, name, contentType)
}

func pdfText(name string, data []byte) (string, error) {
	tempDir, err := os.MkdirTemp("", "rfq-extract-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ExtractContent(bytes.NewReader(data), tempDir, "doc", nil, conf); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtraction, name, err)
	}

	pages, err := filepath.Glob(filepath.Join(tempDir, "*.txt"))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtraction, name, err)
	}
	sort.Slice(pages, func(i, j int) bool { return pageNumber(pages[i]) < pageNumber(pages[j]) })

	var b strings.Builder
	for _, p := range pages {
		raw, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrExtraction, name, err)
		}
		if text := strings.TrimSpace(ContentStreamText(raw)); text != "" {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(text)
		}
	}
	return b.String(), nil
}

// pageNumber reads the trailing page index from an extracted content file
// name such as doc_Content_page_12.txt.
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.LastIndex(base, "_"); i >= 0 {
		if n, err := strconv.Atoi(base[i+1:]); err == nil {
			return n
		}
	}
	return 0
}
