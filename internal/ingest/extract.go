package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/tbourn/go-mentor-backend/internal/search"
)

// Page is one extracted page record. Number is 1-based and only set for
// formats with real page boundaries.
type Page struct {
	Number *int
	Text   string
}

// Extractor pulls page records out of a document's bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) ([]Page, error)
}

// DocconvExtractor extracts DOCX text with docconv, PDFs with pdftotext
// keeping page breaks, and reads plain text directly.
type DocconvExtractor struct {
	UseReadability bool
}

// NewDocconvExtractor returns an extractor.
func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{UseReadability: useReadability}
}

func (e *DocconvExtractor) Extract(ctx context.Context, data []byte, contentType string) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if contentType == TypeText {
		if !utf8.Valid(data) {
			data = bytes.ToValidUTF8(data, nil)
		}
		return []Page{{Text: clean(string(data))}}, nil
	}

	if contentType == TypePDF {
		body, err := pdfToText(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("pdftotext: %w", err)
		}
		return SplitPages(body), nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.UseReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv: %s: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []Page{{Text: clean(res.Body)}}, nil
}

// PDFToTextBin is the poppler binary used for PDFs. docconv runs the same
// tool with -nopgbrk, which drops the form feeds SplitPages relies on.
var PDFToTextBin = "pdftotext"

var pdfToText = func(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "mentor-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, PDFToTextBin, "-q", "-enc", "UTF-8", "-eol", "unix", f.Name(), "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", err
	}
	return stdout.String(), nil
}

// SplitPages splits pdftotext output on form feeds. Page numbers follow the
// original page order, including pages that end up blank.
func SplitPages(body string) []Page {
	parts := strings.Split(body, "\f")
	// pdftotext terminates every page with a form feed.
	if n := len(parts); n > 1 && strings.TrimSpace(parts[n-1]) == "" {
		parts = parts[:n-1]
	}
	out := make([]Page, 0, len(parts))
	for i, p := range parts {
		num := i + 1
		out = append(out, Page{Number: &num, Text: clean(p)})
	}
	return out
}

func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(search.FlattenTables(s))
}
