// Package ingest turns learner-supplied material (PDF documents and video
// transcripts) into a plain-text source digest for lesson grounding.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"rsc.io/pdf"
)

// ErrEmptySource is returned when no text could be extracted.
var ErrEmptySource = errors.New("no text found in source")

// ExtractPDF returns the text of the PDF at path, one paragraph per page.
// Pages without text are skipped.
func ExtractPDF(path string) (string, error) {
	doc, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	return extract(doc)
}

// ExtractPDFReader is ExtractPDF for in-memory or uploaded documents.
func ExtractPDFReader(r io.ReaderAt, size int64) (string, error) {
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	return extract(doc)
}

func extract(doc *pdf.Reader) (text string, err error) {
	// rsc.io/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	var pages []string
	for i := 1; i <= doc.NumPage(); i++ {
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		if t := pageText(p.Content().Text); t != "" {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		return "", ErrEmptySource
	}
	return strings.Join(pages, "\n\n"), nil
}

// pageText joins positioned glyphs into lines, inserting a space where
// the gap between glyphs is wider than a fraction of the font size.
func pageText(glyphs []pdf.Text) string {
	var b strings.Builder
	var prev *pdf.Text
	for i := range glyphs {
		g := &glyphs[i]
		if prev != nil {
			size := math.Max(g.FontSize, 1)
			switch {
			case math.Abs(g.Y-prev.Y) > size*0.5:
				b.WriteString("\n")
			case g.X-(prev.X+prev.W) > size*0.15:
				b.WriteString(" ")
			}
		}
		b.WriteString(g.S)
		prev = g
	}
	return strings.TrimSpace(b.String())
}
