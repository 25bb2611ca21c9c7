package model

import (
	"iter"
	"path/filepath"
	"strings"
)

// Format is a supported upload format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOC  Format = "doc"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

var formatMediaTypes = map[Format]string{
	FormatPDF:  "application/pdf",
	FormatDOC:  "application/msword",
	FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatTXT:  "text/plain",
}

// MediaType returns the canonical MIME type of the format.
func (f Format) MediaType() string {
	return formatMediaTypes[f]
}

// FormatFromMediaType maps a declared MIME type to a format. Parameters such
// as "; charset=utf-8" are ignored.
func FormatFromMediaType(mediaType string) (Format, bool) {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	for f, m := range formatMediaTypes {
		if m == mt {
			return f, true
		}
	}
	return "", false
}

// FormatFromFileName maps a file extension to a format.
func FormatFromFileName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, true
	case ".doc":
		return FormatDOC, true
	case ".docx":
		return FormatDOCX, true
	case ".txt":
		return FormatTXT, true
	}
	return "", false
}

// Document is an uploaded file awaiting extraction.
type Document struct {
	FileName  string
	MediaType string
	Format    Format
	Content   []byte
}

// Size returns the byte size of the content still held.
func (d *Document) Size() int {
	return len(d.Content)
}

// Release drops the document bytes. Safe to call more than once.
func (d *Document) Release() {
	d.Content = nil
}

// Segment is a run of extracted text with its source location.
type Segment struct {
	Page   int    `json:"page"`
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

// ExtractedText is the ordered, immutable text of a document.
type ExtractedText struct {
	segments []Segment
	length   int
}

// NewExtractedText builds extracted text from page-tagged pieces. Offsets are
// assigned from the concatenation order; empty pieces are dropped.
func NewExtractedText(pieces []Segment) *ExtractedText {
	t := &ExtractedText{segments: make([]Segment, 0, len(pieces))}
	for _, p := range pieces {
		if p.Text == "" {
			continue
		}
		t.segments = append(t.segments, Segment{Page: p.Page, Offset: t.length, Text: p.Text})
		t.length += len(p.Text)
	}
	return t
}

// All yields the segments in reading order. The sequence can be ranged over
// any number of times.
func (t *ExtractedText) All() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		for _, s := range t.segments {
			if !yield(s) {
				return
			}
		}
	}
}

// Len returns the total byte length of the text.
func (t *ExtractedText) Len() int {
	return t.length
}

// NumSegments returns the number of segments.
func (t *ExtractedText) NumSegments() int {
	return len(t.segments)
}

// String concatenates all segments.
func (t *ExtractedText) String() string {
	var b strings.Builder
	b.Grow(t.length)
	for _, s := range t.segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Blank reports whether the text holds nothing but whitespace.
func (t *ExtractedText) Blank() bool {
	for _, s := range t.segments {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

// PagesFor returns the distinct pages that overlap span, in order.
func (t *ExtractedText) PagesFor(span Span) []int {
	var pages []int
	for _, s := range t.segments {
		end := s.Offset + len(s.Text)
		if end <= span.Start || s.Offset >= span.End {
			continue
		}
		if len(pages) == 0 || pages[len(pages)-1] != s.Page {
			pages = append(pages, s.Page)
		}
	}
	return pages
}
