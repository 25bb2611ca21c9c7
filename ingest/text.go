package ingest

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/AnTengye/contractlens/model"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// TextExtractor reads plain-text contracts. Form feeds separate pages.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(_ context.Context, doc *model.Document) (*model.ExtractedText, error) {
	s, err := decodeText(doc.Content)
	if err != nil {
		return nil, err
	}
	s = normalizeNewlines(s)
	return paginate(s), nil
}

// decodeText handles UTF-8 (with or without BOM), UTF-16 with a BOM, and
// falls back to Windows-1252 for legacy exports.
func decodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", eris.Wrap(err, "ingest: decode utf-16")
		}
		return string(out), nil
	case utf8.Valid(data):
		if bytes.IndexByte(data, 0) >= 0 {
			return "", model.ExtractionError("file does not look like a text document", nil)
		}
		return string(bytes.TrimPrefix(data, bomUTF8)), nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", eris.Wrap(err, "ingest: decode windows-1252")
		}
		return string(out), nil
	}
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// paginate splits on form feeds. The form feed itself is replaced by a
// newline so page boundaries still break lines.
func paginate(s string) *model.ExtractedText {
	pages := strings.Split(s, "\f")
	segs := make([]model.Segment, 0, len(pages))
	for i, p := range pages {
		if i < len(pages)-1 {
			p += "\n"
		}
		segs = append(segs, model.Segment{Page: i + 1, Text: p})
	}
	return model.NewExtractedText(segs)
}
