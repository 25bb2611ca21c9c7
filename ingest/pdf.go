package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pkg/logger"
)

// PDFExtractor extracts embedded text page by page. PDFs without any text
// layer are handed to the fallback extractor when one is configured.
type PDFExtractor struct {
	fallback Extractor
}

func NewPDFExtractor(fallback Extractor) *PDFExtractor {
	return &PDFExtractor{fallback: fallback}
}

func (e *PDFExtractor) Extract(ctx context.Context, doc *model.Document) (text *model.ExtractedText, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = nil, model.ExtractionError("PDF is corrupt or unreadable", fmt.Errorf("pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return nil, model.ExtractionError("PDF is corrupt or unreadable", eris.Wrap(err, "pdf: open"))
	}

	numPages := reader.NumPage()
	segs := make([]model.Segment, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			logger.Debug(ctx, "pdf page skipped", "page", i, "error", err)
			continue
		}
		if content == "" {
			continue
		}
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		segs = append(segs, model.Segment{Page: i, Text: content})
	}

	text = model.NewExtractedText(segs)
	if !text.Blank() {
		return text, nil
	}
	if e.fallback != nil {
		logger.Info(ctx, "pdf has no text layer, using remote extraction", "file", doc.FileName, "pages", numPages)
		return e.fallback.Extract(ctx, doc)
	}
	return nil, model.ExtractionError(
		fmt.Sprintf("PDF with %d pages has no text layer; scanned documents need remote extraction", numPages), nil)
}
