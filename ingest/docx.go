package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/AnTengye/contractlens/model"
)

const (
	docxBodyPart = "word/document.xml"

	// The uncompressed body may be at most docxExpansionRatio times the
	// size of the archive, and never less than docxMinBodyLimit.
	docxExpansionRatio = 100
	docxMinBodyLimit   = 8 << 20
)

var errDOCXBodyTooLarge = errors.New("docx: body exceeds expansion limit")

// DOCXExtractor reads the main document part of an Office Open XML file.
// Paragraphs become lines; explicit page breaks start a new page. Drawings
// and embedded objects carry no text and are skipped.
type DOCXExtractor struct{}

func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

func (e *DOCXExtractor) Extract(ctx context.Context, doc *model.Document) (*model.ExtractedText, error) {
	zr, err := zip.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return nil, model.ExtractionError("DOCX is corrupt or unreadable", eris.Wrap(err, "docx: open zip"))
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return nil, model.ExtractionError("DOCX has no document body", nil)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, model.ExtractionError("DOCX is corrupt or unreadable", eris.Wrap(err, "docx: open body"))
	}
	defer rc.Close()

	limit := max(int64(len(doc.Content))*docxExpansionRatio, docxMinBodyLimit)
	segs, err := parseDocumentXML(ctx, &boundedReader{r: rc, left: limit + 1})
	if errors.Is(err, errDOCXBodyTooLarge) {
		return nil, model.ExtractionError("DOCX body is too large to extract", eris.Wrapf(err, "docx: limit %d bytes", limit))
	}
	if err != nil {
		return nil, err
	}
	return model.NewExtractedText(segs), nil
}

// boundedReader fails with errDOCXBodyTooLarge once left bytes have been read.
type boundedReader struct {
	r    io.Reader
	left int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if int64(len(p)) > b.left {
		p = p[:b.left]
	}
	n, err := b.r.Read(p)
	b.left -= int64(n)
	if b.left <= 0 {
		return n, errDOCXBodyTooLarge
	}
	return n, err
}

func parseDocumentXML(ctx context.Context, r io.Reader) ([]model.Segment, error) {
	dec := xml.NewDecoder(r)

	var (
		segs   []model.Segment
		page   = 1
		cur    strings.Builder
		inText bool
		// Run depth. w:tab also defines tab stops inside w:pPr, which is
		// not text.
		inRun int
	)
	flushPage := func() {
		segs = append(segs, model.Segment{Page: page, Text: cur.String()})
		cur.Reset()
		page++
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if errors.Is(err, errDOCXBodyTooLarge) {
			return nil, err
		}
		if err != nil {
			return nil, model.ExtractionError("DOCX body is malformed", eris.Wrap(err, "docx: parse body"))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun++
			case "t":
				inText = true
			case "tab":
				if inRun > 0 {
					cur.WriteByte('\t')
				}
			case "cr":
				cur.WriteByte('\n')
			case "br":
				if attrValue(t, "type") == "page" {
					cur.WriteByte('\n')
					flushPage()
				} else {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun--
			case "t":
				inText = false
			case "p":
				cur.WriteByte('\n')
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	segs = append(segs, model.Segment{Page: page, Text: cur.String()})
	return segs, nil
}

func attrValue(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
