package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/AnTengye/contractlens/model"
)

// Extractor turns document bytes into extracted text.
type Extractor interface {
	Extract(ctx context.Context, doc *model.Document) (*model.ExtractedText, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, doc *model.Document) (*model.ExtractedText, error)

func (f ExtractorFunc) Extract(ctx context.Context, doc *model.Document) (*model.ExtractedText, error) {
	return f(ctx, doc)
}

// Registry dispatches documents to the extractor registered for their format.
type Registry struct {
	mu         sync.RWMutex
	extractors map[model.Format]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[model.Format]Extractor)}
}

// NewDefaultRegistry registers the local extractors. remote handles legacy
// DOC files and scanned PDFs; it may be nil when remote extraction is not
// configured.
func NewDefaultRegistry(remote Extractor) *Registry {
	r := NewRegistry()
	r.Register(model.FormatTXT, NewTextExtractor())
	r.Register(model.FormatPDF, NewPDFExtractor(remote))
	r.Register(model.FormatDOCX, NewDOCXExtractor())
	if remote != nil {
		r.Register(model.FormatDOC, remote)
	}
	return r
}

// Register adds or replaces the extractor for a format.
func (r *Registry) Register(f model.Format, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[f] = e
}

// Get returns the extractor for a format.
func (r *Registry) Get(f model.Format) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[f]
	return e, ok
}

// Extract runs the matching extractor. Every failure comes back as an
// extraction AnalysisError, and text without any content is rejected.
func (r *Registry) Extract(ctx context.Context, doc *model.Document) (*model.ExtractedText, error) {
	e, ok := r.Get(doc.Format)
	if !ok {
		return nil, model.ExtractionError("no extractor available for "+string(doc.Format)+" documents", nil)
	}

	text, err := e.Extract(ctx, doc)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var ae *model.AnalysisError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, model.ExtractionError("document could not be read", err)
	}
	if text == nil || text.Blank() {
		return nil, model.ExtractionError("document contains no extractable text", nil)
	}
	return text, nil
}
