package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnTengye/contractlens/model"
)

func staticText(s string) ExtractorFunc {
	return func(context.Context, *model.Document) (*model.ExtractedText, error) {
		return model.NewExtractedText([]model.Segment{{Page: 1, Text: s}}), nil
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(nil)
	for _, f := range []model.Format{model.FormatTXT, model.FormatPDF, model.FormatDOCX} {
		_, ok := r.Get(f)
		assert.True(t, ok, f)
	}
	_, ok := r.Get(model.FormatDOC)
	assert.False(t, ok, "doc needs remote extraction")

	r = NewDefaultRegistry(staticText("x"))
	_, ok = r.Get(model.FormatDOC)
	assert.True(t, ok)
}

func TestRegistryExtract(t *testing.T) {
	r := NewRegistry()
	r.Register(model.FormatTXT, staticText("hello"))

	text, err := r.Extract(context.Background(), &model.Document{Format: model.FormatTXT})
	require.NoError(t, err)
	assert.Equal(t, "hello", text.String())
}

func TestRegistryExtractErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(model.FormatTXT, staticText("  \n\t "))
	r.Register(model.FormatDOCX, ExtractorFunc(func(context.Context, *model.Document) (*model.ExtractedText, error) {
		return nil, errors.New("boom")
	}))
	r.Register(model.FormatPDF, ExtractorFunc(func(ctx context.Context, _ *model.Document) (*model.ExtractedText, error) {
		return nil, ctx.Err()
	}))

	_, err := r.Extract(context.Background(), &model.Document{Format: model.FormatTXT})
	assert.True(t, model.IsKind(err, model.KindExtraction), "blank text")

	_, err = r.Extract(context.Background(), &model.Document{Format: model.FormatDOCX})
	assert.True(t, model.IsKind(err, model.KindExtraction), "plain error is wrapped")

	_, err = r.Extract(context.Background(), &model.Document{Format: model.FormatDOC})
	assert.True(t, model.IsKind(err, model.KindExtraction), "no extractor")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Extract(ctx, &model.Document{Format: model.FormatPDF})
	assert.ErrorIs(t, err, context.Canceled)
}
