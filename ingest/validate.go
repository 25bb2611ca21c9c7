// Package ingest validates uploaded contracts and turns them into page-tagged text.
package ingest

import (
	"fmt"
	"strings"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/model"
)

// Validate checks an upload before any extraction work starts and resolves its
// format. The declared media type wins when it is recognised; otherwise the
// file extension decides.
func Validate(fileName, mediaType string, size int64, cfg config.IngestConfig) (model.Format, error) {
	if size <= 0 {
		return "", model.ValidationError("file is empty")
	}

	format, ok := model.FormatFromMediaType(mediaType)
	if !ok {
		format, ok = model.FormatFromFileName(fileName)
	}
	if !ok || !cfg.Allows(format) {
		return "", model.ValidationError(fmt.Sprintf("unsupported file type, allowed: %s", allowedList(cfg)))
	}

	if cfg.MaxBytes > 0 && size > cfg.MaxBytes {
		return "", model.SizeLimitError(size, cfg.MaxBytes)
	}
	return format, nil
}

func allowedList(cfg config.IngestConfig) string {
	names := make([]string, len(cfg.AllowedFormats))
	for i, f := range cfg.AllowedFormats {
		names[i] = strings.ToUpper(string(f))
	}
	return strings.Join(names, ", ")
}
