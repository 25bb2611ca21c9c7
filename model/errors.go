package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies analysis failures.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindSizeLimit      ErrorKind = "size_limit"
	KindExtraction     ErrorKind = "extraction"
	KindClassification ErrorKind = "classification"
	KindAggregation    ErrorKind = "aggregation"
	KindCanceled       ErrorKind = "canceled"
	KindNotReady       ErrorKind = "not_ready"
	KindNotFound       ErrorKind = "not_found"
	KindInterrupted    ErrorKind = "interrupted"
)

// Pipeline stage names used in errors and logs.
const (
	StageIngestion   = "ingestion"
	StageAnalysis    = "analysis"
	StageAggregation = "aggregation"
)

// AnalysisError is the error type surfaced to callers of the pipeline.
// Message is stable and safe to display.
type AnalysisError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	prefix := string(e.Kind)
	if e.Stage != "" {
		prefix = e.Stage + ": " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewError builds an AnalysisError.
func NewError(kind ErrorKind, stage, msg string, cause error) *AnalysisError {
	return &AnalysisError{Kind: kind, Stage: stage, Message: msg, Err: cause}
}

// ValidationError reports an unsupported type or empty file.
func ValidationError(msg string) *AnalysisError {
	return NewError(KindValidation, StageIngestion, msg, nil)
}

// SizeLimitError reports a document over the configured ceiling.
func SizeLimitError(size, limit int64) *AnalysisError {
	return NewError(KindSizeLimit, StageIngestion,
		fmt.Sprintf("file is %d bytes, limit is %d bytes", size, limit), nil)
}

// ExtractionError reports a corrupt or unreadable document.
func ExtractionError(msg string, cause error) *AnalysisError {
	return NewError(KindExtraction, StageIngestion, msg, cause)
}

// ClassificationError reports a clause that could not be classified.
func ClassificationError(msg string, cause error) *AnalysisError {
	return NewError(KindClassification, StageAnalysis, msg, cause)
}

// AggregationError reports invalid input to the aggregation stage.
func AggregationError(msg string) *AnalysisError {
	return NewError(KindAggregation, StageAggregation, msg, nil)
}

// KindOf extracts the ErrorKind from err, or "" when err is not an AnalysisError.
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// DisplayMessage returns the user-facing message for err.
func DisplayMessage(err error) string {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Message
	}
	if err == nil {
		return ""
	}
	return "internal error"
}

// NotFoundError reports an unknown analysis ID.
func NotFoundError() *AnalysisError {
	return NewError(KindNotFound, "", "analysis not found", nil)
}

// NotReadyError reports a result requested before the analysis completed.
func NotReadyError(status Status, detail string) *AnalysisError {
	msg := "analysis is " + string(status)
	if detail != "" {
		msg += ": " + detail
	}
	return NewError(KindNotReady, "", msg, nil)
}

// CanceledError reports an analysis stopped by its caller.
func CanceledError(stage string) *AnalysisError {
	return NewError(KindCanceled, stage, "analysis was canceled", nil)
}

// InterruptedError marks an analysis that was still running when the process
// stopped. It is never resumed.
func InterruptedError() *AnalysisError {
	return NewError(KindInterrupted, "", "analysis was interrupted by a server restart", nil)
}
