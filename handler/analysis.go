package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractlens/middleware"
	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pipeline"
	"github.com/AnTengye/contractlens/report"
)

// multipartOverhead is the allowance on top of the document size for the
// multipart envelope.
const multipartOverhead = 1 << 20

type AnalysisHandler struct {
	manager  *pipeline.Manager
	exporter *report.Exporter
	maxBytes int64
}

func NewAnalysisHandler(manager *pipeline.Manager, exporter *report.Exporter, maxBytes int64) *AnalysisHandler {
	return &AnalysisHandler{
		manager:  manager,
		exporter: exporter,
		maxBytes: maxBytes,
	}
}

// AnalysisSummary is the list view of an analysis record.
type AnalysisSummary struct {
	ID        string          `json:"id"`
	FileName  string          `json:"file_name"`
	Status    model.Status    `json:"status"`
	Progress  int             `json:"progress"`
	Score     *int            `json:"overall_risk_score,omitempty"`
	RiskLevel model.RiskLevel `json:"risk_level,omitempty"`
	ErrorKind model.ErrorKind `json:"error_kind,omitempty"`
	ErrorMsg  string          `json:"error_msg,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func summarize(rec *model.AnalysisRecord) AnalysisSummary {
	s := AnalysisSummary{
		ID:        rec.ID,
		FileName:  rec.FileName,
		Status:    rec.Status,
		Progress:  rec.Progress,
		ErrorKind: rec.ErrorKind,
		ErrorMsg:  rec.ErrorMsg,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.Result != nil {
		score := rec.Result.OverallRiskScore
		s.Score = &score
		s.RiskLevel = rec.Result.RiskLevel
	}
	return s
}

// Submit accepts a multipart upload in the "file" field and starts its analysis.
func (h *AnalysisHandler) Submit(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// The upload was cut off, so its real size is unknown.
			writeError(c, model.NewError(model.KindSizeLimit, model.StageIngestion,
				fmt.Sprintf("upload exceeds the %d byte limit", h.maxBytes), nil))
			return
		}
		writeError(c, model.ValidationError("no file provided"))
		return
	}
	defer file.Close()

	if h.maxBytes > 0 && header.Size > h.maxBytes {
		writeError(c, model.SizeLimitError(header.Size, h.maxBytes))
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(c, model.ValidationError("file could not be read"))
		return
	}

	handle, err := h.manager.Submit(c.Request.Context(), pipeline.SubmitRequest{
		Tenant:    tenant,
		FileName:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Content:   content,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrShuttingDown) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is shutting down"})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, handle)
}

// List returns all analyses for the current tenant
func (h *AnalysisHandler) List(c *gin.Context) {
	recs, err := h.manager.List(c.Request.Context(), middleware.GetTenant(c))
	if err != nil {
		writeError(c, err)
		return
	}

	result := make([]AnalysisSummary, len(recs))
	for i, rec := range recs {
		result[i] = summarize(rec)
	}
	c.JSON(http.StatusOK, gin.H{"analyses": result})
}

// load fetches the record named by the :id parameter. Records of other
// tenants are reported as not found.
func (h *AnalysisHandler) load(c *gin.Context) (*model.AnalysisRecord, bool) {
	rec, err := h.manager.Get(c.Request.Context(), c.Param("id"))
	if err == nil && rec.Tenant != middleware.GetTenant(c) {
		err = model.NotFoundError()
	}
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return rec, true
}

// Get returns a single analysis with its result when complete
func (h *AnalysisHandler) Get(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Progress returns the status and progress of an analysis
func (h *AnalysisHandler) Progress(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         rec.ID,
		"status":     rec.Status,
		"progress":   rec.Progress,
		"error_kind": rec.ErrorKind,
		"error_msg":  rec.ErrorMsg,
	})
}

// Result returns the finished result, or 409 while it is not ready.
func (h *AnalysisHandler) Result(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	res, err := h.manager.Result(c.Request.Context(), rec.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Cancel requests cancellation and returns the analysis state afterwards.
func (h *AnalysisHandler) Cancel(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.manager.Cancel(c.Request.Context(), rec.ID); err != nil {
		writeError(c, err)
		return
	}
	rec, err := h.manager.Get(c.Request.Context(), rec.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(rec))
}

// Delete deletes an analysis
func (h *AnalysisHandler) Delete(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	if _, err := h.manager.Delete(c.Request.Context(), rec.ID); err != nil {
		writeError(c, err)
		return
	}
	if rec.Result != nil {
		h.exporter.Forget(rec.Result.ID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Analysis deleted"})
}

// Export downloads the result as ?format=xlsx or json.
func (h *AnalysisHandler) Export(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		writeError(c, err)
		return
	}
	rec, ok := h.load(c)
	if !ok {
		return
	}
	res, err := h.manager.Result(c.Request.Context(), rec.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := h.exporter.Export(res, format)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName(rec.FileName)))
	c.Data(http.StatusOK, format.ContentType(), data)
}
