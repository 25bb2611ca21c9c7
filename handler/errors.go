package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractlens/model"
)

var kindStatus = map[model.ErrorKind]int{
	model.KindValidation:     http.StatusBadRequest,
	model.KindSizeLimit:      http.StatusRequestEntityTooLarge,
	model.KindNotFound:       http.StatusNotFound,
	model.KindNotReady:       http.StatusConflict,
	model.KindCanceled:       http.StatusConflict,
	model.KindExtraction:     http.StatusUnprocessableEntity,
	model.KindClassification: http.StatusInternalServerError,
	model.KindAggregation:    http.StatusInternalServerError,
}

// writeError maps err onto an HTTP status and a stable JSON body. Errors
// without a kind are logged through gin and reported as internal.
func writeError(c *gin.Context, err error) {
	var ae *model.AnalysisError
	if !errors.As(err, &ae) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	status, ok := kindStatus[ae.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": ae.Message, "kind": ae.Kind})
}
