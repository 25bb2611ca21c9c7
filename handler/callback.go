package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractlens/pkg/logger"
	"github.com/AnTengye/contractlens/service"
)

// CallbackReceiver is the part of the MinerU service the callback needs.
type CallbackReceiver interface {
	VerifyCallback(checksum, content, uid string) bool
	Deliver(content service.CallbackContent) bool
}

type CallbackHandler struct {
	receiver CallbackReceiver
	uid      string
}

func NewCallbackHandler(receiver CallbackReceiver, uid string) *CallbackHandler {
	return &CallbackHandler{receiver: receiver, uid: uid}
}

type CallbackRequest struct {
	Checksum string `json:"checksum" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// HandleCallback receives a task notification from MinerU and hands it to the
// remote extraction waiting on the task's data ID.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !h.receiver.VerifyCallback(req.Checksum, req.Content, h.uid) {
		logger.Warn(c.Request.Context(), "mineru callback checksum mismatch")
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid checksum"})
		return
	}

	var content service.CallbackContent
	if err := json.Unmarshal([]byte(req.Content), &content); err != nil || content.DataID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content format"})
		return
	}

	delivered := h.receiver.Deliver(content)
	logger.Info(c.Request.Context(), "mineru callback received",
		"task_id", content.TaskID,
		"data_id", content.DataID,
		"state", content.State,
		"delivered", delivered,
	)

	c.JSON(http.StatusOK, gin.H{"message": "Callback received", "delivered": delivered})
}
