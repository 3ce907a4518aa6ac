package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/logsage/logsage/internal/pkg/errcode"
	"github.com/logsage/logsage/internal/pkg/response"
	"github.com/logsage/logsage/internal/service"
)

type SummaryHandler struct {
	summaries *service.SummaryService
}

func NewSummaryHandler(summaries *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

type summaryRequest struct {
	Quick   string `json:"quick"`
	StartTs int64  `json:"start_ts"`
	EndTs   int64  `json:"end_ts"`
}

func (h *SummaryHandler) Summarize(c *gin.Context) {
	var req summaryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid request body")
			return
		}
	}
	summary, err := h.summaries.Summarize(c.Request.Context(), fileID(c), req.Quick, req.StartTs, req.EndTs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, summary)
}
