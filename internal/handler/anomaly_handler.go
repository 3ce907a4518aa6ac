package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/logsage/logsage/internal/pkg/errcode"
	"github.com/logsage/logsage/internal/pkg/response"
	"github.com/logsage/logsage/internal/service"
)

type AnomalyHandler struct {
	anomalies *service.AnomalyService
}

func NewAnomalyHandler(anomalies *service.AnomalyService) *AnomalyHandler {
	return &AnomalyHandler{anomalies: anomalies}
}

type detectRequest struct {
	Quick   string `json:"quick"`
	StartTs int64  `json:"start_ts"`
	EndTs   int64  `json:"end_ts"`
}

func (h *AnomalyHandler) Detect(c *gin.Context) {
	var req detectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid request body")
			return
		}
	}
	anomalies, err := h.anomalies.Detect(c.Request.Context(), fileID(c), req.Quick, req.StartTs, req.EndTs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, anomalies, int64(len(anomalies)))
}

func (h *AnomalyHandler) List(c *gin.Context) {
	anomalies, err := h.anomalies.List(c.Request.Context(), fileID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, anomalies, int64(len(anomalies)))
}
