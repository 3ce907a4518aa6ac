package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/logsage/logsage/internal/pkg/errcode"
	"github.com/logsage/logsage/internal/pkg/response"
	"github.com/logsage/logsage/internal/service"
)

type SearchHandler struct {
	retrieval *service.RetrievalService
}

func NewSearchHandler(retrieval *service.RetrievalService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

type searchRequest struct {
	Query     string   `json:"query"`
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"similarity_threshold"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	threshold := -1.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	results, err := h.retrieval.Retrieve(c.Request.Context(), fileID(c), req.Query, req.TopK, threshold)
	if err != nil {
		handleError(c, err)
		return
	}
	if results == nil {
		results = []*service.RetrievedChunk{}
	}
	response.List(c, results, int64(len(results)))
}
