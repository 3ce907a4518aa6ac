package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/logsage/logsage/internal/pkg/errcode"
	"github.com/logsage/logsage/internal/pkg/response"
	"github.com/logsage/logsage/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type queryRequest struct {
	Query            string   `json:"query"`
	TopK             int      `json:"top_k"`
	Threshold        *float64 `json:"similarity_threshold"`
	MaxContextLength int      `json:"max_context_length"`
}

func (h *ChatHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	threshold := -1.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	answer, err := h.chat.Query(c.Request.Context(), fileID(c), req.Query, req.TopK, threshold, req.MaxContextLength)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	PromptType     string `json:"prompt_type"`
	UseRAG         *bool  `json:"use_rag"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}
	answer, err := h.chat.Chat(c.Request.Context(), fileID(c), req.ConversationID, req.Message, req.PromptType, useRAG)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

func (h *ChatHandler) Conversations(c *gin.Context) {
	list, err := h.chat.ListConversations(c.Request.Context(), fileID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, list, int64(len(list)))
}

func (h *ChatHandler) History(c *gin.Context) {
	turns, err := h.chat.History(c.Request.Context(), fileID(c), c.Param("conversation_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.List(c, turns, int64(len(turns)))
}

func (h *ChatHandler) Clear(c *gin.Context) {
	if err := h.chat.ClearConversation(c.Request.Context(), fileID(c), c.Param("conversation_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cleared": true})
}
