package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logsage/logsage/internal/ai"
	"github.com/logsage/logsage/internal/pkg/response"
)

type StatusHandler struct {
	embedder    ai.IEmbedder
	generator   ai.IGenerator
	vectorStore string
	startedAt   time.Time
}

func NewStatusHandler(embedder ai.IEmbedder, generator ai.IGenerator, vectorStore string) *StatusHandler {
	return &StatusHandler{
		embedder:    embedder,
		generator:   generator,
		vectorStore: vectorStore,
		startedAt:   time.Now(),
	}
}

type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	EmbedModel    string `json:"embed_model"`
	EmbedMode     string `json:"embed_mode"`
	ChatModel     string `json:"chat_model"`
	ChatMode      string `json:"chat_mode"`
	VectorStore   string `json:"vector_store"`
}

func (h *StatusHandler) Status(c *gin.Context) {
	response.Success(c, statusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		EmbedModel:    h.embedder.ModelName(),
		EmbedMode:     modeName(h.embedder.Mode()),
		ChatModel:     h.generator.ModelName(),
		ChatMode:      modeName(h.generator.Mode()),
		VectorStore:   h.vectorStore,
	})
}

func modeName(m ai.Mode) string {
	if m == ai.ModeDemo {
		return "demo"
	}
	return "real"
}
