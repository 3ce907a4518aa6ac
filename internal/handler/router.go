package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logsage/logsage/internal/middleware"
)

type RouterDeps struct {
	Files     *FileHandler
	Logs      *LogHandler
	Anomalies *AnomalyHandler
	Search    *SearchHandler
	Chat      *ChatHandler
	Summaries *SummaryHandler
	Status    *StatusHandler

	// AIRateWindow throttles the provider-backed endpoints; zero disables it.
	AIRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/logs/upload", deps.Files.Upload)
	api.GET("/logs", deps.Files.List)
	api.GET("/logs/:id", deps.Files.Get)
	api.DELETE("/logs/:id", deps.Files.Delete)
	api.POST("/logs/:id/index", deps.Files.Index)

	api.GET("/logs/:id/entries", deps.Logs.Entries)

	api.POST("/logs/:id/anomalies", deps.Anomalies.Detect)
	api.GET("/logs/:id/anomalies", deps.Anomalies.List)

	ai := api.Group("", middleware.RateLimit(deps.AIRateWindow))
	ai.POST("/logs/:id/search", deps.Search.Search)
	ai.POST("/logs/:id/query", deps.Chat.Query)
	ai.POST("/logs/:id/chat", deps.Chat.Chat)
	ai.POST("/logs/:id/summary", deps.Summaries.Summarize)

	api.GET("/logs/:id/chat", deps.Chat.Conversations)
	api.GET("/logs/:id/chat/:conversation_id", deps.Chat.History)
	api.DELETE("/logs/:id/chat/:conversation_id", deps.Chat.Clear)

	api.GET("/status", deps.Status.Status)
}
