package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one appended message in a per-file chat conversation.
// History is append-only; it shrinks only through an explicit clear.
type ConversationTurn struct {
	ID             int64  `json:"id"`
	FileID         string `json:"file_id"`
	ConversationID string `json:"conversation_id"`
	TurnIndex      int    `json:"turn_index"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	UsedFallback   bool   `json:"used_fallback"`
	Ctime          int64  `json:"ctime"`
}
