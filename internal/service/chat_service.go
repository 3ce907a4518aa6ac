package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/ai"
	"github.com/logsage/logsage/internal/model"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/repo"
)

const (
	PromptLogAnalysis     = "log_analysis"
	PromptGeneral         = "general"
	PromptTroubleshooting = "troubleshooting"
)

// fallbackAnswer replaces a failed completion. A conversation has no error
// state: provider failures become a normal assistant turn flagged
// used_fallback, they never halt the exchange.
const fallbackAnswer = "I apologize, but I am having trouble reaching the language model right now. " +
	"This is an automatic fallback response, not real model output. " +
	"Your message was recorded; please try again in a moment."

var systemPrompts = map[string]string{
	PromptLogAnalysis: "You are a log analysis assistant. Answer strictly from the provided log excerpts. " +
		"Cite the source markers you used. If the excerpts do not contain the answer, say so instead of guessing.",
	PromptGeneral: "You are a helpful assistant answering questions about an uploaded log file. " +
		"Ground every statement in the provided excerpts.",
	PromptTroubleshooting: "You are a troubleshooting assistant. Based on the provided log excerpts, identify " +
		"probable root causes and suggest concrete next steps. Flag uncertainty explicitly.",
}

// Answer is a RAG response: the generated text plus the chunks it was
// grounded on. UsedFallback marks answers produced without a real provider.
type Answer struct {
	Answer         string            `json:"answer"`
	Sources        []*RetrievedChunk `json:"sources"`
	UsedFallback   bool              `json:"used_fallback"`
	ConversationID string            `json:"conversation_id,omitempty"`
}

type ChatService struct {
	retrieval    *RetrievalService
	generator    ai.IGenerator
	turns        *repo.ConversationRepo
	files        *repo.FileRepo
	maxContext   int
	historyTurns int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewChatService(retrieval *RetrievalService, generator ai.IGenerator, turns *repo.ConversationRepo,
	files *repo.FileRepo, maxContext, historyTurns int) *ChatService {
	return &ChatService{
		retrieval:    retrieval,
		generator:    generator,
		turns:        turns,
		files:        files,
		maxContext:   maxContext,
		historyTurns: historyTurns,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Query answers a one-shot question against a file without touching any
// conversation history. A non-positive maxContext uses the configured limit.
func (s *ChatService) Query(ctx context.Context, fileID, question string, topK int, threshold float64, maxContext int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	if maxContext <= 0 {
		maxContext = s.maxContext
	}
	if _, err := s.files.Get(ctx, fileID); err != nil {
		return nil, err
	}
	sources, err := s.retrieval.Retrieve(ctx, fileID, question, topK, threshold)
	if err != nil {
		return nil, err
	}
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: buildSystemPrompt(PromptLogAnalysis, sources, maxContext)},
		{Role: ai.RoleUser, Content: question},
	}
	text, usedFallback := s.complete(ctx, messages)
	return &Answer{
		Answer:       text,
		Sources:      sources,
		UsedFallback: usedFallback,
	}, nil
}

// Chat answers inside a conversation: recent history rides along with the
// retrieved context and both the question and the answer are appended to the
// history. Turns of one conversation are serialized so indices never collide.
// With useRAG off the provider sees only the system prompt and history.
func (s *ChatService) Chat(ctx context.Context, fileID, conversationID, message, promptType string, useRAG bool) (*Answer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, appErr.ErrInvalid
	}
	if _, ok := systemPrompts[promptType]; promptType != "" && !ok {
		return nil, appErr.ErrInvalid
	}
	if promptType == "" {
		promptType = PromptLogAnalysis
	}
	if _, err := s.files.Get(ctx, fileID); err != nil {
		return nil, err
	}
	if conversationID == "" {
		conversationID = newID()
	}

	lock := s.conversationLock(fileID + "/" + conversationID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.turns.ListRecent(ctx, fileID, conversationID, uint(s.historyTurns))
	if err != nil {
		return nil, err
	}
	var sources []*RetrievedChunk
	if useRAG {
		sources, err = s.retrieval.Retrieve(ctx, fileID, message, 0, -1)
		if err != nil {
			return nil, err
		}
	}
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: buildSystemPrompt(promptType, sources, s.maxContext)})
	for _, t := range history {
		role := ai.RoleUser
		if t.Role == model.RoleAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: t.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: message})

	text, usedFallback := s.complete(ctx, messages)
	next, err := s.turns.NextTurnIndex(ctx, fileID, conversationID)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	err = s.turns.Append(ctx, []*model.ConversationTurn{
		{FileID: fileID, ConversationID: conversationID, TurnIndex: next, Role: model.RoleUser, Content: message, UsedFallback: usedFallback, Ctime: now},
		{FileID: fileID, ConversationID: conversationID, TurnIndex: next + 1, Role: model.RoleAssistant, Content: text, UsedFallback: usedFallback, Ctime: now},
	})
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("chat turn answered",
		zap.String("file_id", fileID),
		zap.String("conversation_id", conversationID),
		zap.Int("sources", len(sources)),
		zap.Bool("used_fallback", usedFallback))
	return &Answer{
		Answer:         text,
		Sources:        sources,
		UsedFallback:   usedFallback,
		ConversationID: conversationID,
	}, nil
}

func (s *ChatService) History(ctx context.Context, fileID, conversationID string) ([]*model.ConversationTurn, error) {
	if _, err := s.files.Get(ctx, fileID); err != nil {
		return nil, err
	}
	return s.turns.ListAll(ctx, fileID, conversationID)
}

func (s *ChatService) ListConversations(ctx context.Context, fileID string) ([]*repo.ConversationSummary, error) {
	if _, err := s.files.Get(ctx, fileID); err != nil {
		return nil, err
	}
	return s.turns.ListConversations(ctx, fileID)
}

func (s *ChatService) ClearConversation(ctx context.Context, fileID, conversationID string) error {
	if _, err := s.files.Get(ctx, fileID); err != nil {
		return err
	}
	return s.turns.DeleteConversation(ctx, fileID, conversationID)
}

// complete runs the completion and degrades to the deterministic fallback
// text when the provider fails.
func (s *ChatService) complete(ctx context.Context, messages []ai.Message) (string, bool) {
	text, err := s.generator.Chat(ctx, messages)
	if err != nil {
		logutil.GetLogger(ctx).Warn("chat completion failed, answering with fallback text", zap.Error(err))
		return fallbackAnswer, true
	}
	return text, s.usedFallback()
}

func (s *ChatService) usedFallback() bool {
	return s.generator.Mode() == ai.ModeDemo || s.retrieval.embedder.Mode() == ai.ModeDemo
}

func (s *ChatService) conversationLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[key] = lk
	}
	return lk
}

func buildSystemPrompt(promptType string, sources []*RetrievedChunk, maxContext int) string {
	prompt := systemPrompts[promptType]
	context := AssembleContext(sources, maxContext)
	if context == "" {
		return prompt + "\n\nNo relevant log excerpts were found for this question."
	}
	return prompt + "\n\nLog excerpts:\n" + context
}
