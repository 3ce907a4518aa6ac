package service_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/logsage/logsage/internal/ai"
	"github.com/logsage/logsage/internal/config"
	"github.com/logsage/logsage/internal/filestore"
	"github.com/logsage/logsage/internal/model"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/repo"
	"github.com/logsage/logsage/internal/service"
	"github.com/logsage/logsage/internal/vectorstore/flat"
	"github.com/logsage/logsage/test/testutil"
)

type memFile struct {
	*bytes.Reader
}

func (m *memFile) Close() error { return nil }

type ragEnv struct {
	files     *service.FileService
	indexer   *service.IndexService
	retrieval *service.RetrievalService
	chat      *service.ChatService
	anomalies *service.AnomalyService
	summaries *service.SummaryService

	fileRepo *repo.FileRepo
	turnRepo *repo.ConversationRepo
}

func newRagEnv(t *testing.T) (*ragEnv, func()) {
	t.Helper()
	conn, closer := testutil.OpenTestDB(t)

	fileRepo := repo.NewFileRepo(conn)
	entryRepo := repo.NewLogEntryRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	anomalyRepo := repo.NewAnomalyRepo(conn)
	turnRepo := repo.NewConversationRepo(conn)

	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)
	vectors, err := flat.New(t.TempDir())
	require.NoError(t, err)

	embedProvider, err := ai.NewEmbedProvider(ai.DemoProviderName, map[string]interface{}{"dimension": 8})
	require.NoError(t, err)
	embedder := ai.NewEmbedder(embedProvider, ai.EmbedderConfig{Model: "demo", Dimension: 8, BatchSize: 10})
	chatProvider, err := ai.NewChatProvider(ai.DemoProviderName, map[string]interface{}{})
	require.NoError(t, err)
	generator := ai.NewGenerator(chatProvider, ai.GeneratorConfig{Model: "demo", MaxTokens: 256, Temperature: 0.1})

	files := service.NewFileService(fileRepo, entryRepo, chunkRepo, anomalyRepo, turnRepo, store, vectors, 1<<20)
	indexer := service.NewIndexService(fileRepo, entryRepo, chunkRepo, embedder, vectors, 300, 50)
	retrieval := service.NewRetrievalService(chunkRepo, embedder, vectors, indexer, 10, 0.3)
	chat := service.NewChatService(retrieval, generator, turnRepo, fileRepo, 4000, 20)
	anomalies := service.NewAnomalyService(fileRepo, entryRepo, anomalyRepo)
	summaries := service.NewSummaryService(fileRepo, entryRepo, anomalyRepo, generator)

	return &ragEnv{
		files:     files,
		indexer:   indexer,
		retrieval: retrieval,
		chat:      chat,
		anomalies: anomalies,
		summaries: summaries,
		fileRepo:  fileRepo,
		turnRepo:  turnRepo,
	}, closer
}

func sampleLog(lines int) string {
	var sb strings.Builder
	for i := 0; i < lines; i++ {
		level := "INFO"
		msg := "request handled"
		if i%7 == 0 {
			level = "ERROR"
			msg = "database connection refused"
		}
		fmt.Fprintf(&sb, "2024-01-15 %02d:%02d:00 %s [api] %s seq=%d\n", 10+i/60, i%60, level, msg, i)
	}
	return sb.String()
}

func uploadSample(t *testing.T, env *ragEnv, lines int) *model.LogFile {
	t.Helper()
	content := sampleLog(lines)
	file, err := env.files.Upload(context.Background(), "app.log", int64(len(content)),
		"text/plain", &memFile{Reader: bytes.NewReader([]byte(content))})
	require.NoError(t, err)
	require.Equal(t, model.FileStateParsed, file.State)
	require.Equal(t, lines, file.EntryCount)
	return file
}

func TestUploadParseAndListEntries(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 50)

	entries, total, err := env.files.ListEntries(ctx, file.ID, "", 0, 0, nil, 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 50, total)
	require.Len(t, entries, 10)
	require.Equal(t, model.LevelError, entries[0].Level)

	_, total, err = env.files.ListEntries(ctx, file.ID, "", 0, 0, []string{model.LevelError}, 0, 100)
	require.NoError(t, err)
	require.EqualValues(t, 8, total)
}

func TestUploadRejectsBadInput(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	_, err := env.files.Upload(ctx, "binary.exe", 10, "application/octet-stream",
		&memFile{Reader: bytes.NewReader([]byte("0123456789"))})
	require.ErrorIs(t, err, appErr.ErrInvalidFile)

	huge := int64(2 << 20)
	_, err = env.files.Upload(ctx, "big.log", huge, "text/plain",
		&memFile{Reader: bytes.NewReader([]byte("x"))})
	require.ErrorIs(t, err, appErr.ErrFileTooLarge)
}

func TestIndexAndSearch(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 60)

	// search before indexing fails
	_, err := env.retrieval.Retrieve(ctx, file.ID, "connection refused", 5, 0)
	require.ErrorIs(t, err, appErr.ErrNotIndexed)

	indexed, err := env.indexer.Index(ctx, file.ID, 0, -1)
	require.NoError(t, err)
	require.Equal(t, model.FileStateIndexed, indexed.State)
	require.Greater(t, indexed.ChunkCount, 1)

	results, err := env.retrieval.Retrieve(ctx, file.ID, "connection refused", 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.LessOrEqual(t, len(results), 5)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}

	// a threshold close to 1 filters everything out
	results, err = env.retrieval.Retrieve(ctx, file.ID, "completely unrelated question", 5, 0.999)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestQueryUsesFallbackProvider(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 60)
	_, err := env.indexer.Index(ctx, file.ID, 0, -1)
	require.NoError(t, err)

	answer, err := env.chat.Query(ctx, file.ID, "what errors occurred in this log", 5, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Answer)
	require.True(t, answer.UsedFallback)
	require.NotEmpty(t, answer.Sources)
}

func TestChatKeepsHistory(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 60)
	_, err := env.indexer.Index(ctx, file.ID, 0, -1)
	require.NoError(t, err)

	first, err := env.chat.Chat(ctx, file.ID, "", "summarize the log", "", true)
	require.NoError(t, err)
	require.NotEmpty(t, first.ConversationID)

	second, err := env.chat.Chat(ctx, file.ID, first.ConversationID, "any anomalies?", "", true)
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)

	turns, err := env.chat.History(ctx, file.ID, first.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	require.Equal(t, model.RoleUser, turns[0].Role)
	require.Equal(t, model.RoleAssistant, turns[1].Role)
	require.Equal(t, "summarize the log", turns[0].Content)
	for i, turn := range turns {
		require.Equal(t, i, turn.TurnIndex)
		require.True(t, turn.UsedFallback)
	}

	convs, err := env.chat.ListConversations(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, 4, convs[0].TurnCount)

	require.NoError(t, env.chat.ClearConversation(ctx, file.ID, first.ConversationID))
	turns, err = env.chat.History(ctx, file.ID, first.ConversationID)
	require.NoError(t, err)
	require.Empty(t, turns)
}

type failingChatProvider struct{}

func (p *failingChatProvider) Name() string    { return "openai" }
func (p *failingChatProvider) Available() bool { return true }

func (p *failingChatProvider) Chat(ctx context.Context, model string, messages []ai.Message, opts ai.ChatOptions) (string, error) {
	return "", fmt.Errorf("upstream timeout")
}

// a broken chat provider must degrade to a flagged fallback turn, never to an
// error response or a halted conversation
func TestChatDegradesToFallbackTurn(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 60)
	_, err := env.indexer.Index(ctx, file.ID, 0, -1)
	require.NoError(t, err)

	broken := ai.NewGenerator(&failingChatProvider{}, ai.GeneratorConfig{Model: "gpt-4o-mini", MaxTokens: 256, Temperature: 0.1})
	chat := service.NewChatService(env.retrieval, broken, env.turnRepo, env.fileRepo, 4000, 20)

	answer, err := chat.Chat(ctx, file.ID, "", "what failed here?", "", true)
	require.NoError(t, err)
	require.True(t, answer.UsedFallback)
	require.NotEmpty(t, answer.Answer)

	turns, err := chat.History(ctx, file.ID, answer.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, model.RoleUser, turns[0].Role)
	require.Equal(t, model.RoleAssistant, turns[1].Role)
	require.Equal(t, answer.Answer, turns[1].Content)
	require.True(t, turns[1].UsedFallback)

	oneShot, err := chat.Query(ctx, file.ID, "what failed here?", 5, 0, 0)
	require.NoError(t, err)
	require.True(t, oneShot.UsedFallback)
	require.NotEmpty(t, oneShot.Answer)
}

func TestChatWithoutRetrieval(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 60)
	_, err := env.indexer.Index(ctx, file.ID, 0, -1)
	require.NoError(t, err)

	answer, err := env.chat.Chat(ctx, file.ID, "", "hello there", "", false)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Answer)
	require.Empty(t, answer.Sources)
}

func TestChatRejectsUnknownPromptType(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	file := uploadSample(t, env, 10)

	_, err := env.chat.Chat(context.Background(), file.ID, "", "hello", "poetry", true)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDeleteRemovesEverything(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 30)
	_, err := env.indexer.Index(ctx, file.ID, 0, -1)
	require.NoError(t, err)

	require.NoError(t, env.files.Delete(ctx, file.ID))

	_, err = env.files.Get(ctx, file.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = env.chat.Query(ctx, file.ID, "anything", 5, 0, 0)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSummarizeWindow(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 240)
	_, err := env.anomalies.Detect(ctx, file.ID, "", 0, 0)
	require.NoError(t, err)

	summary, err := env.summaries.Summarize(ctx, file.ID, "", 1705300000, 1705400000)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Summary)
	require.True(t, summary.UsedFallback)
	require.Equal(t, 240, summary.Stats.TotalEntries)
	require.Equal(t, 35, summary.Stats.LevelCounts[model.LevelError])
	require.InDelta(t, 35.0/240.0, summary.Stats.ErrorRate, 1e-9)
	require.NotEmpty(t, summary.Insights)
	require.NotEmpty(t, summary.Recommendations)
}

func TestSummarizeEmptyWindow(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()

	file := uploadSample(t, env, 20)
	summary, err := env.summaries.Summarize(context.Background(), file.ID, "", 100, 200)
	require.NoError(t, err)
	require.Zero(t, summary.Stats.TotalEntries)
	require.False(t, summary.UsedFallback)
	require.Contains(t, summary.Summary, "No log entries")
}

func TestAnomalyDetectionPersists(t *testing.T) {
	env, closer := newRagEnv(t)
	defer closer()
	ctx := context.Background()

	file := uploadSample(t, env, 240)

	found, err := env.anomalies.Detect(ctx, file.ID, "", 0, 0)
	require.NoError(t, err)

	listed, err := env.anomalies.List(ctx, file.ID)
	require.NoError(t, err)
	require.Equal(t, len(found), len(listed))
}
