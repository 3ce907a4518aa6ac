package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/ai"
	"github.com/logsage/logsage/internal/chunker"
	"github.com/logsage/logsage/internal/model"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/repo"
	"github.com/logsage/logsage/internal/vectorstore"
)

type IndexService struct {
	files    *repo.FileRepo
	entries  *repo.LogEntryRepo
	chunks   *repo.ChunkRepo
	embedder ai.IEmbedder
	vectors  vectorstore.IVectorStore
	size     int
	overlap  int
}

func NewIndexService(files *repo.FileRepo, entries *repo.LogEntryRepo, chunks *repo.ChunkRepo,
	embedder ai.IEmbedder, vectors vectorstore.IVectorStore, size, overlap int) *IndexService {
	return &IndexService{
		files:    files,
		entries:  entries,
		chunks:   chunks,
		embedder: embedder,
		vectors:  vectors,
		size:     size,
		overlap:  overlap,
	}
}

// Index chunks a parsed file, embeds the chunks and adds them to the vector
// index. Reindexing replaces whatever was there before. Non-positive size or
// overlap fall back to the configured values.
func (s *IndexService) Index(ctx context.Context, fileID string, size, overlap int) (*model.LogFile, error) {
	if size <= 0 {
		size = s.size
	}
	if overlap < 0 {
		overlap = s.overlap
	}
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.State < model.FileStateParsed {
		return nil, appErr.ErrInvalid
	}
	entries, err := s.entries.ListAll(ctx, fileID, repo.EntryFilter{})
	if err != nil {
		return nil, err
	}
	text := joinRawLines(entries)
	spans, err := chunker.ChunkSmart(text, size, overlap)
	if err != nil {
		return nil, err
	}
	if err := s.chunks.DeleteByFile(ctx, fileID); err != nil {
		return nil, err
	}
	if err := s.vectors.Delete(ctx, fileID); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	chunks := make([]*model.Chunk, 0, len(spans))
	for _, span := range spans {
		chunks = append(chunks, &model.Chunk{
			ID:          newID(),
			FileID:      fileID,
			ChunkIndex:  span.Index,
			Content:     span.Text,
			StartOffset: span.StartOffset,
			EndOffset:   span.EndOffset,
			Ctime:       now,
		})
	}
	if err := s.chunks.BatchCreate(ctx, chunks); err != nil {
		return nil, err
	}
	if err := s.addToIndex(ctx, fileID, chunks); err != nil {
		return nil, err
	}
	if err := s.files.Update(ctx, fileID, map[string]interface{}{
		"chunk_count": len(chunks),
		"state":       model.FileStateIndexed,
		"mtime":       time.Now().Unix(),
	}); err != nil {
		return nil, err
	}
	file.ChunkCount = len(chunks)
	file.State = model.FileStateIndexed
	logutil.GetLogger(ctx).Info("log file indexed",
		zap.String("file_id", fileID),
		zap.Int("chunks", len(chunks)),
		zap.String("embed_model", s.embedder.ModelName()))
	return file, nil
}

// Rebuild reconstructs a file's vector index from the chunks table. It is
// the recovery path when the index reads back corrupted.
func (s *IndexService) Rebuild(ctx context.Context, fileID string) error {
	chunks, err := s.chunks.ListByFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.vectors.Delete(ctx, fileID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := s.addToIndex(ctx, fileID, chunks); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Warn("vector index rebuilt from chunks",
		zap.String("file_id", fileID), zap.Int("chunks", len(chunks)))
	return nil
}

func (s *IndexService) addToIndex(ctx context.Context, fileID string, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Content)
		ids = append(ids, c.ID)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	return s.vectors.Add(ctx, fileID, vectors, ids)
}

func joinRawLines(entries []*model.LogEntry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Raw)
	}
	return sb.String()
}
