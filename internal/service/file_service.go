package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/analysis"
	"github.com/logsage/logsage/internal/filestore"
	"github.com/logsage/logsage/internal/logparse"
	"github.com/logsage/logsage/internal/model"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/repo"
	"github.com/logsage/logsage/internal/vectorstore"
)

const entryInsertBatch = 500

var allowedExtensions = map[string]struct{}{
	".log":  {},
	".txt":  {},
	".json": {},
	".csv":  {},
	".out":  {},
}

type FileService struct {
	files     *repo.FileRepo
	entries   *repo.LogEntryRepo
	chunks    *repo.ChunkRepo
	anomalies *repo.AnomalyRepo
	turns     *repo.ConversationRepo
	store     filestore.Store
	vectors   vectorstore.IVectorStore
	maxSize   int64
}

func NewFileService(files *repo.FileRepo, entries *repo.LogEntryRepo, chunks *repo.ChunkRepo,
	anomalies *repo.AnomalyRepo, turns *repo.ConversationRepo, store filestore.Store,
	vectors vectorstore.IVectorStore, maxSize int64) *FileService {
	return &FileService{
		files:     files,
		entries:   entries,
		chunks:    chunks,
		anomalies: anomalies,
		turns:     turns,
		store:     store,
		vectors:   vectors,
		maxSize:   maxSize,
	}
}

// Upload stores the raw payload, parses it line by line and records the
// result. The file lands in the parsed state; indexing is a separate step.
func (s *FileService) Upload(ctx context.Context, name string, size int64, contentType string, r filestore.ReadSeekCloser) (*model.LogFile, error) {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." {
		return nil, appErr.ErrInvalidFile
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, appErr.ErrInvalidFile
	}
	if size <= 0 || (s.maxSize > 0 && size > s.maxSize) {
		return nil, appErr.ErrFileTooLarge
	}

	now := time.Now().Unix()
	file := &model.LogFile{
		ID:          newID(),
		Name:        name,
		Size:        size,
		ContentType: contentType,
		State:       model.FileStateUploaded,
		Ctime:       now,
		Mtime:       now,
	}
	file.StoreKey = file.ID + ext
	if err := s.store.Save(ctx, file.StoreKey, r, size); err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	parsed, err := logparse.Parse(file.ID, r)
	if err != nil {
		return nil, err
	}
	file.Format = parsed.Format
	file.EntryCount = len(parsed.Entries)
	if err := s.files.Create(ctx, file); err != nil {
		return nil, err
	}
	for start := 0; start < len(parsed.Entries); start += entryInsertBatch {
		end := start + entryInsertBatch
		if end > len(parsed.Entries) {
			end = len(parsed.Entries)
		}
		if err := s.entries.BatchCreate(ctx, parsed.Entries[start:end]); err != nil {
			return nil, err
		}
	}
	if err := s.files.Update(ctx, file.ID, map[string]interface{}{
		"format":      file.Format,
		"entry_count": file.EntryCount,
		"state":       model.FileStateParsed,
		"mtime":       time.Now().Unix(),
	}); err != nil {
		return nil, err
	}
	file.State = model.FileStateParsed
	logutil.GetLogger(ctx).Info("log file uploaded",
		zap.String("file_id", file.ID),
		zap.String("name", name),
		zap.String("format", file.Format),
		zap.Int("entries", file.EntryCount))
	return file, nil
}

func (s *FileService) Get(ctx context.Context, fileID string) (*model.LogFile, error) {
	return s.files.Get(ctx, fileID)
}

func (s *FileService) List(ctx context.Context, offset, limit uint) ([]*model.LogFile, int64, error) {
	if limit == 0 || limit > 100 {
		limit = 50
	}
	return s.files.List(ctx, offset, limit)
}

// Delete removes the file and everything derived from it: entries, chunks,
// anomalies, conversations and the vector index. The stored payload is
// removed best effort since not every backend supports deletion.
func (s *FileService) Delete(ctx context.Context, fileID string) error {
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.vectors.Delete(ctx, fileID); err != nil {
		return err
	}
	if err := s.entries.DeleteByFile(ctx, fileID); err != nil {
		return err
	}
	if err := s.chunks.DeleteByFile(ctx, fileID); err != nil {
		return err
	}
	if err := s.anomalies.DeleteByFile(ctx, fileID); err != nil {
		return err
	}
	if err := s.turns.DeleteByFile(ctx, fileID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, file.StoreKey); err != nil {
		logutil.GetLogger(ctx).Warn("failed to delete stored payload",
			zap.String("file_id", fileID), zap.Error(err))
	}
	if err := s.files.Delete(ctx, fileID); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("log file deleted", zap.String("file_id", fileID))
	return nil
}

// ListEntries pages a file's entries inside an optional time window and
// level set.
func (s *FileService) ListEntries(ctx context.Context, fileID string, quick string, startTs, endTs int64,
	levels []string, offset, limit uint) ([]*model.LogEntry, int64, error) {
	if _, err := s.files.Get(ctx, fileID); err != nil {
		return nil, 0, err
	}
	start, end, err := analysis.ResolveTimeRange(quick, startTs, endTs, time.Now())
	if err != nil {
		return nil, 0, err
	}
	if limit == 0 || limit > 1000 {
		limit = 100
	}
	return s.entries.List(ctx, fileID, repo.EntryFilter{
		StartTs: start,
		EndTs:   end,
		Levels:  levels,
	}, offset, limit)
}
