package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/repo"
	"github.com/logsage/logsage/internal/service"
)

// IndexBacklogJob picks up files that were parsed but never indexed, for
// example when indexing failed or the process died between the two steps.
type IndexBacklogJob struct {
	files   *repo.FileRepo
	indexer *service.IndexService
	batch   uint
}

func NewIndexBacklogJob(files *repo.FileRepo, indexer *service.IndexService, batch uint) *IndexBacklogJob {
	if batch == 0 {
		batch = 5
	}
	return &IndexBacklogJob{files: files, indexer: indexer, batch: batch}
}

func (j *IndexBacklogJob) Name() string {
	return "index_backlog"
}

func (j *IndexBacklogJob) Run(ctx context.Context) error {
	if j.files == nil || j.indexer == nil {
		return nil
	}
	pending, err := j.files.ListByState(ctx, model.FileStateParsed, j.batch)
	if err != nil {
		return err
	}
	for _, file := range pending {
		if _, err := j.indexer.Index(ctx, file.ID, 0, -1); err != nil {
			logutil.GetLogger(ctx).Error("backlog indexing failed",
				zap.String("file_id", file.ID), zap.Error(err))
			continue
		}
	}
	return nil
}
