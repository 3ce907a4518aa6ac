package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/analysis"
	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/repo"
)

type AnomalyService struct {
	files     *repo.FileRepo
	entries   *repo.LogEntryRepo
	anomalies *repo.AnomalyRepo
	detector  *analysis.Detector
}

func NewAnomalyService(files *repo.FileRepo, entries *repo.LogEntryRepo, anomalies *repo.AnomalyRepo) *AnomalyService {
	return &AnomalyService{
		files:     files,
		entries:   entries,
		anomalies: anomalies,
		detector: &analysis.Detector{
			NewID: newID,
			Now:   time.Now,
		},
	}
}

// Detect runs detection over a file's entries, optionally narrowed to a time
// window, and replaces the stored findings with the fresh run.
func (s *AnomalyService) Detect(ctx context.Context, fileID, quick string, startTs, endTs int64) ([]*model.Anomaly, error) {
	if _, err := s.files.Get(ctx, fileID); err != nil {
		return nil, err
	}
	start, end, err := analysis.ResolveTimeRange(quick, startTs, endTs, time.Now())
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListAll(ctx, fileID, repo.EntryFilter{StartTs: start, EndTs: end})
	if err != nil {
		return nil, err
	}
	anomalies := s.detector.Detect(fileID, entries)
	if err := s.anomalies.Replace(ctx, fileID, anomalies); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("anomaly detection finished",
		zap.String("file_id", fileID),
		zap.Int("entries", len(entries)),
		zap.Int("anomalies", len(anomalies)))
	if anomalies == nil {
		anomalies = []*model.Anomaly{}
	}
	return anomalies, nil
}

func (s *AnomalyService) List(ctx context.Context, fileID string) ([]*model.Anomaly, error) {
	if _, err := s.files.Get(ctx, fileID); err != nil {
		return nil, err
	}
	return s.anomalies.ListByFile(ctx, fileID)
}
