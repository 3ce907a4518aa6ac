package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/ai"
	"github.com/logsage/logsage/internal/analysis"
	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/repo"
)

const summarySystemPrompt = "You are a log summarization assistant. Given aggregate statistics and sample " +
	"entries from a log window, produce a short plain-text summary of system health: overall activity, " +
	"error hot spots and anything that needs follow-up. Do not invent events that are not in the data."

const (
	topAnomalies  = 5
	topSources    = 5
	sampleErrors  = 5
	summaryBucket = 3600
)

// SummaryStats are the aggregates a summary is built from, returned alongside
// the generated text so callers can render them without re-querying.
type SummaryStats struct {
	TotalEntries  int            `json:"total_entries"`
	LevelCounts   map[string]int `json:"level_counts"`
	ErrorRate     float64        `json:"error_rate"`
	TopSources    map[string]int `json:"top_sources"`
	PeakHourTs    int64          `json:"peak_hour_ts"`
	PeakHourCount int            `json:"peak_hour_count"`
}

type Summary struct {
	FileID          string           `json:"file_id"`
	StartTs         int64            `json:"start_ts"`
	EndTs           int64            `json:"end_ts"`
	Summary         string           `json:"summary"`
	Insights        []string         `json:"insights"`
	Recommendations []string         `json:"recommendations"`
	Anomalies       []*model.Anomaly `json:"anomalies"`
	Stats           SummaryStats     `json:"stats"`
	UsedFallback    bool             `json:"used_fallback"`
}

type SummaryService struct {
	files     *repo.FileRepo
	entries   *repo.LogEntryRepo
	anomalies *repo.AnomalyRepo
	generator ai.IGenerator
}

func NewSummaryService(files *repo.FileRepo, entries *repo.LogEntryRepo,
	anomalies *repo.AnomalyRepo, generator ai.IGenerator) *SummaryService {
	return &SummaryService{
		files:     files,
		entries:   entries,
		anomalies: anomalies,
		generator: generator,
	}
}

// Summarize builds an aggregate report over a time window: level and source
// statistics, the strongest stored anomalies and a generated prose summary.
// With no window given it covers the current day. Generator failures degrade
// to a deterministic statistics sentence flagged used_fallback.
func (s *SummaryService) Summarize(ctx context.Context, fileID, quick string, startTs, endTs int64) (*Summary, error) {
	if quick == "" && startTs == 0 && endTs == 0 {
		quick = analysis.RangeToday
	}
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
	result := &Summary{
		FileID:  fileID,
		StartTs: start,
		EndTs:   end,
	}
	if len(entries) == 0 {
		result.Summary = "No log entries in the selected window."
		result.Insights = []string{"No activity recorded"}
		result.Recommendations = []string{"Widen the time window or verify the upload"}
		return result, nil
	}

	result.Stats = buildSummaryStats(entries)
	result.Anomalies, err = s.strongestAnomalies(ctx, fileID, start, end)
	if err != nil {
		return nil, err
	}
	result.Insights, result.Recommendations = summaryFindings(result.Stats, len(result.Anomalies))
	result.Summary, result.UsedFallback = s.generateSummary(ctx, result, sampleErrorLines(entries))

	logutil.GetLogger(ctx).Info("summary generated",
		zap.String("file_id", fileID),
		zap.Int("entries", result.Stats.TotalEntries),
		zap.Int("anomalies", len(result.Anomalies)),
		zap.Bool("used_fallback", result.UsedFallback))
	return result, nil
}

func buildSummaryStats(entries []*model.LogEntry) SummaryStats {
	stats := SummaryStats{
		TotalEntries: len(entries),
		LevelCounts:  make(map[string]int),
	}
	sources := make(map[string]int)
	hourly := make(map[int64]int)
	errors := 0
	for _, e := range entries {
		stats.LevelCounts[e.Level]++
		if e.IsError() {
			errors++
		}
		if e.Source != "" {
			sources[e.Source]++
		}
		if e.Timestamp > 0 {
			hourly[(e.Timestamp/summaryBucket)*summaryBucket]++
		}
	}
	stats.ErrorRate = float64(errors) / float64(len(entries))
	stats.TopSources = keepTopCounts(sources, topSources)
	for ts, cnt := range hourly {
		if cnt > stats.PeakHourCount || (cnt == stats.PeakHourCount && ts < stats.PeakHourTs) {
			stats.PeakHourTs = ts
			stats.PeakHourCount = cnt
		}
	}
	return stats
}

func keepTopCounts(counts map[string]int, n int) map[string]int {
	if len(counts) <= n {
		return counts
	}
	type kv struct {
		key   string
		count int
	}
	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].key < all[j].key
	})
	top := make(map[string]int, n)
	for _, item := range all[:n] {
		top[item.key] = item.count
	}
	return top
}

// strongestAnomalies returns the stored anomalies inside the window, highest
// confidence first, capped at topAnomalies.
func (s *SummaryService) strongestAnomalies(ctx context.Context, fileID string, start, end int64) ([]*model.Anomaly, error) {
	stored, err := s.anomalies.ListByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	kept := make([]*model.Anomaly, 0, len(stored))
	for _, a := range stored {
		if start > 0 && a.Timestamp < start {
			continue
		}
		if end > 0 && a.Timestamp > end {
			continue
		}
		kept = append(kept, a)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })
	if len(kept) > topAnomalies {
		kept = kept[:topAnomalies]
	}
	return kept, nil
}

func summaryFindings(stats SummaryStats, anomalyCount int) (insights, recommendations []string) {
	errors := stats.LevelCounts[model.LevelError] + stats.LevelCounts[model.LevelCritical]
	warnings := stats.LevelCounts[model.LevelWarning]

	if stats.TotalEntries > 1000 {
		insights = append(insights, "High volume of log activity in this window")
	} else if stats.TotalEntries < 10 {
		insights = append(insights, "Low log activity, the system may be quiet")
	}
	if errors > 0 {
		insights = append(insights, fmt.Sprintf("Found %d error entries requiring attention", errors))
		recommendations = append(recommendations, "Investigate error patterns and root causes")
	}
	if warnings > errors*2 {
		insights = append(insights, "Warning-to-error ratio suggests escalating issues")
		recommendations = append(recommendations, "Monitor warnings to prevent escalation to errors")
	}
	if anomalyCount > 0 {
		insights = append(insights, fmt.Sprintf("Detected %d anomalous patterns", anomalyCount))
		recommendations = append(recommendations, "Review anomaly details for the affected hours")
	}
	if len(insights) == 0 {
		insights = []string{"Normal log activity observed"}
	}
	if len(recommendations) == 0 {
		recommendations = []string{"Continue monitoring system performance"}
	}
	return insights, recommendations
}

func sampleErrorLines(entries []*model.LogEntry) []string {
	var lines []string
	for _, e := range entries {
		if !e.IsError() {
			continue
		}
		lines = append(lines, e.Raw)
		if len(lines) == sampleErrors {
			break
		}
	}
	return lines
}

func (s *SummaryService) generateSummary(ctx context.Context, result *Summary, errorLines []string) (string, bool) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the following log activity.\n\nTotal entries: %d\n", result.Stats.TotalEntries)
	fmt.Fprintf(&sb, "Level counts: %v\nError rate: %.2f%%\n", result.Stats.LevelCounts, result.Stats.ErrorRate*100)
	fmt.Fprintf(&sb, "Anomalies detected: %d\n", len(result.Anomalies))
	if len(errorLines) > 0 {
		sb.WriteString("\nSample error entries:\n")
		for _, line := range errorLines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: summarySystemPrompt},
		{Role: ai.RoleUser, Content: sb.String()},
	}
	text, err := s.generator.Chat(ctx, messages)
	if err != nil {
		logutil.GetLogger(ctx).Warn("summary completion failed, using statistics fallback", zap.Error(err))
		return statsSentence(result), true
	}
	return text, s.generator.Mode() == ai.ModeDemo
}

func statsSentence(result *Summary) string {
	errors := result.Stats.LevelCounts[model.LevelError] + result.Stats.LevelCounts[model.LevelCritical]
	warnings := result.Stats.LevelCounts[model.LevelWarning]
	text := fmt.Sprintf("Analyzed %d log entries with %d errors and %d warnings.",
		result.Stats.TotalEntries, errors, warnings)
	if len(result.Anomalies) > 0 {
		text += fmt.Sprintf(" Detected %d anomalies requiring review.", len(result.Anomalies))
	}
	return text
}
