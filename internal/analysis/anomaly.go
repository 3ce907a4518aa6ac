package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/logsage/logsage/internal/model"
)

const (
	bucketSeconds = 3600

	volumeZThreshold    = 2.0
	errorRateZThreshold = 1.5
	iqrMultiplier       = 1.5

	maxConfidence = 0.95
)

// Detector runs statistical detection over a file's parsed entries. IDs are
// injected so detection itself stays deterministic and testable.
type Detector struct {
	NewID func() string
	Now   func() time.Time
}

type bucket struct {
	start  int64
	total  int
	errors int
}

// Detect buckets entries into hours and flags three kinds of anomalies:
// hourly volumes more than 2 standard deviations above the mean, hourly
// error rates more than 1.5 deviations above the mean, and hourly error
// counts beyond the IQR upper fence. Entries without a timestamp are
// ignored; fewer than three populated buckets yields no findings since the
// statistics carry no signal.
func (d *Detector) Detect(fileID string, entries []*model.LogEntry) []*model.Anomaly {
	buckets := bucketize(entries)
	if len(buckets) < 3 {
		return nil
	}
	now := d.Now().Unix()
	var anomalies []*model.Anomaly
	anomalies = append(anomalies, d.detectVolumeSpikes(fileID, buckets, now)...)
	anomalies = append(anomalies, d.detectErrorRateSpikes(fileID, buckets, now)...)
	anomalies = append(anomalies, d.detectErrorBursts(fileID, buckets, now)...)
	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Timestamp < anomalies[j].Timestamp
	})
	return anomalies
}

func bucketize(entries []*model.LogEntry) []bucket {
	byHour := make(map[int64]*bucket)
	for _, e := range entries {
		if e.Timestamp == 0 {
			continue
		}
		start := e.Timestamp - e.Timestamp%bucketSeconds
		b, ok := byHour[start]
		if !ok {
			b = &bucket{start: start}
			byHour[start] = b
		}
		b.total++
		if e.IsError() {
			b.errors++
		}
	}
	buckets := make([]bucket, 0, len(byHour))
	for _, b := range byHour {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].start < buckets[j].start })
	return buckets
}

func (d *Detector) detectVolumeSpikes(fileID string, buckets []bucket, now int64) []*model.Anomaly {
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		values[i] = float64(b.total)
	}
	mean, std := meanStd(values)
	if std == 0 {
		return nil
	}
	var anomalies []*model.Anomaly
	for _, b := range buckets {
		z := (float64(b.total) - mean) / std
		if z <= volumeZThreshold {
			continue
		}
		anomalies = append(anomalies, &model.Anomaly{
			ID:          d.NewID(),
			FileID:      fileID,
			AnomalyType: model.AnomalyVolumeSpike,
			Timestamp:   b.start,
			Severity:    severityForZ(z),
			Description: fmt.Sprintf("log volume spike: %d entries in one hour against a mean of %.1f", b.total, mean),
			Context: map[string]string{
				"bucket_start": formatBucket(b.start),
				"count":        fmt.Sprintf("%d", b.total),
				"mean":         fmt.Sprintf("%.2f", mean),
				"z_score":      fmt.Sprintf("%.2f", z),
			},
			Confidence: confidenceForZ(z),
			Ctime:      now,
		})
	}
	return anomalies
}

func (d *Detector) detectErrorRateSpikes(fileID string, buckets []bucket, now int64) []*model.Anomaly {
	rates := make([]float64, len(buckets))
	for i, b := range buckets {
		if b.total > 0 {
			rates[i] = float64(b.errors) / float64(b.total)
		}
	}
	mean, std := meanStd(rates)
	if std == 0 {
		return nil
	}
	var anomalies []*model.Anomaly
	for i, b := range buckets {
		z := (rates[i] - mean) / std
		if z <= errorRateZThreshold {
			continue
		}
		anomalies = append(anomalies, &model.Anomaly{
			ID:          d.NewID(),
			FileID:      fileID,
			AnomalyType: model.AnomalyErrorSpike,
			Timestamp:   b.start,
			Severity:    severityForZ(z),
			Description: fmt.Sprintf("error rate spike: %.0f%% of entries are errors against a mean of %.0f%%", rates[i]*100, mean*100),
			Context: map[string]string{
				"bucket_start": formatBucket(b.start),
				"error_count":  fmt.Sprintf("%d", b.errors),
				"total":        fmt.Sprintf("%d", b.total),
				"error_rate":   fmt.Sprintf("%.3f", rates[i]),
				"z_score":      fmt.Sprintf("%.2f", z),
			},
			Confidence: confidenceForZ(z),
			Ctime:      now,
		})
	}
	return anomalies
}

func (d *Detector) detectErrorBursts(fileID string, buckets []bucket, now int64) []*model.Anomaly {
	counts := make([]float64, len(buckets))
	for i, b := range buckets {
		counts[i] = float64(b.errors)
	}
	q1, q3 := quartiles(counts)
	iqr := q3 - q1
	fence := q3 + iqrMultiplier*iqr
	if iqr == 0 {
		return nil
	}
	mean, std := meanStd(counts)
	var anomalies []*model.Anomaly
	for _, b := range buckets {
		if float64(b.errors) <= fence {
			continue
		}
		z := 0.0
		if std > 0 {
			z = (float64(b.errors) - mean) / std
		}
		anomalies = append(anomalies, &model.Anomaly{
			ID:          d.NewID(),
			FileID:      fileID,
			AnomalyType: model.AnomalyErrorBurst,
			Timestamp:   b.start,
			Severity:    severityForZ(z),
			Description: fmt.Sprintf("error burst: %d errors in one hour, above the upper fence of %.1f", b.errors, fence),
			Context: map[string]string{
				"bucket_start": formatBucket(b.start),
				"error_count":  fmt.Sprintf("%d", b.errors),
				"q1":           fmt.Sprintf("%.2f", q1),
				"q3":           fmt.Sprintf("%.2f", q3),
				"fence":        fmt.Sprintf("%.2f", fence),
			},
			Confidence: confidenceForZ(z),
			Ctime:      now,
		})
	}
	return anomalies
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// quartiles returns q1 and q3 by linear interpolation over the sorted values.
func quartiles(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentile(sorted, 0.25), percentile(sorted, 0.75)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func severityForZ(z float64) string {
	switch {
	case z >= 4.0:
		return model.SeverityCritical
	case z >= 3.0:
		return model.SeverityHigh
	case z >= 2.5:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func confidenceForZ(z float64) float64 {
	if z <= 0 {
		return 0
	}
	return math.Min(maxConfidence, z/3.0)
}

func formatBucket(start int64) string {
	return time.Unix(start, 0).UTC().Format("2006-01-02T15:00:00Z")
}
