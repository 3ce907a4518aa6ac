package model

const (
	AnomalyVolumeSpike = "volume_spike"
	AnomalyErrorSpike  = "error_spike"
	AnomalyErrorBurst  = "error_burst"

	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

type Anomaly struct {
	ID          string            `json:"id"`
	FileID      string            `json:"file_id"`
	AnomalyType string            `json:"anomaly_type"`
	Timestamp   int64             `json:"timestamp"`
	Severity    string            `json:"severity"`
	Description string            `json:"description"`
	Context     map[string]string `json:"context"`
	Confidence  float64           `json:"confidence"`
	Ctime       int64             `json:"ctime"`
}
