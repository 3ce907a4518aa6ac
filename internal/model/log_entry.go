package model

const (
	LevelDebug    = "DEBUG"
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

type LogEntry struct {
	ID         int64  `json:"id"`
	FileID     string `json:"file_id"`
	LineNumber int    `json:"line_number"`
	Timestamp  int64  `json:"timestamp"`
	Level      string `json:"level"`
	Source     string `json:"source"`
	Message    string `json:"message"`
	Raw        string `json:"raw"`
}

func (e *LogEntry) IsError() bool {
	return e.Level == LevelError || e.Level == LevelCritical
}
