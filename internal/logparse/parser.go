package logparse

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/logsage/logsage/internal/model"
)

const (
	FormatJSON       = "json"
	FormatCSV        = "csv"
	FormatStructured = "structured"
	FormatPlain      = "plain"
)

const (
	maxLineBytes      = 1 << 20
	formatSampleLines = 10
)

// Result is a parsed log file: the detected format plus one entry per
// non-empty line. Entries keep the raw line so nothing is lost to parsing.
type Result struct {
	Format  string
	Entries []*model.LogEntry
}

var (
	isoTimestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)
	usTimestampRe  = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}[ ]\d{1,2}:\d{2}:\d{2}`)
	syslogRe       = regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`)
	levelRe        = regexp.MustCompile(`(?i)\b(DEBUG|INFO|WARNING|WARN|ERROR|CRITICAL|FATAL)\b`)
	sourceRe       = regexp.MustCompile(`\[([A-Za-z][\w.-]*)\]`)
)

// Parse reads a log stream line by line, detects the overall format from the
// first lines and extracts timestamp, level, source and message per entry.
// Lines that fit no pattern still become plain entries.
func Parse(fileID string, r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var lines []string
	lineNumber := 0
	var entries []*model.LogEntry
	format := ""
	flushSample := func() {
		format = DetectFormat(lines)
		for i, line := range lines {
			entries = append(entries, parseLine(fileID, i+1, line, format))
		}
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNumber++
		if format == "" {
			lines = append(lines, line)
			if len(lines) >= formatSampleLines {
				flushSample()
			}
			continue
		}
		entries = append(entries, parseLine(fileID, lineNumber, line, format))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log stream: %w", err)
	}
	if format == "" {
		flushSample()
	}
	// csv header row carries no event
	if format == FormatCSV && len(entries) > 0 {
		entries = entries[1:]
	}
	return &Result{Format: format, Entries: entries}, nil
}

// DetectFormat classifies a sample of lines. JSON wins when every sampled
// line is a JSON object; CSV needs a header naming known columns; structured
// means most lines carry both a timestamp and a level.
func DetectFormat(sample []string) string {
	if len(sample) == 0 {
		return FormatPlain
	}
	jsonCount := 0
	for _, line := range sample {
		var obj map[string]interface{}
		if json.Unmarshal([]byte(line), &obj) == nil {
			jsonCount++
		}
	}
	if jsonCount == len(sample) {
		return FormatJSON
	}
	if looksLikeCSVHeader(sample[0]) {
		return FormatCSV
	}
	structured := 0
	for _, line := range sample {
		if extractTimestamp(line) != 0 && extractLevel(line) != "" {
			structured++
		}
	}
	if structured*2 >= len(sample) {
		return FormatStructured
	}
	return FormatPlain
}

func looksLikeCSVHeader(line string) bool {
	if !strings.Contains(line, ",") {
		return false
	}
	fields, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil || len(fields) < 2 {
		return false
	}
	known := 0
	for _, f := range fields {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "timestamp", "time", "ts", "date", "level", "severity", "message", "msg", "source", "logger":
			known++
		}
	}
	return known >= 2
}

func parseLine(fileID string, lineNumber int, line, format string) *model.LogEntry {
	entry := &model.LogEntry{
		FileID:     fileID,
		LineNumber: lineNumber,
		Message:    line,
		Raw:        line,
	}
	switch format {
	case FormatJSON:
		parseJSONLine(entry, line)
	case FormatCSV:
		parseCSVLine(entry, line)
	default:
		parseTextLine(entry, line)
	}
	return entry
}

func parseJSONLine(entry *model.LogEntry, line string) {
	var obj map[string]interface{}
	if json.Unmarshal([]byte(line), &obj) != nil {
		parseTextLine(entry, line)
		return
	}
	if epoch, ok := firstNumber(obj, "timestamp", "time", "ts", "@timestamp", "date"); ok {
		entry.Timestamp = int64(epoch)
	} else if ts := firstString(obj, "timestamp", "time", "ts", "@timestamp", "date"); ts != "" {
		entry.Timestamp = parseTimestamp(ts)
	}
	if lvl := firstString(obj, "level", "severity", "lvl"); lvl != "" {
		entry.Level = normalizeLevel(lvl)
	}
	if src := firstString(obj, "source", "logger", "module", "component"); src != "" {
		entry.Source = src
	}
	if msg := firstString(obj, "message", "msg", "text"); msg != "" {
		entry.Message = msg
	}
}

func parseCSVLine(entry *model.LogEntry, line string) {
	fields, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		parseTextLine(entry, line)
		return
	}
	// positional fallback: timestamp, level, message is the common layout
	if len(fields) > 0 {
		entry.Timestamp = parseTimestamp(strings.TrimSpace(fields[0]))
	}
	if len(fields) > 1 {
		if lvl := normalizeLevel(strings.TrimSpace(fields[1])); lvl != "" {
			entry.Level = lvl
		}
	}
	if len(fields) > 2 {
		entry.Message = strings.TrimSpace(strings.Join(fields[2:], ","))
	}
}

func parseTextLine(entry *model.LogEntry, line string) {
	entry.Timestamp = extractTimestamp(line)
	entry.Level = extractLevel(line)
	entry.Source = extractSource(line)
	entry.Message = cleanMessage(line)
}

func extractTimestamp(line string) int64 {
	if m := isoTimestampRe.FindString(line); m != "" {
		return parseTimestamp(m)
	}
	if m := usTimestampRe.FindString(line); m != "" {
		return parseTimestamp(m)
	}
	if m := syslogRe.FindString(line); m != "" {
		return parseTimestamp(m)
	}
	return 0
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05,000",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"01/02/2006 15:04:05",
}

func parseTimestamp(value string) int64 {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Unix()
		}
	}
	// syslog style carries no year; assume the current one
	if t, err := time.Parse("Jan 2 15:04:05", strings.Join(strings.Fields(value), " ")); err == nil {
		now := time.Now()
		return time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC).Unix()
	}
	return 0
}

func extractLevel(line string) string {
	if m := levelRe.FindString(line); m != "" {
		return normalizeLevel(m)
	}
	return ""
}

func normalizeLevel(level string) string {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return model.LevelDebug
	case "INFO":
		return model.LevelInfo
	case "WARN", "WARNING":
		return model.LevelWarning
	case "ERROR":
		return model.LevelError
	case "FATAL", "CRITICAL":
		return model.LevelCritical
	}
	return ""
}

func extractSource(line string) string {
	for _, m := range sourceRe.FindAllStringSubmatch(line, -1) {
		if normalizeLevel(m[1]) != "" {
			continue
		}
		return m[1]
	}
	return ""
}

// cleanMessage strips the already extracted prefix parts so the message is
// what remains after timestamp, level and source.
func cleanMessage(line string) string {
	msg := isoTimestampRe.ReplaceAllString(line, "")
	msg = usTimestampRe.ReplaceAllString(msg, "")
	msg = syslogRe.ReplaceAllString(msg, "")
	msg = levelRe.ReplaceAllString(msg, "")
	msg = sourceRe.ReplaceAllString(msg, "")
	msg = strings.Trim(msg, " \t-:[]")
	if msg == "" {
		return line
	}
	return msg
}

func firstString(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNumber(obj map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
