package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/pkg/dbutil"
)

const tableLogEntries = "log_entries"

var logEntryFields = []string{"id", "file_id", "line_number", "ts", "level", "source", "message", "raw"}

// EntryFilter narrows a listing to a time window and/or a level set. Zero
// bounds mean unbounded.
type EntryFilter struct {
	StartTs int64
	EndTs   int64
	Levels  []string
}

type LogEntryRepo struct {
	db *sql.DB
}

func NewLogEntryRepo(db *sql.DB) *LogEntryRepo {
	return &LogEntryRepo{db: db}
}

func (r *LogEntryRepo) BatchCreate(ctx context.Context, entries []*model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		data = append(data, map[string]interface{}{
			"file_id":     e.FileID,
			"line_number": e.LineNumber,
			"ts":          e.Timestamp,
			"level":       e.Level,
			"source":      e.Source,
			"message":     e.Message,
			"raw":         e.Raw,
		})
	}
	query, args, err := builder.BuildInsert(tableLogEntries, data)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert log entries: %w", err)
	}
	return nil
}

func (r *LogEntryRepo) List(ctx context.Context, fileID string, filter EntryFilter, offset, limit uint) ([]*model.LogEntry, int64, error) {
	where := r.buildWhere(fileID, filter)
	total, err := r.count(ctx, where)
	if err != nil {
		return nil, 0, err
	}
	where["_orderby"] = "line_number asc"
	where["_limit"] = []uint{offset, limit}
	query, args, err := builder.BuildSelect(tableLogEntries, where, logEntryFields)
	if err != nil {
		return nil, 0, fmt.Errorf("build select: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	entries, err := r.queryEntries(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListAll returns every entry of a file ordered by timestamp, for
// whole-file statistics.
func (r *LogEntryRepo) ListAll(ctx context.Context, fileID string, filter EntryFilter) ([]*model.LogEntry, error) {
	where := r.buildWhere(fileID, filter)
	where["_orderby"] = "ts asc, line_number asc"
	query, args, err := builder.BuildSelect(tableLogEntries, where, logEntryFields)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	return r.queryEntries(ctx, query, args)
}

func (r *LogEntryRepo) DeleteByFile(ctx context.Context, fileID string) error {
	query, args, err := builder.BuildDelete(tableLogEntries, map[string]interface{}{"file_id": fileID})
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete log entries: %w", err)
	}
	return nil
}

func (r *LogEntryRepo) buildWhere(fileID string, filter EntryFilter) map[string]interface{} {
	where := map[string]interface{}{"file_id": fileID}
	if filter.StartTs > 0 {
		where["ts >="] = filter.StartTs
	}
	if filter.EndTs > 0 {
		where["ts <="] = filter.EndTs
	}
	if len(filter.Levels) > 0 {
		where["level in"] = filter.Levels
	}
	return where
}

func (r *LogEntryRepo) count(ctx context.Context, where map[string]interface{}) (int64, error) {
	cond := make(map[string]interface{}, len(where))
	for k, v := range where {
		cond[k] = v
	}
	query, args, err := builder.BuildSelect(tableLogEntries, cond, []string{"count(1)"})
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count log entries: %w", err)
	}
	return total, nil
}

func (r *LogEntryRepo) queryEntries(ctx context.Context, query string, args []interface{}) ([]*model.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()
	var entries []*model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.FileID, &e.LineNumber, &e.Timestamp, &e.Level,
			&e.Source, &e.Message, &e.Raw); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
