package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/pkg/dbutil"
)

const tableAnomalies = "anomalies"

var anomalyFields = []string{"id", "file_id", "anomaly_type", "ts", "severity",
	"description", "context", "confidence", "ctime"}

type AnomalyRepo struct {
	db *sql.DB
}

func NewAnomalyRepo(db *sql.DB) *AnomalyRepo {
	return &AnomalyRepo{db: db}
}

// Replace swaps a file's stored anomalies for a fresh detection run. A rerun
// must never leave stale findings behind.
func (r *AnomalyRepo) Replace(ctx context.Context, fileID string, anomalies []*model.Anomaly) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	delQuery, delArgs, err := builder.BuildDelete(tableAnomalies, map[string]interface{}{"file_id": fileID})
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	delQuery, delArgs = dbutil.Finalize(delQuery, delArgs)
	if _, err := tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return fmt.Errorf("delete anomalies: %w", err)
	}
	if len(anomalies) > 0 {
		data := make([]map[string]interface{}, 0, len(anomalies))
		for _, a := range anomalies {
			rawCtx, err := json.Marshal(a.Context)
			if err != nil {
				return fmt.Errorf("encode anomaly context: %w", err)
			}
			data = append(data, map[string]interface{}{
				"id":           a.ID,
				"file_id":      a.FileID,
				"anomaly_type": a.AnomalyType,
				"ts":           a.Timestamp,
				"severity":     a.Severity,
				"description":  a.Description,
				"context":      string(rawCtx),
				"confidence":   a.Confidence,
				"ctime":        a.Ctime,
			})
		}
		insQuery, insArgs, err := builder.BuildInsert(tableAnomalies, data)
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		insQuery, insArgs = dbutil.Finalize(insQuery, insArgs)
		if _, err := tx.ExecContext(ctx, insQuery, insArgs...); err != nil {
			return fmt.Errorf("insert anomalies: %w", err)
		}
	}
	return tx.Commit()
}

func (r *AnomalyRepo) ListByFile(ctx context.Context, fileID string) ([]*model.Anomaly, error) {
	where := map[string]interface{}{
		"file_id":  fileID,
		"_orderby": "ts asc",
	}
	query, args, err := builder.BuildSelect(tableAnomalies, where, anomalyFields)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()
	var anomalies []*model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		var rawCtx string
		if err := rows.Scan(&a.ID, &a.FileID, &a.AnomalyType, &a.Timestamp,
			&a.Severity, &a.Description, &rawCtx, &a.Confidence, &a.Ctime); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		if err := json.Unmarshal([]byte(rawCtx), &a.Context); err != nil {
			return nil, fmt.Errorf("decode anomaly context: %w", err)
		}
		anomalies = append(anomalies, &a)
	}
	return anomalies, rows.Err()
}

func (r *AnomalyRepo) DeleteByFile(ctx context.Context, fileID string) error {
	query, args, err := builder.BuildDelete(tableAnomalies, map[string]interface{}{"file_id": fileID})
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete anomalies: %w", err)
	}
	return nil
}
