package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/pkg/dbutil"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
)

const tableLogFiles = "log_files"

var fileFields = []string{"id", "name", "size", "content_type", "store_key", "format",
	"entry_count", "chunk_count", "state", "ctime", "mtime"}

type FileRepo struct {
	db *sql.DB
}

func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

func (r *FileRepo) Create(ctx context.Context, f *model.LogFile) error {
	data := []map[string]interface{}{{
		"id":           f.ID,
		"name":         f.Name,
		"size":         f.Size,
		"content_type": f.ContentType,
		"store_key":    f.StoreKey,
		"format":       f.Format,
		"entry_count":  f.EntryCount,
		"chunk_count":  f.ChunkCount,
		"state":        f.State,
		"ctime":        f.Ctime,
		"mtime":        f.Mtime,
	}}
	query, args, err := builder.BuildInsert(tableLogFiles, data)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return fmt.Errorf("insert log file: %w", err)
	}
	return nil
}

func (r *FileRepo) Get(ctx context.Context, id string) (*model.LogFile, error) {
	where := map[string]interface{}{
		"id":       id,
		"state !=": model.FileStateDeleted,
	}
	query, args, err := builder.BuildSelect(tableLogFiles, where, fileFields)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	f, err := scanFile(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query log file: %w", err)
	}
	return f, nil
}

func (r *FileRepo) List(ctx context.Context, offset, limit uint) ([]*model.LogFile, int64, error) {
	total, err := r.count(ctx)
	if err != nil {
		return nil, 0, err
	}
	where := map[string]interface{}{
		"state !=": model.FileStateDeleted,
		"_orderby": "ctime desc",
		"_limit":   []uint{offset, limit},
	}
	query, args, err := builder.BuildSelect(tableLogFiles, where, fileFields)
	if err != nil {
		return nil, 0, fmt.Errorf("build select: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query log files: %w", err)
	}
	defer rows.Close()
	var files []*model.LogFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan log file: %w", err)
		}
		files = append(files, f)
	}
	return files, total, rows.Err()
}

func (r *FileRepo) ListByState(ctx context.Context, state int, limit uint) ([]*model.LogFile, error) {
	where := map[string]interface{}{
		"state":    state,
		"_orderby": "ctime asc",
		"_limit":   []uint{0, limit},
	}
	query, args, err := builder.BuildSelect(tableLogFiles, where, fileFields)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query log files: %w", err)
	}
	defer rows.Close()
	var files []*model.LogFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *FileRepo) Update(ctx context.Context, id string, update map[string]interface{}) error {
	query, args, err := builder.BuildUpdate(tableLogFiles, map[string]interface{}{"id": id}, update)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update log file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *FileRepo) Delete(ctx context.Context, id string) error {
	query, args, err := builder.BuildDelete(tableLogFiles, map[string]interface{}{"id": id})
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete log file: %w", err)
	}
	return nil
}

func (r *FileRepo) count(ctx context.Context) (int64, error) {
	where := map[string]interface{}{"state !=": model.FileStateDeleted}
	query, args, err := builder.BuildSelect(tableLogFiles, where, []string{"count(1)"})
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count log files: %w", err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*model.LogFile, error) {
	var f model.LogFile
	err := row.Scan(&f.ID, &f.Name, &f.Size, &f.ContentType, &f.StoreKey, &f.Format,
		&f.EntryCount, &f.ChunkCount, &f.State, &f.Ctime, &f.Mtime)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
