package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/pkg/dbutil"
)

const tableChunks = "chunks"

var chunkFields = []string{"id", "file_id", "chunk_index", "content", "start_offset", "end_offset", "ctime"}

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) BatchCreate(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		data = append(data, map[string]interface{}{
			"id":           c.ID,
			"file_id":      c.FileID,
			"chunk_index":  c.ChunkIndex,
			"content":      c.Content,
			"start_offset": c.StartOffset,
			"end_offset":   c.EndOffset,
			"ctime":        c.Ctime,
		})
	}
	query, args, err := builder.BuildInsert(tableChunks, data)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// ListByFile returns the chunks of a file in index order. It is the source of
// truth the vector index is rebuilt from after corruption.
func (r *ChunkRepo) ListByFile(ctx context.Context, fileID string) ([]*model.Chunk, error) {
	where := map[string]interface{}{
		"file_id":  fileID,
		"_orderby": "chunk_index asc",
	}
	return r.query(ctx, where)
}

// GetByIDs resolves retrieval hits back to chunk rows. Results are keyed by
// chunk id; order is not meaningful.
func (r *ChunkRepo) GetByIDs(ctx context.Context, fileID string, ids []string) (map[string]*model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	where := map[string]interface{}{
		"file_id": fileID,
		"id in":   ids,
	}
	chunks, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	return byID, nil
}

func (r *ChunkRepo) CountByFile(ctx context.Context, fileID string) (int, error) {
	query, args, err := builder.BuildSelect(tableChunks, map[string]interface{}{"file_id": fileID}, []string{"count(1)"})
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	var cnt int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cnt); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return cnt, nil
}

func (r *ChunkRepo) DeleteByFile(ctx context.Context, fileID string) error {
	query, args, err := builder.BuildDelete(tableChunks, map[string]interface{}{"file_id": fileID})
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (r *ChunkRepo) query(ctx context.Context, where map[string]interface{}) ([]*model.Chunk, error) {
	query, args, err := builder.BuildSelect(tableChunks, where, chunkFields)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()
	var chunks []*model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.FileID, &c.ChunkIndex, &c.Content,
			&c.StartOffset, &c.EndOffset, &c.Ctime); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}
