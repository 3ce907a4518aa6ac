package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/logsage/logsage/internal/model"
)

// EmbeddingCacheRepo persists provider embeddings keyed by model and content
// hash, so restarts do not re-bill texts already embedded.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, contentHash string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := r.db.QueryRowContext(ctx,
		`select embedding from embedding_cache where model_name = $1 and content_hash = $2`,
		modelName, contentHash).Scan(&vec)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query embedding cache: %w", err)
	}
	return vec.Slice(), true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	_, err := r.db.ExecContext(ctx,
		`insert into embedding_cache (model_name, content_hash, embedding, ctime)
		 values ($1, $2, $3, $4)
		 on conflict (model_name, content_hash) do update
		 set embedding = excluded.embedding, ctime = excluded.ctime`,
		item.ModelName, item.ContentHash, pgvector.NewVector(item.Embedding), item.Ctime)
	if err != nil {
		return fmt.Errorf("save embedding cache: %w", err)
	}
	return nil
}

// DeleteBefore evicts cache rows older than cutoff, returning how many rows
// were removed.
func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `delete from embedding_cache where ctime < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict embedding cache: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
