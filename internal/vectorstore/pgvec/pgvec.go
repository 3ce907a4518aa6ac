package pgvec

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/vectorstore"
)

func init() {
	vectorstore.Register("pgvector", func(args *vectorstore.FactoryArgs) (vectorstore.IVectorStore, error) {
		return New(args.DB)
	})
}

// store keeps chunk embeddings in the chunk_embeddings table and searches
// with the pgvector distance operator, so the index lives and dies with the
// rest of the database.
type store struct {
	db *sql.DB
}

func New(db *sql.DB) (vectorstore.IVectorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pgvector store requires a database handle")
	}
	return &store{db: db}, nil
}

func (s *store) Add(ctx context.Context, fileID string, vectors [][]float32, chunkIDs []string) error {
	if fileID == "" || len(vectors) == 0 || len(vectors) != len(chunkIDs) {
		return appErr.ErrInvalid
	}
	base, err := s.Count(ctx, fileID)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	for i, vec := range vectors {
		_, err := tx.ExecContext(ctx,
			`insert into chunk_embeddings (file_id, chunk_id, chunk_index, embedding, ctime)
			 values ($1, $2, $3, $4, extract(epoch from now())::bigint)
			 on conflict (file_id, chunk_id) do update set embedding = excluded.embedding`,
			fileID, chunkIDs[i], base+i, pgvector.NewVector(vec))
		if err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}
	return tx.Commit()
}

func (s *store) Search(ctx context.Context, fileID string, query []float32, topK int) ([]vectorstore.SearchResult, error) {
	if fileID == "" || len(query) == 0 || topK <= 0 {
		return nil, appErr.ErrInvalid
	}
	cnt, err := s.Count(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if cnt == 0 {
		return nil, appErr.ErrNotIndexed
	}
	rows, err := s.db.QueryContext(ctx,
		`select chunk_id, embedding <-> $1 as distance
		 from chunk_embeddings
		 where file_id = $2
		 order by distance asc, chunk_index asc
		 limit $3`,
		pgvector.NewVector(query), fileID, topK)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()
	var results []vectorstore.SearchResult
	for rows.Next() {
		var r vectorstore.SearchResult
		if err := rows.Scan(&r.ChunkID, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Similarity = vectorstore.Similarity(r.Distance)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *store) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return appErr.ErrInvalid
	}
	_, err := s.db.ExecContext(ctx, `delete from chunk_embeddings where file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

func (s *store) Count(ctx context.Context, fileID string) (int, error) {
	if fileID == "" {
		return 0, appErr.ErrInvalid
	}
	var cnt int
	err := s.db.QueryRowContext(ctx, `select count(1) from chunk_embeddings where file_id = $1`, fileID).Scan(&cnt)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return cnt, nil
}
