package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
)

// SearchResult is one nearest-neighbour hit. Similarity is derived from the
// L2 distance as 1/(1+distance), so identical vectors score 1.0.
type SearchResult struct {
	ChunkID    string
	Distance   float64
	Similarity float64
}

// IVectorStore indexes chunk embeddings per log file. Implementations must
// keep vectors and chunk ids in lock step: a mismatch is index corruption and
// the caller rebuilds the index from the chunks table.
type IVectorStore interface {
	Add(ctx context.Context, fileID string, vectors [][]float32, chunkIDs []string) error
	Search(ctx context.Context, fileID string, query []float32, topK int) ([]SearchResult, error)
	Delete(ctx context.Context, fileID string) error
	Count(ctx context.Context, fileID string) (int, error)
}

// FactoryArgs carries everything any backend may need; each backend picks
// what it uses.
type FactoryArgs struct {
	DB        *sql.DB
	Dir       string
	Dimension int
}

type FactoryFunc func(args *FactoryArgs) (IVectorStore, error)

var registry = make(map[string]FactoryFunc)

func Register(name string, f FactoryFunc) {
	registry[name] = f
}

func New(name string, args *FactoryArgs) (IVectorStore, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("vector store not registered: %s", name)
	}
	return f(args)
}

// Similarity converts an L2 distance to the (0, 1] score exposed by search.
func Similarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}
