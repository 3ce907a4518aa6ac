package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/ai"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/repo"
	"github.com/logsage/logsage/internal/vectorstore"
)

const (
	contextSeparator = "\n---\n"
	// a truncated fragment below this length is dropped instead of kept
	minFragmentChars = 100
)

// RetrievedChunk is one ranked retrieval hit with its similarity score.
// Rank starts at 1 for the best hit.
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

type RetrievalService struct {
	chunks    *repo.ChunkRepo
	embedder  ai.IEmbedder
	vectors   vectorstore.IVectorStore
	index     *IndexService
	topK      int
	threshold float64
}

func NewRetrievalService(chunks *repo.ChunkRepo, embedder ai.IEmbedder, vectors vectorstore.IVectorStore,
	index *IndexService, topK int, threshold float64) *RetrievalService {
	return &RetrievalService{
		chunks:    chunks,
		embedder:  embedder,
		vectors:   vectors,
		index:     index,
		topK:      topK,
		threshold: threshold,
	}
}

// Retrieve embeds the query and returns the chunks above the similarity
// threshold, best first. Zero topK or a negative threshold fall back to the
// configured defaults. A corrupted index is rebuilt from the chunks table
// and the search retried once.
func (s *RetrievalService) Retrieve(ctx context.Context, fileID, query string, topK int, threshold float64) ([]*RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErr.ErrInvalid
	}
	if topK <= 0 {
		topK = s.topK
	}
	if threshold < 0 {
		threshold = s.threshold
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	hits, err := s.search(ctx, fileID, vectors[0], topK)
	if err != nil {
		return nil, err
	}
	var kept []vectorstore.SearchResult
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < threshold {
			continue
		}
		kept = append(kept, h)
		ids = append(ids, h.ChunkID)
	}
	if len(kept) == 0 {
		return nil, nil
	}
	byID, err := s.chunks.GetByIDs(ctx, fileID, ids)
	if err != nil {
		return nil, err
	}
	results := make([]*RetrievedChunk, 0, len(kept))
	for _, h := range kept {
		c, ok := byID[h.ChunkID]
		if !ok {
			logutil.GetLogger(ctx).Warn("retrieval hit without chunk row",
				zap.String("file_id", fileID), zap.String("chunk_id", h.ChunkID))
			continue
		}
		results = append(results, &RetrievedChunk{
			ChunkID:    c.ID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Similarity: h.Similarity,
			Rank:       len(results) + 1,
		})
	}
	return results, nil
}

func (s *RetrievalService) search(ctx context.Context, fileID string, query []float32, topK int) ([]vectorstore.SearchResult, error) {
	hits, err := s.vectors.Search(ctx, fileID, query, topK)
	if !appErr.IsIndexCorruption(err) {
		return hits, err
	}
	logutil.GetLogger(ctx).Warn("vector index corrupted, rebuilding", zap.String("file_id", fileID))
	if err := s.index.Rebuild(ctx, fileID); err != nil {
		return nil, err
	}
	return s.vectors.Search(ctx, fileID, query, topK)
}

// AssembleContext concatenates retrieved chunks into a prompt context capped
// at maxLength chars, each prefixed with a citation carrying its similarity
// score and chunk index. A chunk that does not fit whole is cut back to the
// last line or sentence boundary, never mid-word; if fewer than
// minFragmentChars would survive the cut the chunk is dropped. Assembly stops
// at the first chunk that cannot be placed.
func AssembleContext(chunks []*RetrievedChunk, maxLength int) string {
	if maxLength <= 0 || len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, c := range chunks {
		piece := fmt.Sprintf("[Source %d | similarity: %.3f | chunk: %d]\n%s",
			i+1, c.Similarity, c.ChunkIndex, c.Content)
		if i > 0 {
			piece = contextSeparator + piece
		}
		remaining := maxLength - sb.Len()
		if len(piece) <= remaining {
			sb.WriteString(piece)
			continue
		}
		if remaining >= minFragmentChars {
			sb.WriteString(truncateAtBoundary(piece, remaining))
		}
		break
	}
	return sb.String()
}

// truncateAtBoundary cuts piece to at most limit chars, ending at the last
// newline or sentence end inside the budget, falling back to the last word
// break. Returns "" when no boundary leaves at least minFragmentChars.
func truncateAtBoundary(piece string, limit int) string {
	if limit >= len(piece) {
		return piece
	}
	cut := piece[:limit]
	boundary := -1
	for i := len(cut) - 1; i >= 0; i-- {
		ch := cut[i]
		if ch == '\n' || ch == '.' || ch == '!' || ch == '?' {
			boundary = i + 1
			break
		}
	}
	if boundary < minFragmentChars {
		if sp := strings.LastIndexByte(cut, ' '); sp > boundary {
			boundary = sp
		}
	}
	if boundary < minFragmentChars {
		return ""
	}
	return strings.TrimRight(cut[:boundary], " \n")
}
