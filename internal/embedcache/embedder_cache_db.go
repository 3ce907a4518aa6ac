package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/ai"
	"github.com/logsage/logsage/internal/model"
	"github.com/logsage/logsage/internal/repo"
)

// WrapDBCacheToEmbedder adds a persistent cache behind the LRU. Demo-mode
// vectors are never persisted: they carry no relevance signal and must not
// survive into a later real-provider deployment.
func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil || e.Mode() == ai.ModeDemo {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		_, contentHash := BuildCacheKey(d.next.ModelName(), text)
		values, ok, err := d.repo.Get(ctx, d.next.ModelName(), contentHash)
		if err != nil {
			return nil, err
		}
		if ok {
			result[i] = values
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.Int("total", len(texts)))
		return result, nil
	}
	fetched, err := d.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for j, vec := range fetched {
		i := missIdx[j]
		result[i] = vec
		_, contentHash := BuildCacheKey(d.next.ModelName(), texts[i])
		if err := d.repo.Save(ctx, &model.EmbeddingCache{
			ModelName:   d.next.ModelName(),
			ContentHash: contentHash,
			Embedding:   vec,
			Ctime:       now,
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return result, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

func (d *dbEmbedder) Dimension() int {
	return d.next.Dimension()
}

func (d *dbEmbedder) Mode() ai.Mode {
	return d.next.Mode()
}
