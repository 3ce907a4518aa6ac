package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/logsage/logsage/internal/ai"
)

// WrapLruCacheToEmbedder adds an in-process LRU in front of an embedder.
// Texts already cached are not sent to the provider again.
func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	hits := 0
	for i, text := range texts {
		key, _ := BuildCacheKey(l.next.ModelName(), text)
		if cached, ok := l.cache.Get(key); ok {
			result[i] = cloneEmbedding(cached)
			hits++
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.Int("hits", hits), zap.Int("total", len(texts)))
	}
	if len(missTexts) == 0 {
		return result, nil
	}
	fetched, err := l.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range fetched {
		i := missIdx[j]
		result[i] = vec
		key, _ := BuildCacheKey(l.next.ModelName(), texts[i])
		l.cache.Add(key, cloneEmbedding(vec))
	}
	return result, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func (l *lruEmbedder) Dimension() int {
	return l.next.Dimension()
}

func (l *lruEmbedder) Mode() ai.Mode {
	return l.next.Mode()
}

// BuildCacheKey returns the full cache key and the bare content hash for a
// normalized input text.
func BuildCacheKey(modelName, text string) (string, string) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + modelName + ":" + contentHash, contentHash
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
