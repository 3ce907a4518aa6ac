package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/logsage/logsage/internal/ai"
)

type countingEmbedder struct {
	calls int
	texts int
}

func (f *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.texts += len(texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (f *countingEmbedder) ModelName() string { return "fake-model" }
func (f *countingEmbedder) Dimension() int    { return 2 }
func (f *countingEmbedder) Mode() ai.Mode     { return ai.ModeReal }

func TestLruCacheAvoidsRepeatCalls(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 100, time.Hour)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, 2, inner.texts)

	// both texts cached: the provider must not be called again
	second, err := e.Embed(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

func TestLruCachePartialHit(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 100, time.Hour)
	ctx := context.Background()

	_, err := e.Embed(ctx, []string{"alpha"})
	require.NoError(t, err)

	out, err := e.Embed(ctx, []string{"alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, 2, inner.calls)
	// only the miss went to the provider
	require.Equal(t, 2, inner.texts)
}

func TestLruCacheResultsAreIsolated(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 100, time.Hour)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"alpha"})
	require.NoError(t, err)
	first[0][0] = -999

	second, err := e.Embed(ctx, []string{"alpha"})
	require.NoError(t, err)
	require.NotEqual(t, float32(-999), second[0][0])
}

func TestWrapDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 0, time.Hour))
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 10, 0))
}

func TestBuildCacheKeyNormalizes(t *testing.T) {
	k1, h1 := BuildCacheKey("m", "  text  ")
	k2, h2 := BuildCacheKey("m", "text")
	require.Equal(t, k1, k2)
	require.Equal(t, h1, h2)

	k3, _ := BuildCacheKey("other", "text")
	require.NotEqual(t, k1, k3)
}
