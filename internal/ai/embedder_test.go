package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
)

type fakeEmbedProvider struct {
	dimension int
	fail      bool
	batches   [][]string
}

func (f *fakeEmbedProvider) Name() string    { return "fake" }
func (f *fakeEmbedProvider) Available() bool { return true }

func (f *fakeEmbedProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("connection reset")
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dimension)
	}
	return out, nil
}

func TestEmbedderWrapsProviderFailure(t *testing.T) {
	e := NewEmbedder(&fakeEmbedProvider{fail: true}, EmbedderConfig{Model: "m", Dimension: 4})
	_, err := e.Embed(context.Background(), []string{"hello"})
	require.ErrorIs(t, err, appErr.ErrEmbedProvider)
}

func TestEmbedderWrapsDimensionMismatch(t *testing.T) {
	e := NewEmbedder(&fakeEmbedProvider{dimension: 3}, EmbedderConfig{Model: "m", Dimension: 4})
	_, err := e.Embed(context.Background(), []string{"hello"})
	require.ErrorIs(t, err, appErr.ErrEmbedProvider)
}

func TestEmbedderBatchesAndTruncates(t *testing.T) {
	provider := &fakeEmbedProvider{dimension: 4}
	e := NewEmbedder(provider, EmbedderConfig{Model: "m", Dimension: 4, BatchSize: 2, MaxChars: 3})

	out, err := e.Embed(context.Background(), []string{"aaaaa", "bb", "ccccc"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Len(t, provider.batches, 2)
	require.Equal(t, []string{"aaa", "bb"}, provider.batches[0])
	require.Equal(t, []string{"ccc"}, provider.batches[1])
}
