package flat

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
)

func newTestStore(t *testing.T) (*store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := New(dir)
	require.NoError(t, err)
	return st.(*store), dir
}

func TestAddAndSearch(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	require.NoError(t, st.Add(ctx, "f1", vectors, []string{"c1", "c2", "c3"}))

	results, err := st.Search(ctx, "f1", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "c1", results[0].ChunkID)
	require.Equal(t, "c3", results[1].ChunkID)
	require.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	require.Less(t, results[1].Similarity, results[0].Similarity)

	cnt, err := st.Count(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, 3, cnt)
}

func TestAddAppends(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Add(ctx, "f1", [][]float32{{1, 0}}, []string{"c1"}))
	require.NoError(t, st.Add(ctx, "f1", [][]float32{{0, 1}}, []string{"c2"}))

	cnt, err := st.Count(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, 2, cnt)

	results, err := st.Search(ctx, "f1", []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Equal(t, "c2", results[0].ChunkID)
}

func TestSearchNotIndexed(t *testing.T) {
	st, _ := newTestStore(t)
	_, err := st.Search(context.Background(), "missing", []float32{1, 0}, 5)
	require.ErrorIs(t, err, appErr.ErrNotIndexed)
}

func TestCorruptionDetected(t *testing.T) {
	st, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Add(ctx, "f1", [][]float32{{1, 0}, {0, 1}}, []string{"c1", "c2"}))

	// drop one chunk id so vectors and metadata disagree
	raw, err := json.Marshal(metaFile{ChunkIDs: []string{"c1"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f1.json"), raw, 0o644))

	_, err = st.Search(ctx, "f1", []float32{1, 0}, 5)
	require.ErrorIs(t, err, appErr.ErrIndexCorruption)
}

func TestDelete(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Add(ctx, "f1", [][]float32{{1, 0}}, []string{"c1"}))
	require.NoError(t, st.Delete(ctx, "f1"))

	cnt, err := st.Count(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, 0, cnt)

	// deleting again is a no-op
	require.NoError(t, st.Delete(ctx, "f1"))
}

func TestAddBadArgs(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.ErrorIs(t, st.Add(ctx, "f1", [][]float32{{1, 0}}, []string{"c1", "c2"}), appErr.ErrInvalid)
	require.ErrorIs(t, st.Add(ctx, "f1", nil, nil), appErr.ErrInvalid)
	require.ErrorIs(t, st.Add(ctx, "", [][]float32{{1}}, []string{"c1"}), appErr.ErrInvalid)
	require.ErrorIs(t, st.Add(ctx, "f1", [][]float32{{1, 0}, {1}}, []string{"c1", "c2"}), appErr.ErrInvalid)
}

func TestVectorRoundTrip(t *testing.T) {
	vectors := [][]float32{{1.5, -2.25, 0}, {0.125, 3, 4}}
	decoded, err := decodeVectors(encodeVectors(vectors))
	require.NoError(t, err)
	require.Equal(t, vectors, decoded)

	_, err = decodeVectors([]byte{1, 2, 3})
	require.Error(t, err)
}
