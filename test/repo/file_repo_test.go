package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/logsage/logsage/internal/model"
	appErr "github.com/logsage/logsage/internal/pkg/errors"
	"github.com/logsage/logsage/internal/repo"
	"github.com/logsage/logsage/test/testutil"
)

func newFile(id, name string) *model.LogFile {
	now := time.Now().Unix()
	return &model.LogFile{
		ID:    id,
		Name:  name,
		Size:  128,
		State: model.FileStateUploaded,
		Ctime: now,
		Mtime: now,
	}
}

func TestFileRepoCRUD(t *testing.T) {
	conn, closer := testutil.OpenTestDB(t)
	defer closer()
	ctx := context.Background()
	files := repo.NewFileRepo(conn)

	require.NoError(t, files.Create(ctx, newFile("f1", "app.log")))
	require.ErrorIs(t, files.Create(ctx, newFile("f1", "dup.log")), appErr.ErrConflict)

	got, err := files.Get(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, "app.log", got.Name)
	require.Equal(t, model.FileStateUploaded, got.State)

	require.NoError(t, files.Update(ctx, "f1", map[string]interface{}{
		"state":       model.FileStateParsed,
		"entry_count": 42,
		"format":      "structured",
	}))
	got, err = files.Get(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, model.FileStateParsed, got.State)
	require.Equal(t, 42, got.EntryCount)
	require.Equal(t, "structured", got.Format)

	list, total, err := files.List(ctx, 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, list, 1)

	require.NoError(t, files.Delete(ctx, "f1"))
	_, err = files.Get(ctx, "f1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.ErrorIs(t, files.Update(ctx, "missing", map[string]interface{}{"state": 1}), appErr.ErrNotFound)
}

func TestFileRepoListByState(t *testing.T) {
	conn, closer := testutil.OpenTestDB(t)
	defer closer()
	ctx := context.Background()
	files := repo.NewFileRepo(conn)

	parsed := newFile("p1", "a.log")
	parsed.State = model.FileStateParsed
	require.NoError(t, files.Create(ctx, parsed))
	indexed := newFile("i1", "b.log")
	indexed.State = model.FileStateIndexed
	require.NoError(t, files.Create(ctx, indexed))

	pending, err := files.ListByState(ctx, model.FileStateParsed, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "p1", pending[0].ID)
}

func TestLogEntryRepoFilters(t *testing.T) {
	conn, closer := testutil.OpenTestDB(t)
	defer closer()
	ctx := context.Background()
	entries := repo.NewLogEntryRepo(conn)

	base := int64(1705312800)
	var batch []*model.LogEntry
	for i := 0; i < 10; i++ {
		level := model.LevelInfo
		if i%3 == 0 {
			level = model.LevelError
		}
		batch = append(batch, &model.LogEntry{
			FileID:     "f1",
			LineNumber: i + 1,
			Timestamp:  base + int64(i)*60,
			Level:      level,
			Message:    "msg",
			Raw:        "raw",
		})
	}
	require.NoError(t, entries.BatchCreate(ctx, batch))

	list, total, err := entries.List(ctx, "f1", repo.EntryFilter{}, 0, 100)
	require.NoError(t, err)
	require.EqualValues(t, 10, total)
	require.Len(t, list, 10)
	require.Equal(t, 1, list[0].LineNumber)

	// time window keeps entries 0..4
	list, total, err = entries.List(ctx, "f1", repo.EntryFilter{
		StartTs: base,
		EndTs:   base + 4*60,
	}, 0, 100)
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, list, 5)

	// level filter keeps entries 0,3,6,9
	list, total, err = entries.List(ctx, "f1", repo.EntryFilter{
		Levels: []string{model.LevelError},
	}, 0, 100)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	for _, e := range list {
		require.Equal(t, model.LevelError, e.Level)
	}

	// paging
	list, total, err = entries.List(ctx, "f1", repo.EntryFilter{}, 5, 3)
	require.NoError(t, err)
	require.EqualValues(t, 10, total)
	require.Len(t, list, 3)
	require.Equal(t, 6, list[0].LineNumber)

	require.NoError(t, entries.DeleteByFile(ctx, "f1"))
	_, total, err = entries.List(ctx, "f1", repo.EntryFilter{}, 0, 10)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestChunkRepoRoundTrip(t *testing.T) {
	conn, closer := testutil.OpenTestDB(t)
	defer closer()
	ctx := context.Background()
	chunks := repo.NewChunkRepo(conn)

	now := time.Now().Unix()
	require.NoError(t, chunks.BatchCreate(ctx, []*model.Chunk{
		{ID: "c1", FileID: "f1", ChunkIndex: 0, Content: "first", StartOffset: 0, EndOffset: 5, Ctime: now},
		{ID: "c2", FileID: "f1", ChunkIndex: 1, Content: "second", StartOffset: 3, EndOffset: 9, Ctime: now},
	}))

	list, err := chunks.ListByFile(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "c1", list[0].ID)
	require.Equal(t, "second", list[1].Content)

	byID, err := chunks.GetByIDs(ctx, "f1", []string{"c2", "missing"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	require.Equal(t, "second", byID["c2"].Content)

	cnt, err := chunks.CountByFile(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, 2, cnt)

	require.NoError(t, chunks.DeleteByFile(ctx, "f1"))
	cnt, err = chunks.CountByFile(ctx, "f1")
	require.NoError(t, err)
	require.Zero(t, cnt)
}

func TestEmbeddingCacheRepo(t *testing.T) {
	conn, closer := testutil.OpenTestDB(t)
	defer closer()
	ctx := context.Background()
	cache := repo.NewEmbeddingCacheRepo(conn)

	_, ok, err := cache.Get(ctx, "m1", "h1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{
		ModelName:   "m1",
		ContentHash: "h1",
		Embedding:   []float32{0.1, 0.2, 0.3},
		Ctime:       time.Now().Unix(),
	}))

	vec, ok, err := cache.Get(ctx, "m1", "h1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, vec, 3)
	require.InDelta(t, 0.2, vec[1], 1e-6)

	// rows older than the cutoff are evicted
	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{
		ModelName:   "m1",
		ContentHash: "old",
		Embedding:   []float32{1},
		Ctime:       time.Now().Add(-48 * time.Hour).Unix(),
	}))
	removed, err := cache.DeleteBefore(ctx, time.Now().Add(-24*time.Hour).Unix())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, ok, err = cache.Get(ctx, "m1", "h1")
	require.NoError(t, err)
	require.True(t, ok)
}
