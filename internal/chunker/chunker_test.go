package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
)

func buildText(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	var sb strings.Builder
	for sb.Len() < n {
		sb.WriteString(alphabet)
	}
	return sb.String()[:n]
}

func TestChunkWindows(t *testing.T) {
	text := buildText(1000)
	spans, err := Chunk(text, 200, 50)
	require.NoError(t, err)
	require.Len(t, spans, 6)
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		require.Equal(t, 50, prev.EndOffset-cur.StartOffset)
		require.Equal(t, prev.Text[len(prev.Text)-50:], cur.Text[:50])
	}
	var sb strings.Builder
	sb.WriteString(spans[0].Text)
	for _, s := range spans[1:] {
		sb.WriteString(s.Text[50:])
	}
	require.Equal(t, text, sb.String())
}

func TestChunkOffsets(t *testing.T) {
	text := buildText(350)
	spans, err := Chunk(text, 200, 50)
	require.NoError(t, err)
	for i, s := range spans {
		require.Equal(t, i, s.Index)
		require.Equal(t, text[s.StartOffset:s.EndOffset], s.Text)
	}
	require.Equal(t, 0, spans[0].StartOffset)
	require.Equal(t, len(text), spans[len(spans)-1].EndOffset)
}

func TestChunkShortInput(t *testing.T) {
	spans, err := Chunk("tiny", 200, 50)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	require.Equal(t, "tiny", spans[0].Text)

	spans, err = Chunk("", 200, 50)
	require.NoError(t, err)
	require.Empty(t, spans)
}

func TestChunkBadArgs(t *testing.T) {
	for _, tc := range []struct {
		size    int
		overlap int
	}{
		{0, 0},
		{-1, 0},
		{100, 100},
		{100, 150},
		{100, -1},
	} {
		_, err := Chunk("some text", tc.size, tc.overlap)
		require.ErrorIs(t, err, appErr.ErrInvalid)
	}
}

func TestChunkZeroOverlap(t *testing.T) {
	text := buildText(450)
	spans, err := Chunk(text, 100, 0)
	require.NoError(t, err)
	var sb strings.Builder
	for i, s := range spans {
		if i > 0 {
			require.Equal(t, spans[i-1].EndOffset, s.StartOffset)
		}
		sb.WriteString(s.Text)
	}
	require.Equal(t, text, sb.String())
}

func TestChunkSmartBoundaries(t *testing.T) {
	line := "2024-01-01 10:00:00 INFO request handled in 12ms\n"
	text := strings.Repeat(line, 40)
	spans, err := ChunkSmart(text, 300, 50)
	require.NoError(t, err)
	require.Greater(t, len(spans), 1)
	for _, s := range spans[:len(spans)-1] {
		require.True(t, strings.HasSuffix(s.Text, "12ms"), "chunk should end on a line boundary: %q", s.Text)
	}
}

func TestChunkSmartOffsetsMatchTrimmedText(t *testing.T) {
	line := "2024-01-01 10:00:00 INFO request handled in 12ms\n"
	text := strings.Repeat(line, 40)
	spans, err := ChunkSmart(text, 300, 50)
	require.NoError(t, err)
	require.Greater(t, len(spans), 1)
	for _, s := range spans {
		require.Equal(t, len(s.Text), s.EndOffset-s.StartOffset)
		require.Equal(t, text[s.StartOffset:s.EndOffset], s.Text)
	}
}

func TestChunkSmartShortInput(t *testing.T) {
	spans, err := ChunkSmart("one line only", 300, 50)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	require.Equal(t, "one line only", spans[0].Text)
}
