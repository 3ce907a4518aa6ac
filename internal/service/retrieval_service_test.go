package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func chunkOf(content string, similarity float64, index int) *RetrievedChunk {
	return &RetrievedChunk{Content: content, Similarity: similarity, ChunkIndex: index}
}

// lines builds n numbered sentence-terminated lines.
func lines(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "entry %03d done.\n", i)
	}
	return sb.String()
}

func TestAssembleContextCitesScoreAndChunk(t *testing.T) {
	chunks := []*RetrievedChunk{
		chunkOf("first hit", 0.423, 3),
		chunkOf("second hit", 0.310, 7),
	}
	out := AssembleContext(chunks, 4000)
	require.Contains(t, out, "[Source 1 | similarity: 0.423 | chunk: 3]\nfirst hit")
	require.Contains(t, out, contextSeparator+"[Source 2 | similarity: 0.310 | chunk: 7]\nsecond hit")
	require.LessOrEqual(t, len(out), 4000)
}

func TestAssembleContextNeverExceedsMaxLength(t *testing.T) {
	chunks := []*RetrievedChunk{
		chunkOf(lines(20), 0.9, 0),
		chunkOf(lines(20), 0.8, 1),
		chunkOf(lines(20), 0.7, 2),
	}
	for _, max := range []int{50, 150, 320, 500, 1000} {
		out := AssembleContext(chunks, max)
		require.LessOrEqual(t, len(out), max, "max %d", max)
	}
}

func TestAssembleContextTruncatesAtLineBoundary(t *testing.T) {
	// the second chunk does not fit whole; the kept fragment must end at a
	// complete line, never inside one
	chunks := []*RetrievedChunk{
		chunkOf(lines(10), 0.9, 0),
		chunkOf(lines(30), 0.8, 1),
	}
	out := AssembleContext(chunks, 400)
	require.LessOrEqual(t, len(out), 400)
	require.Contains(t, out, "[Source 2")
	require.True(t, strings.HasSuffix(out, "done."), "got suffix %q", out[len(out)-20:])
}

func TestAssembleContextNeverCutsMidWord(t *testing.T) {
	words := strings.Repeat("alpha beta gamma delta epsilon ", 20)
	out := AssembleContext([]*RetrievedChunk{chunkOf(words, 0.5, 0)}, 200)
	require.NotEmpty(t, out)
	require.LessOrEqual(t, len(out), 200)
	fields := strings.Fields(out)
	require.Contains(t, []string{"alpha", "beta", "gamma", "delta", "epsilon"}, fields[len(fields)-1])
}

func TestAssembleContextOmitsTinyRemainder(t *testing.T) {
	first := chunkOf(lines(10), 0.9, 0)
	firstLen := len(AssembleContext([]*RetrievedChunk{first}, 4000))
	// leave fewer than minFragmentChars for the second chunk
	out := AssembleContext([]*RetrievedChunk{first, chunkOf(lines(30), 0.8, 1)}, firstLen+minFragmentChars-1)
	require.NotContains(t, out, "[Source 2")
	require.Len(t, out, firstLen)
}

func TestAssembleContextEmpty(t *testing.T) {
	require.Empty(t, AssembleContext(nil, 4000))
	require.Empty(t, AssembleContext([]*RetrievedChunk{chunkOf("abc", 0.5, 0)}, 0))
}

func TestBuildSystemPromptWithoutSources(t *testing.T) {
	out := buildSystemPrompt(PromptLogAnalysis, nil, 4000)
	require.Contains(t, out, "No relevant log excerpts")

	out = buildSystemPrompt(PromptTroubleshooting, []*RetrievedChunk{chunkOf("xxxxxxxxxx", 0.5, 0)}, 4000)
	require.Contains(t, out, "Log excerpts:")
	require.Contains(t, out, "xxxxxxxxxx")
}
