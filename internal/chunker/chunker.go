package chunker

import (
	"strings"
	"unicode"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
)

// Span is one text window cut from a document, with the byte offsets it was
// taken from. Chunking is a pure function of its inputs.
type Span struct {
	Text        string
	Index       int
	StartOffset int
	EndOffset   int
}

// Chunk splits text into windows of size chars advancing by size-overlap.
// Consecutive windows share exactly overlap chars. A trailing remainder no
// longer than overlap is folded into the final window instead of producing a
// nearly duplicate chunk, so the windows always cover the whole input.
func Chunk(text string, size, overlap int) ([]Span, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	n := len(text)
	if n == 0 {
		return nil, nil
	}
	step := size - overlap
	var spans []Span
	for start := 0; start < n; start += step {
		end := start + size
		if end >= n {
			end = n
		} else if n-end <= overlap {
			end = n
		}
		spans = append(spans, Span{
			Text:        text[start:end],
			Index:       len(spans),
			StartOffset: start,
			EndOffset:   end,
		})
		if end >= n {
			break
		}
	}
	return spans, nil
}

// ChunkSmart behaves like Chunk but prefers to end each window at a sentence,
// newline or word boundary when one exists past the midpoint of the window.
// Used for ingest, where readable chunk edges improve retrieval quality.
func ChunkSmart(text string, size, overlap int) ([]Span, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	n := len(text)
	if n == 0 {
		return nil, nil
	}
	if n <= size {
		return []Span{{Text: text, Index: 0, StartOffset: 0, EndOffset: n}}, nil
	}
	var spans []Span
	start := 0
	for start < n {
		end := start + size
		if end < n {
			end = adjustBoundary(text, start, end)
		} else {
			end = n
		}
		window := text[start:end]
		trimmed := strings.TrimLeftFunc(window, unicode.IsSpace)
		lead := len(window) - len(trimmed)
		chunk := strings.TrimRightFunc(trimmed, unicode.IsSpace)
		if chunk != "" {
			// offsets point at the trimmed span, so Text always equals
			// the source slice at [StartOffset:EndOffset]
			spans = append(spans, Span{
				Text:        chunk,
				Index:       len(spans),
				StartOffset: start + lead,
				EndOffset:   start + lead + len(chunk),
			})
		}
		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return spans, nil
}

func validate(size, overlap int) error {
	if size <= 0 || overlap < 0 || overlap >= size {
		return appErr.ErrInvalid
	}
	return nil
}

func adjustBoundary(text string, start, end int) int {
	half := start + (end-start)/2
	lastPeriod := strings.LastIndexByte(text[start:end], '.')
	lastNewline := strings.LastIndexByte(text[start:end], '\n')
	boundary := lastPeriod
	if lastNewline > boundary {
		boundary = lastNewline
	}
	if boundary >= 0 && start+boundary > half {
		return start + boundary + 1
	}
	lastSpace := strings.LastIndexByte(text[start:end], ' ')
	if lastSpace >= 0 && start+lastSpace > half {
		return start + lastSpace
	}
	return end
}
