package ai

import (
	"context"
	"fmt"

	appErr "github.com/logsage/logsage/internal/pkg/errors"
)

type IEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimension() int
	Mode() Mode
}

type EmbedderConfig struct {
	Model     string
	Dimension int
	BatchSize int
	MaxChars  int
}

type embedder struct {
	provider IEmbedProvider
	cfg      EmbedderConfig
	mode     Mode
}

// NewEmbedder binds a provider to a model and adds batching and input
// truncation. Mode is fixed here: a provider without a credential is replaced
// by the caller with the demo provider before this point.
func NewEmbedder(p IEmbedProvider, cfg EmbedderConfig) IEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	mode := ModeReal
	if p.Name() == DemoProviderName {
		mode = ModeDemo
	}
	return &embedder{provider: p, cfg: cfg, mode: mode}
}

func (e *embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prepared := make([]string, len(texts))
	for i, text := range texts {
		if e.cfg.MaxChars > 0 && len(text) > e.cfg.MaxChars {
			text = text[:e.cfg.MaxChars]
		}
		prepared[i] = text
	}
	result := make([][]float32, 0, len(prepared))
	for start := 0; start < len(prepared); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		batch, err := e.provider.EmbedBatch(ctx, e.cfg.Model, prepared[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: embed batch [%d:%d]: %v", appErr.ErrEmbedProvider, start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: batch size mismatch: got %d want %d", appErr.ErrEmbedProvider, len(batch), end-start)
		}
		for _, vec := range batch {
			if e.cfg.Dimension > 0 && len(vec) != e.cfg.Dimension {
				return nil, fmt.Errorf("%w: dimension mismatch: got %d want %d", appErr.ErrEmbedProvider, len(vec), e.cfg.Dimension)
			}
		}
		result = append(result, batch...)
	}
	return result, nil
}

func (e *embedder) ModelName() string {
	if e.mode == ModeDemo {
		return DemoProviderName
	}
	return e.cfg.Model
}

func (e *embedder) Dimension() int {
	return e.cfg.Dimension
}

func (e *embedder) Mode() Mode {
	return e.mode
}
