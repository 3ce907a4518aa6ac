package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type IGenerator interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	ModelName() string
	Mode() Mode
}

type GeneratorConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type generator struct {
	provider IChatProvider
	cfg      GeneratorConfig
	mode     Mode
}

func NewGenerator(p IChatProvider, cfg GeneratorConfig) IGenerator {
	mode := ModeReal
	if p.Name() == DemoProviderName {
		mode = ModeDemo
	}
	return &generator{provider: p, cfg: cfg, mode: mode}
}

func (g *generator) Chat(ctx context.Context, messages []Message) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	resp, err := g.provider.Chat(ctx, g.cfg.Model, messages, ChatOptions{
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (g *generator) ModelName() string {
	if g.mode == ModeDemo {
		return DemoProviderName
	}
	return g.cfg.Model
}

func (g *generator) Mode() Mode {
	return g.mode
}
