package ai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strings"
)

// Demo providers stand in when no credential is configured. Their output is
// synthetic and must never be mistaken for real model output, so the provider
// name is "demo" and callers surface it via a used_fallback flag.

const DemoProviderName = "demo"

type demoConfig struct {
	Dimension int `json:"dimension"`
}

type demoChatProvider struct{}

var demoResponses = []struct {
	keyword string
	text    string
}{
	{"error", "Based on the log data, there are error patterns that need attention. Common causes include network connectivity issues, configuration problems, or resource constraints. Check system resources and configuration files first."},
	{"anomal", "Some anomalies were detected in the log patterns. These could indicate unusual system behavior: volume spikes and error rate increases that warrant investigation."},
	{"summar", "Summary of the log data: the system shows normal operation with intermittent issues. Key findings include periodic error spikes and some unusual patterns that may need monitoring."},
	{"help", "This assistant helps you understand log patterns, identify issues, troubleshoot problems, and get insights about system behavior. Ask about errors, anomalies, or a summary of your logs."},
}

const demoDefaultResponse = "Demo mode: no AI provider credential is configured. " +
	"This is a canned response, not real model output. The service can still " +
	"analyze patterns and surface log information, but answers are not generated by an LLM."

func (p *demoChatProvider) Name() string {
	return DemoProviderName
}

func (p *demoChatProvider) Available() bool {
	return true
}

func (p *demoChatProvider) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error) {
	_ = ctx
	_ = model
	_ = opts
	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			lastUser = strings.ToLower(messages[i].Content)
			break
		}
	}
	for _, item := range demoResponses {
		if strings.Contains(lastUser, item.keyword) {
			return item.text + "\n\n(demo mode response)", nil
		}
	}
	return demoDefaultResponse, nil
}

type demoEmbedProvider struct {
	dimension int
}

func (p *demoEmbedProvider) Name() string {
	return DemoProviderName
}

func (p *demoEmbedProvider) Available() bool {
	return true
}

// EmbedBatch produces vectors of the configured dimensionality, seeded from a
// hash of the text so repeated calls are deterministic. The values carry no
// semantic signal; similarity scores over them are noise.
func (p *demoEmbedProvider) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	_ = ctx
	_ = model
	result := make([][]float32, 0, len(texts))
	for _, text := range texts {
		hash := sha256.Sum256([]byte(text))
		seed := int64(binary.BigEndian.Uint64(hash[:8]))
		rng := rand.New(rand.NewSource(seed))
		vec := make([]float32, p.dimension)
		for i := range vec {
			vec[i] = rng.Float32()
		}
		result = append(result, vec)
	}
	return result, nil
}

func createDemoChatFactory(args interface{}) (IChatProvider, error) {
	_ = args
	return &demoChatProvider{}, nil
}

func createDemoEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &demoConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	return &demoEmbedProvider{dimension: cfg.Dimension}, nil
}

func init() {
	RegisterChat(DemoProviderName, createDemoChatFactory)
	RegisterEmbed(DemoProviderName, createDemoEmbedFactory)
}
