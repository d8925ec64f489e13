// Package embedding adapts langchaingo embedding clients to the scorer's
// Embedder contract.
package embedding

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/okian/sortie/internal/adapters/resilience"
	"github.com/okian/sortie/pkg/logger"
	"github.com/okian/sortie/pkg/metrics"
)

// Supported providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Settings selects and configures the embedding backend.
type Settings struct {
	Provider      string
	Model         string
	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	// Breaker guards provider calls; zero values use resilience defaults.
	Breaker resilience.Settings
}

// Embedder calls a langchaingo embedder behind a circuit breaker.
type Embedder struct {
	client   embeddings.Embedder
	model    string
	provider string
	breaker  *gobreaker.CircuitBreaker[[][]float32]
}

// New builds an Embedder for the configured provider.
func New(s Settings) (*Embedder, error) {
	var client embeddings.Embedder
	switch s.Provider {
	case ProviderOllama:
		llm, err := ollama.New(
			ollama.WithModel(s.Model),
			ollama.WithServerURL(s.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		client, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return nil, ErrMissingAPIKey
		}
		opts := []openai.Option{
			openai.WithToken(s.OpenAIAPIKey),
			openai.WithEmbeddingModel(s.Model),
		}
		if s.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(s.OpenAIBaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		client, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, s.Provider)
	}
	return NewWithClient(client, s.Provider, s.Model, s.Breaker), nil
}

// NewWithClient wraps an existing langchaingo embedder.
func NewWithClient(client embeddings.Embedder, provider, model string, bs resilience.Settings) *Embedder {
	if bs.Name == "" {
		bs.Name = "embed-" + provider
	}
	return &Embedder{
		client:   client,
		model:    model,
		provider: provider,
		breaker:  resilience.New[[][]float32](bs),
	}
}

// EmbedBatch embeds texts in one provider call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	start := time.Now()
	vectors, err := e.breaker.Execute(func() ([][]float32, error) {
		return e.client.EmbedDocuments(ctx, texts)
	})
	elapsed := time.Since(start)
	metrics.RecordProviderLatency(e.provider, float64(elapsed.Milliseconds()))
	metrics.RecordEmbeddingBatch()
	if err != nil {
		metrics.RecordProviderError(e.provider)
		logger.Get().Debug(ctx, "embedding batch failed",
			logger.String("model", e.model),
			logger.Int("texts", len(texts)),
			logger.Duration("took", elapsed),
			logger.Error(err),
		)
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), len(texts))
	}
	return vectors, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}
