package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/sortie/internal/adapters/cache"
	"github.com/okian/sortie/internal/adapters/embedding"
	"github.com/okian/sortie/internal/adapters/feed"
	"github.com/okian/sortie/internal/adapters/report"
	"github.com/okian/sortie/internal/adapters/resilience"
	"github.com/okian/sortie/internal/adapters/summarizer"
	"github.com/okian/sortie/internal/adapters/weather"
	"github.com/okian/sortie/internal/config"
	"github.com/okian/sortie/internal/domain/ranking"
	"github.com/okian/sortie/internal/domain/scoring"
	"github.com/okian/sortie/pkg/logger"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheBadger = "badger"
	CacheNone   = "none"
)

// FromConfig wires every collaborator described by cfg. The returned
// cleanup releases the embedding store and must be called once the service
// is no longer used.
func FromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, func() error, error) {
	log := logger.Get()
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: timezone: %w", config.ErrInvalidConfig, err)
	}
	breaker := resilience.Settings{
		Failures: uint32(cfg.BreakerFailures), //nolint:gosec // validated >= 1
		Cooldown: cfg.BreakerCooldown(),
	}
	cleanup := func() error { return nil }

	var src Source
	switch cfg.FeedSource {
	case "file":
		src = feed.NewFileSource(cfg.FeedPath, loc)
	default:
		src = feed.NewCKANSource(
			feed.WithBaseURL(cfg.CKANURL),
			feed.WithQuery(cfg.DatasetQuery),
			feed.WithHTTPClient(&http.Client{Timeout: cfg.FeedTimeout()}),
			feed.WithLocation(loc),
		)
	}

	emb, err := embedding.New(embedding.Settings{
		Provider:      cfg.EmbedProvider,
		Model:         cfg.EmbedModel,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		Breaker:       breaker,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("embedding provider: %w", err)
	}

	scoringOpts := []scoring.Option{
		scoring.WithBatchSize(cfg.EmbedBatchSize),
		scoring.WithTimeout(cfg.EmbedTimeout()),
		scoring.WithDescriptionCap(cfg.DescriptionCap),
		scoring.WithMemo(cache.NewMemo(cache.WithMaxSize(cfg.MemoSize))),
	}
	switch cfg.CacheBackend {
	case CacheFile:
		scoringOpts = append(scoringOpts, scoring.WithStore(cache.NewFileStore(cfg.CachePath)))
	case CacheBadger:
		bs, err := cache.OpenBadgerStore(cfg.CachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open embedding cache: %w", err)
		}
		scoringOpts = append(scoringOpts, scoring.WithStore(bs))
		cleanup = bs.Close
	}

	all := []Option{
		WithSource(src),
		WithScorer(scoring.New(emb, scoringOpts...)),
		WithLocation(loc),
		WithWeights(ranking.Weights{Emb: cfg.EmbWeight, Borough: cfg.BoroughWeight}),
		WithWindowDays(cfg.WindowDays),
		WithTopK(cfg.TopK),
		WithTopN(cfg.TopN),
		WithPublisher(report.NewPublisher(cfg.ReportPath)),
		WithIncremental(cfg.Incremental),
	}
	if cfg.StatePath != "" {
		all = append(all, WithCheckpoint(feed.NewCheckpoint(cfg.StatePath)))
	}
	if cfg.WeatherEnabled {
		all = append(all, WithEnricher(weather.New(
			weather.WithURL(cfg.WeatherURL),
			weather.WithLocation(loc),
			weather.WithRate(cfg.WeatherRPS),
			weather.WithTimeout(cfg.WeatherTimeout()),
			weather.WithBreaker(breaker),
		)))
	}
	if cfg.LLMProvider != summarizer.ProviderNone {
		llm, err := summarizer.New(summarizer.Settings{
			Provider:      cfg.LLMProvider,
			Model:         cfg.LLMModel,
			OllamaHost:    cfg.OllamaHost,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
			Timeout:       cfg.LLMTimeout(),
			Location:      loc,
			Breaker:       breaker,
		})
		if err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("llm provider: %w", err)
		}
		all = append(all, WithSummarizer(llm))
	}

	log.Info(ctx, "pipeline wired",
		logger.String("feed", cfg.FeedSource),
		logger.String("embed_provider", cfg.EmbedProvider),
		logger.String("embed_model", cfg.EmbedModel),
		logger.String("cache", cfg.CacheBackend),
		logger.String("llm", cfg.LLMProvider),
		logger.Bool("weather", cfg.WeatherEnabled),
	)
	return New(append(all, opts...)...), cleanup, nil
}
