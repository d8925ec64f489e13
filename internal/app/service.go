// Package service runs the weekly digest pipeline: fetch, filter, score,
// boost, rank, enrich, select, compose and publish.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sortie/internal/adapters/feed"
	"github.com/okian/sortie/internal/adapters/summarizer"
	"github.com/okian/sortie/internal/domain/boost"
	"github.com/okian/sortie/internal/domain/filter"
	"github.com/okian/sortie/internal/domain/model"
	"github.com/okian/sortie/internal/domain/ranking"
	"github.com/okian/sortie/internal/domain/scoring"
	"github.com/okian/sortie/pkg/logger"
	"github.com/okian/sortie/pkg/metrics"
)

// Source yields the raw events of one dataset snapshot.
type Source interface {
	Fetch(ctx context.Context) ([]model.Event, error)
}

// Scorer sets EmbeddingScore on events.
type Scorer interface {
	Score(ctx context.Context, events []model.Event, likes string) (scoring.Report, error)
}

// Enricher annotates shortlisted events, e.g. with weather.
type Enricher interface {
	Enrich(ctx context.Context, events []model.Event) []model.Event
}

// Summarizer picks the final events and writes the digest.
type Summarizer interface {
	// Select returns shortlist positions in digest order.
	Select(ctx context.Context, shortlist []model.Event, prefs model.Preferences, n int) ([]int, error)
	Compose(ctx context.Context, events []model.Event, runDate time.Time) (string, error)
	Model() string
}

// Publisher stores the digest and returns where it went.
type Publisher interface {
	Publish(ctx context.Context, markdown string) (string, error)
}

// Checkpointer remembers the last successful run.
type Checkpointer interface {
	Load() (time.Time, error)
	Save(t time.Time) error
}

// Defaults.
const (
	DefaultWindowDays = filter.DefaultWindowDays
	DefaultTopK       = ranking.DefaultTopK
	DefaultTopN       = 10
)

// Pipeline stage names used in logs and metrics.
const (
	stageFetch   = "fetch"
	stageFilter  = "filter"
	stageScore   = "score"
	stageRank    = "rank"
	stageEnrich  = "enrich"
	stageSelect  = "select"
	stageCompose = "compose"
	stagePublish = "publish"
)

// Service implements the digest pipeline and the API dependencies.
type Service struct {
	// run serializes pipeline runs.
	run sync.Mutex

	statsMu sync.RWMutex
	last    *Summary

	source     Source
	scorer     Scorer
	enricher   Enricher
	summarizer Summarizer
	fallback   *summarizer.Fallback
	publisher  Publisher
	checkpoint Checkpointer

	loc         *time.Location
	weights     ranking.Weights
	windowDays  int
	topK        int
	topN        int
	incremental bool
	now         func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the event source.
func WithSource(src Source) Option {
	return func(s *Service) { s.source = src }
}

// WithScorer sets the similarity scorer.
func WithScorer(sc Scorer) Option {
	return func(s *Service) { s.scorer = sc }
}

// WithEnricher sets the shortlist enricher. Nil disables enrichment.
func WithEnricher(e Enricher) Option {
	return func(s *Service) { s.enricher = e }
}

// WithSummarizer sets the final selector and composer.
func WithSummarizer(sum Summarizer) Option {
	return func(s *Service) {
		if sum != nil {
			s.summarizer = sum
		}
	}
}

// WithPublisher sets where digests are written. Nil disables publishing.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCheckpoint sets the last-run store used by incremental runs.
func WithCheckpoint(c Checkpointer) Option {
	return func(s *Service) { s.checkpoint = c }
}

// WithIncremental keeps only events starting after the last run.
func WithIncremental(on bool) Option {
	return func(s *Service) { s.incremental = on }
}

// WithLocation sets the zone for the event window and digest dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithWeights sets the embedding and borough blend weights.
func WithWeights(w ranking.Weights) Option {
	return func(s *Service) { s.weights = w }
}

// WithWindowDays sets the default event window.
func WithWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithTopK sets the default shortlist length.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithTopN sets the default number of events in the digest.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. A source and a scorer are required before Run.
func New(opts ...Option) *Service {
	s := &Service{
		loc:        time.UTC,
		weights:    ranking.DefaultWeights(),
		windowDays: DefaultWindowDays,
		topK:       DefaultTopK,
		topN:       DefaultTopN,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fallback = summarizer.NewFallback(s.loc)
	if s.summarizer == nil {
		s.summarizer = s.fallback
	}
	if s.logger == nil {
		s.logger = logger.Named("pipeline")
	}
	return s
}

// RunOptions override per-run defaults. Zero values keep the defaults.
type RunOptions struct {
	WindowDays int
	TopK       int
	TopN       int
	// DryRun skips publishing and the checkpoint.
	DryRun bool
}

// Shortlist is the outcome of the ranking core.
type Shortlist struct {
	Events  []model.Event
	Filter  filter.Stats
	Scoring scoring.Report
	Window  filter.Window
}

// Result describes one pipeline run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	Fetched    int
	Shortlist  Shortlist
	Selected   []model.Event
	Markdown   string
	ReportPath string
	ModelUsed  string
	Warnings   []Warning
	Latency    time.Duration
}

// Summary is the last-run snapshot served by the stats endpoint.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Fetched    int       `json:"fetched"`
	Kept       int       `json:"kept"`
	Shortlist  int       `json:"shortlist"`
	Selected   int       `json:"selected"`
	Warnings   []Warning `json:"warnings"`
	LatencyMS  int64     `json:"latency_ms"`
	ModelUsed  string    `json:"model_used"`
	ReportPath string    `json:"report_path,omitempty"`
	Outcome    string    `json:"outcome"`
}

func (s *Service) resolve(o RunOptions) RunOptions {
	if o.WindowDays <= 0 {
		o.WindowDays = s.windowDays
	}
	if o.TopK <= 0 {
		o.TopK = s.topK
	}
	if o.TopN <= 0 {
		o.TopN = s.topN
	}
	return o
}

// Rank filters, scores, boosts and ranks events against prefs. events is
// not modified. Only cancellation of ctx is returned as an error.
func (s *Service) Rank(ctx context.Context, prefs model.Preferences, events []model.Event, o RunOptions) (Shortlist, error) {
	if s.scorer == nil {
		return Shortlist{}, ErrNotConfigured
	}
	o = s.resolve(o)
	sl := Shortlist{Window: filter.NewWindow(s.now().In(s.loc), o.WindowDays)}

	start := time.Now()
	kept, stats := filter.New(prefs.HardFilters).Apply(events, sl.Window)
	sl.Filter = stats
	observeStage(stageFilter, start, len(kept))
	for reason, n := range stats.Rejected {
		metrics.RecordFilterRejections(string(reason), n)
	}

	start = time.Now()
	rep, err := s.scorer.Score(ctx, kept, prefs.Likes)
	sl.Scoring = rep
	if err != nil {
		return sl, err
	}
	observeStage(stageScore, start, len(kept))
	metrics.RecordEmbeddingCache(rep.CacheHits(), rep.Embedded+rep.Failed)
	metrics.RecordEmbeddingFailures(rep.Failed)

	start = time.Now()
	boost.NewRanker(prefs.HardFilters.BoroughAllow).Apply(kept)
	sl.Events = ranking.Rank(kept, s.weights, o.TopK)
	observeStage(stageRank, start, len(sl.Events))
	for i := range sl.Events {
		metrics.ObserveCombinedScore(sl.Events[i].CombinedScore)
	}
	metrics.UpdateShortlistSize(len(sl.Events))
	return sl, nil
}

// Run executes one full pipeline pass. Runs are serialized. Feed failures
// are fatal; provider, weather and LLM failures degrade into warnings.
func (s *Service) Run(ctx context.Context, prefs model.Preferences, o RunOptions) (*Result, error) {
	if s.source == nil || s.scorer == nil {
		return nil, ErrNotConfigured
	}
	s.run.Lock()
	defer s.run.Unlock()

	o = s.resolve(o)
	res := &Result{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.logger.With(logger.String("run_id", res.RunID))
	begin := time.Now()

	err := s.execute(ctx, log, prefs, o, res)
	res.Latency = time.Since(begin)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case len(res.Warnings) > 0:
		outcome = "degraded"
	}
	metrics.RecordRun(outcome)
	s.remember(res, outcome)

	if err != nil {
		log.Error(ctx, "pipeline run failed", logger.Error(err), logger.Duration("took", res.Latency))
		return res, err
	}
	metrics.UpdateLastRun(res.StartedAt.Unix())
	log.Info(ctx, "pipeline run finished",
		logger.Int("selected", len(res.Selected)),
		logger.Int("warnings", len(res.Warnings)),
		logger.String("model", res.ModelUsed),
		logger.Duration("took", res.Latency))
	return res, nil
}

func (s *Service) execute(ctx context.Context, log logger.Logger, prefs model.Preferences, o RunOptions, res *Result) error {
	start := time.Now()
	events, err := s.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	res.Fetched = len(events)
	observeStage(stageFetch, start, len(events))
	log.Info(ctx, "rows fetched", logger.Int("rows", len(events)))

	if s.incremental && s.checkpoint != nil {
		last, err := s.checkpoint.Load()
		if err != nil {
			log.Warn(ctx, "checkpoint unreadable, running full", logger.Error(err))
		} else {
			events = feed.Since(events, last)
			log.Info(ctx, "incremental rows", logger.Int("rows", len(events)))
		}
	}

	sl, err := s.Rank(ctx, prefs, events, o)
	res.Shortlist = sl
	if err != nil {
		return err
	}
	log.Info(ctx, "rows after filters", logger.Int("rows", sl.Filter.Kept))
	log.Info(ctx, "shortlist rows", logger.Int("rows", len(sl.Events)))
	s.checkScoring(ctx, log, sl.Scoring, res)
	if len(sl.Events) == 0 {
		res.warn(ctx, log, WarnEmptyResult, "no events matched the filters in the window")
	}

	shortlist := sl.Events
	if s.enricher != nil && len(shortlist) > 0 {
		start = time.Now()
		shortlist = s.enricher.Enrich(ctx, shortlist)
		observeStage(stageEnrich, start, len(shortlist))
	}

	start = time.Now()
	res.ModelUsed = s.summarizer.Model()
	picks, err := s.summarizer.Select(ctx, shortlist, prefs, o.TopN)
	if err != nil {
		res.warn(ctx, log, WarnSummarizerFallback, "final selection fell back to rank order: "+err.Error())
		res.Selected = head(shortlist, o.TopN)
	} else {
		res.Selected = summarizer.Pick(shortlist, picks)
	}
	observeStage(stageSelect, start, len(res.Selected))

	start = time.Now()
	runDate := res.StartedAt.In(s.loc)
	md, err := s.summarizer.Compose(ctx, res.Selected, runDate)
	if err != nil {
		res.warn(ctx, log, WarnSummarizerFallback, "digest composed without llm: "+err.Error())
		md, _ = s.fallback.Compose(ctx, res.Selected, runDate)
		res.ModelUsed = s.fallback.Model()
	}
	res.Markdown = md
	observeStage(stageCompose, start, len(res.Selected))

	if o.DryRun || s.publisher == nil {
		return ctx.Err()
	}
	start = time.Now()
	path, err := s.publisher.Publish(ctx, md)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	res.ReportPath = path
	observeStage(stagePublish, start, len(res.Selected))
	log.Info(ctx, "digest published", logger.String("path", path))

	if s.checkpoint != nil {
		if err := s.checkpoint.Save(res.StartedAt); err != nil {
			log.Warn(ctx, "checkpoint not saved", logger.Error(err))
		}
	}
	return nil
}

func (s *Service) checkScoring(ctx context.Context, log logger.Logger, rep scoring.Report, res *Result) {
	switch {
	case rep.ProviderDown:
		res.warn(ctx, log, WarnProviderUnavailable, fmt.Sprintf("embedding provider unavailable; %d texts not embedded", rep.Failed))
	case rep.LikesUnavailable:
		res.warn(ctx, log, WarnProviderUnavailable, "likes statement not embedded; similarity scores are 0")
	case rep.Failed > 0:
		res.warn(ctx, log, WarnProviderUnavailable, fmt.Sprintf("%d texts not embedded; their events score 0", rep.Failed))
	}
	if rep.StoreErr != nil {
		log.Warn(ctx, "embedding cache unavailable", logger.Error(rep.StoreErr))
	}
	log.Debug(ctx, "scoring report",
		logger.Int("texts", rep.Texts),
		logger.Int("cache_hits", rep.CacheHits()),
		logger.Int("embedded", rep.Embedded),
		logger.Int("batches", rep.Batches))
}

func head(events []model.Event, n int) []model.Event {
	if n > len(events) {
		n = len(events)
	}
	out := make([]model.Event, n)
	copy(out, events[:n])
	return out
}

func observeStage(stage string, start time.Time, n int) {
	metrics.RecordStageDuration(stage, float64(time.Since(start).Milliseconds()))
	metrics.UpdateStageEvents(stage, n)
}

func (s *Service) remember(res *Result, outcome string) {
	sum := &Summary{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt,
		Fetched:    res.Fetched,
		Kept:       res.Shortlist.Filter.Kept,
		Shortlist:  len(res.Shortlist.Events),
		Selected:   len(res.Selected),
		Warnings:   res.Warnings,
		LatencyMS:  res.Latency.Milliseconds(),
		ModelUsed:  res.ModelUsed,
		ReportPath: res.ReportPath,
		Outcome:    outcome,
	}
	s.statsMu.Lock()
	s.last = sum
	s.statsMu.Unlock()
}

// LastRun returns the summary of the most recent run, if any.
func (s *Service) LastRun() (Summary, bool) {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	if s.last == nil {
		return Summary{}, false
	}
	return *s.last, true
}

// IsCancelled reports whether err stems from context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
