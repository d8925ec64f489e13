package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/okian/sortie/internal/adapters/resilience"
	"github.com/okian/sortie/internal/domain/model"
	"github.com/okian/sortie/pkg/logger"
	"github.com/okian/sortie/pkg/metrics"
)

// Supported providers.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	temperature = 0.2
	titleLimit  = 200
	descLimit   = 700
)

// DefaultTimeout bounds one model call.
const DefaultTimeout = 60 * time.Second

const selectionSystem = "You are an events concierge. Choose the best events for the user.\n" +
	"Output must be JSON only (no extra prose). English only."

const composeSystem = "You are a concise newsletter editor.\n" +
	"Write in clear, accessible English only (no French or bilingual output).\n" +
	"Translate any French titles/descriptions to natural English, preserving proper nouns.\n" +
	"Style: scannable Markdown, short lines, neutral/helpful tone, no hype, no invented facts."

// Settings selects and configures the chat model.
type Settings struct {
	Provider      string
	Model         string
	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Timeout       time.Duration
	Location      *time.Location
	Breaker       resilience.Settings
}

// LLM asks a chat model to pick and write up the week's events.
type LLM struct {
	llm      llms.Model
	model    string
	provider string
	timeout  time.Duration
	loc      *time.Location
	breaker  *gobreaker.CircuitBreaker[string]
}

// New builds an LLM summarizer for the configured provider.
func New(s Settings) (*LLM, error) {
	var (
		m   llms.Model
		err error
	)
	switch s.Provider {
	case ProviderOllama:
		m, err = ollama.New(
			ollama.WithModel(s.Model),
			ollama.WithServerURL(s.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
	case ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return nil, ErrMissingAPIKey
		}
		opts := []openai.Option{
			openai.WithToken(s.OpenAIAPIKey),
			openai.WithModel(s.Model),
		}
		if s.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(s.OpenAIBaseURL))
		}
		m, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, s.Provider)
	}
	return NewWithModel(m, s), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(m llms.Model, s Settings) *LLM {
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.Breaker.Name == "" {
		s.Breaker.Name = "llm-" + s.Provider
	}
	return &LLM{
		llm:      m,
		model:    s.Model,
		provider: s.Provider,
		timeout:  s.Timeout,
		loc:      s.Location,
		breaker:  resilience.New[string](s.Breaker),
	}
}

// Model returns the chat model name.
func (l *LLM) Model() string { return l.model }

type digestEvent struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Borough   string   `json:"borough"`
	EventType string   `json:"event_type"`
	Start     string   `json:"start"`
	IsFree    bool     `json:"is_free"`
	Audience  string   `json:"audience"`
	TempC     *float64 `json:"temp_c"`
	RainProb  *float64 `json:"rain_prob"`
	Desc      string   `json:"desc"`
}

func (l *LLM) compact(events []model.Event) []digestEvent {
	out := make([]digestEvent, 0, len(events))
	for i := range events {
		e := &events[i]
		start := ""
		if !e.Start.IsZero() {
			start = e.Start.In(l.loc).Format(time.RFC3339)
		}
		out = append(out, digestEvent{
			Title:     truncate(e.Title, titleLimit),
			URL:       e.URL,
			Borough:   e.Borough,
			EventType: e.EventType,
			Start:     start,
			IsFree:    e.IsFree(),
			Audience:  e.Audience,
			TempC:     e.TempC,
			RainProb:  e.RainProb,
			Desc:      truncate(e.Description, descLimit),
		})
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Select asks the model for n URLs from the shortlist and returns their
// shortlist positions. Answers are kept only when they name shortlist URLs; a
// URL shared by several events maps to the best ranked one. Short answers are
// padded in rank order, URL-less events included.
func (l *LLM) Select(ctx context.Context, shortlist []model.Event, prefs model.Preferences, n int) ([]int, error) {
	if len(shortlist) == 0 || n <= 0 {
		return []int{}, nil
	}
	events, err := json.Marshal(l.compact(shortlist))
	if err != nil {
		return nil, err
	}
	order, err := json.Marshal(prefs.HardFilters.BoroughAllow)
	if err != nil {
		return nil, err
	}
	human := "Task: From the shortlist, pick the best events for the user.\n" +
		`- Return ONLY JSON: {"selected_urls": ["<url1>", "<url2>", ...]}` + "\n" +
		fmt.Sprintf("- Choose exactly %d items if possible; if shortlist is smaller, choose all.\n", n) +
		"- Consider: user likes (free-text), borough preference order (earlier is better), weather (avoid heavy rain for outdoor),\n" +
		"  audience, event types, price (prefer free/low-cost when appropriate), and variety across picks when possible.\n" +
		"- Translate French internally if needed, but output JSON only.\n\n" +
		"User likes (free text):\n" + strings.TrimSpace(prefs.Likes) + "\n\n" +
		"Borough preference order (earlier is better):\n" + string(order) + "\n\n" +
		"Shortlist (array of events as JSON):\n" + string(events) + "\n\n" +
		`Respond with JSON ONLY like: {"selected_urls": ["https://example.com/event1"]}`

	text, err := l.generate(ctx, selectionSystem, human)
	if err != nil {
		return nil, err
	}
	urls, err := parseSelection(text)
	if err != nil {
		return nil, err
	}

	byURL := make(map[string]int, len(shortlist))
	for i := range shortlist {
		u := shortlist[i].URL
		if u == "" {
			continue
		}
		if _, ok := byURL[u]; !ok {
			byURL[u] = i
		}
	}
	picked := make([]int, 0, n)
	seen := make(map[int]struct{}, n)
	for _, u := range urls {
		if len(picked) == n {
			break
		}
		i, ok := byURL[u]
		if !ok {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		picked = append(picked, i)
	}
	return pad(picked, shortlist, n), nil
}

func parseSelection(text string) ([]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no json object", ErrBadSelection)
	}
	var sel struct {
		SelectedURLs []string `json:"selected_urls"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &sel); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSelection, err)
	}
	return sel.SelectedURLs, nil
}

// Compose asks the model to write the digest. Empty input is rendered
// without a model call.
func (l *LLM) Compose(ctx context.Context, events []model.Event, runDate time.Time) (string, error) {
	if len(events) == 0 {
		return Markdown(nil, runDate, l.loc), nil
	}
	data, err := json.Marshal(l.compact(events))
	if err != nil {
		return "", err
	}
	human := fmt.Sprintf("Create a weekly Markdown newsletter for Montreal events (week of %s).\n", runDate.Format(time.DateOnly)) +
		"You must build the structure yourself (do not assume fixed counts):\n" +
		" - Title and a 1-2 sentence intro.\n" +
		" - Sections:\n" +
		"   1) Top Picks\n" +
		"   2) Free or Low-Cost\n" +
		"   3) Outdoor Options (note temp/rain if available)\n" +
		"Rules:\n" +
		" - Use only the events provided below. Do not invent events.\n" +
		" - Each bullet: one line with title, borough, date/time, optional price tag (free), and brief weather tag.\n" +
		" - Include the event URL on the next line after each bullet.\n" +
		" - Avoid duplicates across sections; include fewer bullets rather than forcing a number.\n" +
		" - English-only output. Valid Markdown. No YAML front matter.\n\n" +
		"EVENTS JSON:\n" + string(data)

	text, err := l.generate(ctx, composeSystem, human)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (l *LLM) generate(ctx context.Context, system, human string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	text, err := l.breaker.Execute(func() (string, error) {
		resp, err := l.llm.GenerateContent(ctx, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, human),
		}, llms.WithTemperature(temperature))
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			return "", ErrEmptyResponse
		}
		return strings.TrimSpace(resp.Choices[0].Content), nil
	})
	elapsed := time.Since(start)
	metrics.RecordProviderLatency(l.provider, float64(elapsed.Milliseconds()))
	if err != nil {
		metrics.RecordProviderError(l.provider)
		logger.Get().Warn(ctx, "llm call failed",
			logger.String("model", l.model),
			logger.Duration("took", elapsed),
			logger.Error(err))
		return "", fmt.Errorf("llm generate: %w", err)
	}
	return text, nil
}
