// Package weather annotates events with an approximate evening forecast from
// Open-Meteo.
package weather

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/sortie/internal/adapters/resilience"
	"github.com/okian/sortie/internal/domain/model"
	"github.com/okian/sortie/pkg/logger"
	"github.com/okian/sortie/pkg/metrics"
)

// Defaults.
const (
	DefaultURL     = "https://api.open-meteo.com/v1/forecast"
	DefaultRPS     = 5
	DefaultTimeout = 15 * time.Second
	// EveningHour is the local hour the forecast is read at.
	EveningHour = 18

	providerName = "open-meteo"
	hourLayout   = "2006-01-02T15:04"
)

// Enricher looks up forecasts for events that have coordinates.
type Enricher struct {
	baseURL string
	loc     *time.Location
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*forecast]
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithURL overrides the forecast endpoint.
func WithURL(u string) Option {
	return func(e *Enricher) {
		if u != "" {
			e.baseURL = u
		}
	}
}

// WithLocation sets the zone used for the forecast and the evening hour.
func WithLocation(loc *time.Location) Option {
	return func(e *Enricher) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithTimeout bounds each forecast request.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) {
		if d > 0 {
			e.client.Timeout = d
		}
	}
}

// WithRate caps outgoing requests per second.
func WithRate(rps float64) Option {
	return func(e *Enricher) {
		if rps > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(s resilience.Settings) Option {
	return func(e *Enricher) {
		if s.Name == "" {
			s.Name = "weather"
		}
		e.breaker = resilience.New[*forecast](s)
	}
}

// New builds an Enricher with Open-Meteo defaults.
func New(opts ...Option) *Enricher {
	e := &Enricher{
		baseURL: DefaultURL,
		loc:     time.UTC,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRPS), 1),
		breaker: resilience.New[*forecast](resilience.Settings{Name: "weather"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type forecast struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Precipitation []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

// Enrich returns a copy of events with TempC and RainProb set where a
// forecast was found. Lookup failures leave the fields unset.
func (e *Enricher) Enrich(ctx context.Context, events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)

	cache := make(map[string]*forecast)
	failed := 0
	for i := range out {
		ev := &out[i]
		if !ev.HasCoordinates() || ev.Start.IsZero() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		key := coordKey(*ev.Lat, *ev.Lon)
		fc, seen := cache[key]
		if !seen {
			var err error
			fc, err = e.fetch(ctx, *ev.Lat, *ev.Lon)
			if err != nil {
				failed++
				logger.Get().Debug(ctx, "forecast lookup failed",
					logger.String("event_id", ev.ID),
					logger.Error(err))
			}
			cache[key] = fc
		}
		if fc == nil {
			continue
		}
		ev.TempC, ev.RainProb = fc.at(Evening(ev.Start, e.loc), e.loc)
	}
	if failed > 0 {
		logger.Get().Warn(ctx, "weather unavailable for some events", logger.Int("lookups_failed", failed))
	}
	return out
}

// Evening returns EveningHour on the local day of t.
func Evening(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), EveningHour, 0, 0, 0, loc)
}

func coordKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 3, 64) + "," + strconv.FormatFloat(lon, 'f', 3, 64)
}

func (e *Enricher) fetch(ctx context.Context, lat, lon float64) (*forecast, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	fc, err := e.breaker.Execute(func() (*forecast, error) {
		return e.request(ctx, lat, lon)
	})
	metrics.RecordProviderLatency(providerName, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordProviderError(providerName)
		return nil, err
	}
	return fc, nil
}

func (e *Enricher) request(ctx context.Context, lat, lon float64) (*forecast, error) {
	u, err := url.Parse(e.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("hourly", "temperature_2m,precipitation_probability")
	q.Set("timezone", e.loc.String())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var fc forecast
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &fc, nil
}

// at picks the hourly slot nearest target.
func (f *forecast) at(target time.Time, loc *time.Location) (temp, rain *float64) {
	h := f.Hourly
	n := min(len(h.Time), len(h.Temperature), len(h.Precipitation))
	best, bestDiff := -1, time.Duration(math.MaxInt64)
	for i := 0; i < n; i++ {
		t, err := time.ParseInLocation(hourLayout, h.Time[i], loc)
		if err != nil {
			continue
		}
		d := t.Sub(target)
		if d < 0 {
			d = -d
		}
		if d < bestDiff {
			best, bestDiff = i, d
		}
	}
	if best < 0 {
		return nil, nil
	}
	if v := h.Temperature[best]; v != nil {
		r := math.Round(*v*10) / 10
		temp = &r
	}
	if v := h.Precipitation[best]; v != nil {
		r := math.Round(math.Max(0, math.Min(100, *v)))
		rain = &r
	}
	return temp, rain
}
