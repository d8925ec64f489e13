package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/sortie/internal/domain/model"
	"github.com/okian/sortie/pkg/logger"
)

// Default CKAN settings for the Montréal open-data portal.
const (
	DefaultCKANURL      = "https://donnees.montreal.ca/api/3/action"
	DefaultDatasetQuery = "evenements publics"
	DefaultTimeout      = 60 * time.Second
)

// CKANSource finds the events dataset through a CKAN package search and
// downloads its first CSV or JSON resource.
type CKANSource struct {
	baseURL string
	query   string
	client  *http.Client
	loc     *time.Location
}

// CKANOption configures a CKANSource.
type CKANOption func(*CKANSource)

// WithBaseURL overrides the CKAN action API root.
func WithBaseURL(u string) CKANOption {
	return func(s *CKANSource) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithQuery overrides the dataset search query.
func WithQuery(q string) CKANOption {
	return func(s *CKANSource) {
		if q != "" {
			s.query = q
		}
	}
}

// WithHTTPClient sets the client used for both search and download.
func WithHTTPClient(c *http.Client) CKANOption {
	return func(s *CKANSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLocation sets the zone naive feed timestamps are read in.
func WithLocation(loc *time.Location) CKANOption {
	return func(s *CKANSource) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewCKANSource builds a source with portal defaults.
func NewCKANSource(opts ...CKANOption) *CKANSource {
	s := &CKANSource{
		baseURL: DefaultCKANURL,
		query:   DefaultDatasetQuery,
		client:  &http.Client{Timeout: DefaultTimeout},
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type packageSearch struct {
	Success bool `json:"success"`
	Result  struct {
		Results []struct {
			Name      string     `json:"name"`
			Resources []resource `json:"resources"`
		} `json:"results"`
	} `json:"result"`
}

type resource struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	URL    string `json:"url"`
}

// Fetch resolves the dataset resource and decodes it.
func (s *CKANSource) Fetch(ctx context.Context) ([]model.Event, error) {
	res, format, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	logger.Get().Debug(ctx, "downloading dataset resource",
		logger.String("url", res.URL),
		logger.String("format", string(format)))

	body, err := s.get(ctx, res.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return Decode(body, format, s.loc)
}

func (s *CKANSource) resolve(ctx context.Context) (resource, Format, error) {
	u, err := url.Parse(s.baseURL + "/package_search")
	if err != nil {
		return resource{}, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	q := u.Query()
	q.Set("q", s.query)
	u.RawQuery = q.Encode()

	body, err := s.get(ctx, u.String())
	if err != nil {
		return resource{}, "", err
	}
	defer body.Close()

	var ps packageSearch
	if err := json.NewDecoder(body).Decode(&ps); err != nil {
		return resource{}, "", fmt.Errorf("%w: package search: %w", ErrMalformedFeed, err)
	}
	for _, pkg := range ps.Result.Results {
		for _, r := range pkg.Resources {
			if r.URL == "" {
				continue
			}
			if f, ok := FormatOf(r.Format, r.URL); ok {
				return r, f, nil
			}
		}
	}
	return resource{}, "", ErrNoResource
}

func (s *CKANSource) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, target, resp.StatusCode)
	}
	return resp.Body, nil
}
