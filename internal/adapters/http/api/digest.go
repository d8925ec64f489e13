package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	service "github.com/okian/sortie/internal/app"
	"github.com/okian/sortie/internal/domain/prefs"
	"github.com/okian/sortie/internal/domain/types"
	"github.com/okian/sortie/pkg/logger"
)

// maxBodyBytes caps a digest request body.
const maxBodyBytes = 1 << 20

// digestRequest mirrors the OpenAPI schema for POST /digest.
type digestRequest struct {
	Preferences json.RawMessage `json:"preferences"`
	WindowDays  int             `json:"window_days"`
	TopK        int             `json:"top_k"`
	TopN        int             `json:"top_n"`
	Publish     bool            `json:"publish"`
}

func (d digestRequest) validate() error {
	switch {
	case len(d.Preferences) == 0:
		return errors.New("missing preferences")
	case d.WindowDays < 0:
		return errors.New("window_days must be positive")
	case d.TopK < 0:
		return errors.New("top_k must be positive")
	case d.TopN < 0:
		return errors.New("top_n must be positive")
	case d.TopK > 0 && d.TopN > d.TopK:
		return errors.New("top_n must not exceed top_k")
	}
	return nil
}

type digestResponse struct {
	RunID      string            `json:"run_id"`
	Markdown   string            `json:"markdown"`
	Shortlist  []types.Entry     `json:"shortlist"`
	Selected   []types.Entry     `json:"selected"`
	Warnings   []service.Warning `json:"warnings"`
	LatencyMS  int64             `json:"latency_ms"`
	ModelUsed  string            `json:"model_used"`
	ReportPath string            `json:"report_path,omitempty"`
}

// DigestHandler runs the pipeline for posted preferences.
type DigestHandler struct {
	pipeline Pipeline
}

// NewDigestHandler creates a new digest handler.
func NewDigestHandler(p Pipeline) *DigestHandler {
	return &DigestHandler{pipeline: p}
}

// HandlePostDigest handles POST /digest requests.
func (h *DigestHandler) HandlePostDigest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	var req digestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	p, err := prefs.Parse(req.Preferences)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_preferences", err)
		return
	}

	res, err := h.pipeline.Run(r.Context(), p, service.RunOptions{
		WindowDays: req.WindowDays,
		TopK:       req.TopK,
		TopN:       req.TopN,
		DryRun:     !req.Publish,
	})
	if err != nil {
		status, code := statusFor(err)
		logger.Get().Warn(r.Context(), "digest request failed",
			logger.String("code", code),
			logger.Error(err))
		writeError(w, status, code, err)
		return
	}

	writeJSON(w, http.StatusOK, digestResponse{
		RunID:      res.RunID,
		Markdown:   res.Markdown,
		Shortlist:  types.FromEvents(res.Shortlist.Events),
		Selected:   types.FromEvents(res.Selected),
		Warnings:   nonNil(res.Warnings),
		LatencyMS:  res.Latency.Milliseconds(),
		ModelUsed:  res.ModelUsed,
		ReportPath: res.ReportPath,
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrFetch):
		return http.StatusBadGateway, "feed_unavailable"
	case service.IsCancelled(err):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func nonNil(ws []service.Warning) []service.Warning {
	if ws == nil {
		return []service.Warning{}
	}
	return ws
}
