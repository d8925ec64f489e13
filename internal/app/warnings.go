package service

import (
	"context"

	"github.com/okian/sortie/pkg/logger"
	"github.com/okian/sortie/pkg/metrics"
)

// WarningKind classifies a non-fatal run condition.
type WarningKind string

// Warning kinds.
const (
	WarnEmptyResult         WarningKind = "empty_result"
	WarnProviderUnavailable WarningKind = "provider_unavailable"
	WarnSummarizerFallback  WarningKind = "summarizer_fallback"
)

// Warning is a degraded-but-successful outcome attached to a run result.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// HasWarning reports whether the result carries a warning of kind k.
func (r *Result) HasWarning(k WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == k {
			return true
		}
	}
	return false
}

func (r *Result) warn(ctx context.Context, log logger.Logger, k WarningKind, msg string) {
	r.Warnings = append(r.Warnings, Warning{Kind: k, Message: msg})
	metrics.RecordWarning(string(k))
	log.Warn(ctx, msg, logger.String("kind", string(k)))
}
