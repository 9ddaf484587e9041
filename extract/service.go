package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/harmonizehq/ruleforge/review"
)

// ErrNoSource indicates intake was attempted with neither text nor a
// document.
var ErrNoSource = errors.New("no source text or document provided")

// Service is the intake service: it drives the extraction client and
// degrades to the deterministic fallback so intake never hard-fails once
// its preconditions hold.
type Service struct {
	client *Client
	logger *slog.Logger

	// fallbackHook, when set, is invoked each time the degraded path runs.
	// The HTTP layer uses it to count fallbacks.
	fallbackHook func()
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFallbackHook registers a callback fired when the fallback generator
// stands in for the live backend.
func WithFallbackHook(hook func()) ServiceOption {
	return func(s *Service) {
		s.fallbackHook = hook
	}
}

// NewService creates an intake service. client may be nil when no extraction
// backend is configured; every intake then uses the fallback generator.
func NewService(client *Client, opts ...ServiceOption) *Service {
	s := &Service{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Intake turns a source into reviewable candidates.
//
// Preconditions fail fast with no request: a project must be selected and
// the source must be non-empty. Past those, intake cannot fail: a live
// result with one or more candidates is authoritative; a failing, timed
// out, or empty backend response degrades silently to the fallback catalog
// for the requested rule type. Every returned candidate is retagged and has
// status new.
func (s *Service) Intake(ctx context.Context, src Source, ictx Context) ([]review.Candidate, error) {
	if ictx.ProjectID == "" {
		return nil, review.ErrNoProject
	}
	if src.IsZero() {
		return nil, ErrNoSource
	}

	category := ictx.RuleType
	if !category.IsValid() {
		category = DetectCategory(src.Text)
	}

	if s.client != nil {
		candidates, err := s.client.Extract(ctx, src, ictx)
		if err == nil && len(candidates) > 0 {
			for i := range candidates {
				if candidates[i].Category == "" {
					candidates[i].Category = category
				}
				candidates[i] = review.Retag(candidates[i])
			}
			s.logger.Debug("Extraction succeeded", "count", len(candidates), "project", ictx.ProjectID)
			return candidates, nil
		}
		if err != nil {
			s.logger.Warn("Extraction degraded to fallback", "error", err)
		} else {
			s.logger.Warn("Extraction returned no candidates, using fallback")
		}
	}

	if s.fallbackHook != nil {
		s.fallbackHook()
	}
	return Fallback(category, ictx.RulePack, s.logger), nil
}
