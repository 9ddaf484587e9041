// Package server exposes the review workflow over HTTP: project selection,
// extraction intake, candidate actions addressed by list position, and pack
// assembly. One server instance owns one review session.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harmonizehq/ruleforge/docsource"
	"github.com/harmonizehq/ruleforge/events"
	"github.com/harmonizehq/ruleforge/extract"
	"github.com/harmonizehq/ruleforge/pack"
	"github.com/harmonizehq/ruleforge/project"
	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/rule"
)

// maxRequestBodySize limits request bodies to prevent DoS.
const maxRequestBodySize = 8 << 20 // 8 MB, guideline documents included

// Server is the review HTTP server.
type Server struct {
	session   *review.Session
	intake    *extract.Service
	projects  *project.Client
	packs     *pack.Client
	packStore *pack.Manager
	publisher *events.Publisher
	fetcher   URLFetcher
	metrics   *Metrics
	logger    *slog.Logger

	corsOrigins []string
}

// URLFetcher retrieves a guideline web page and converts it to a text
// document. Satisfied by *docsource.Fetcher.
type URLFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*docsource.Document, error)
}

// Option configures a Server.
type Option func(*Server)

// WithProjects sets the project directory client.
func WithProjects(c *project.Client) Option {
	return func(s *Server) { s.projects = c }
}

// WithPackClient sets the pack submission client.
func WithPackClient(c *pack.Client) Option {
	return func(s *Server) { s.packs = c }
}

// WithPackStore sets the local pack store.
func WithPackStore(m *pack.Manager) Option {
	return func(s *Server) { s.packStore = m }
}

// WithFetcher sets the web page fetcher for URL intake.
func WithFetcher(f URLFetcher) Option {
	return func(s *Server) { s.fetcher = f }
}

// WithPublisher sets the event publisher.
func WithPublisher(p *events.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithCORSOrigins restricts browser access to the given origins. Empty
// means any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// New creates a review server over the given session and intake service.
func New(session *review.Session, intake *extract.Service, opts ...Option) *Server {
	s := &Server{
		session: session,
		intake:  intake,
		metrics: NewMetrics(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics returns the server's metrics set, so the intake service's
// fallback hook can be wired to it.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// SetIntake replaces the intake service. Construction order puts the
// metrics hook inside the service, so callers wiring the hook create the
// server first and set the service after.
func (s *Server) SetIntake(intake *extract.Service) {
	s.intake = intake
}

// Handler returns the routed HTTP handler with CORS and metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/rules/summary", s.handleSummary)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("POST /api/projects/select", s.handleSelectProject)

	mux.HandleFunc("POST /api/extract-rule", s.handleExtractText)
	mux.HandleFunc("POST /api/extract-from-document", s.handleExtractDocument)
	mux.HandleFunc("POST /api/extract-from-url", s.handleExtractFromURL)

	mux.HandleFunc("GET /api/candidates", s.handleListCandidates)
	mux.HandleFunc("POST /api/candidates/filter", s.handleSetFilter)
	mux.HandleFunc("POST /api/candidates/{index}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/candidates/{index}/discard", s.handleDiscard)
	mux.HandleFunc("POST /api/candidates/{index}/edit", s.handleEdit)
	mux.HandleFunc("POST /api/candidates/{index}/severity", s.handleSeverity)

	mux.HandleFunc("GET /api/packs", s.handleListPacks)
	mux.HandleFunc("POST /api/packs", s.handleSubmitPack)

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	return s.cors(s.instrument(mux))
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("Review server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if pattern := r.Pattern; pattern != "" {
			route = pattern
		}
		s.metrics.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to write JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Summary())
}

// candidateIndex parses the {index} path value into a store position.
func (s *Server) candidateIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || i < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid candidate index")
		return 0, false
	}
	return i, true
}

// actionError maps review errors onto HTTP statuses.
func (s *Server) actionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "candidate not found")
	case errors.Is(err, review.ErrBadTransition):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, review.ErrBadSeverity):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, review.ErrNoProject):
		s.writeError(w, http.StatusPreconditionFailed, "no project selected")
	case errors.Is(err, review.ErrBusy):
		s.writeError(w, http.StatusConflict, "operation already in progress")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// publishCandidate emits a lifecycle event for the candidate at position i.
func (s *Server) publishCandidate(subject string, i int) {
	if s.publisher == nil {
		return
	}
	c, err := s.session.Get(i)
	if err != nil {
		return
	}
	ev := events.CandidateEvent{
		CandidateID: c.ID,
		RuleID:      c.DerivedID,
		Category:    string(c.Category),
		Status:      string(c.Status),
	}
	if ref := s.session.Project(); ref != nil {
		ev.ProjectID = ref.ID
	}
	s.publisher.Candidate(subject, ev)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	i, ok := s.candidateIndex(w, r)
	if !ok {
		return
	}
	if err := s.session.Approve(i); err != nil {
		s.actionError(w, err)
		return
	}
	s.publishCandidate(events.SubjectCandidateApproved, i)
	c, _ := s.session.Get(i)
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	i, ok := s.candidateIndex(w, r)
	if !ok {
		return
	}
	if err := s.session.Discard(i); err != nil {
		s.actionError(w, err)
		return
	}
	s.publishCandidate(events.SubjectCandidateDiscarded, i)
	c, _ := s.session.Get(i)
	s.writeJSON(w, http.StatusOK, c)
}

// EditRequest is the body for POST /api/candidates/{index}/edit.
type EditRequest struct {
	YAML string `json:"yaml"`
}

// EditResponse returns the updated candidate plus a warning when the new
// text does not parse. The edit is still accepted in that case.
type EditResponse struct {
	Candidate review.Candidate `json:"candidate"`
	Warning   string           `json:"warning,omitempty"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	i, ok := s.candidateIndex(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.YAML == "" {
		s.writeError(w, http.StatusBadRequest, "yaml is required")
		return
	}

	parseErr, err := s.session.EditText(i, req.YAML)
	if err != nil {
		s.actionError(w, err)
		return
	}
	s.publishCandidate(events.SubjectCandidateEdited, i)

	c, _ := s.session.Get(i)
	resp := EditResponse{Candidate: c}
	if parseErr != nil {
		resp.Warning = parseErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// SeverityRequest is the body for POST /api/candidates/{index}/severity.
type SeverityRequest struct {
	Severity string `json:"severity"`
}

func (s *Server) handleSeverity(w http.ResponseWriter, r *http.Request) {
	i, ok := s.candidateIndex(w, r)
	if !ok {
		return
	}

	var req SeverityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.session.SetSeverity(i, rule.Severity(req.Severity)); err != nil {
		s.actionError(w, err)
		return
	}
	s.publishCandidate(events.SubjectCandidateEdited, i)
	c, _ := s.session.Get(i)
	s.writeJSON(w, http.StatusOK, c)
}

// ListCandidatesResponse is the response for GET /api/candidates.
type ListCandidatesResponse struct {
	Candidates []review.Candidate `json:"candidates"`
	Summary    review.Summary     `json:"summary"`
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Query parameters override the stored filter for this read only.
	criteria := s.session.Criteria()
	if q.Has("category") || q.Has("q") {
		criteria = review.Criteria{
			Category: rule.Category(q.Get("category")),
			Query:    q.Get("q"),
		}
	}

	store := s.session.Snapshot()
	s.writeJSON(w, http.StatusOK, ListCandidatesResponse{
		Candidates: review.Project(store, criteria),
		Summary:    review.Summarize(store),
	})
}

// FilterRequest is the body for POST /api/candidates/filter.
type FilterRequest struct {
	Category string `json:"category"`
	Query    string `json:"q"`
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Category != "" && !rule.Category(req.Category).IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	s.session.SetCriteria(review.Criteria{
		Category: rule.Category(req.Category),
		Query:    req.Query,
	})
	s.writeJSON(w, http.StatusOK, s.session.View())
}
