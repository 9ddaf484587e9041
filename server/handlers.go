package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harmonizehq/ruleforge/docsource"
	"github.com/harmonizehq/ruleforge/events"
	"github.com/harmonizehq/ruleforge/extract"
	"github.com/harmonizehq/ruleforge/pack"
	"github.com/harmonizehq/ruleforge/project"
	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/rule"
)

// maxUploadSize limits document uploads.
const maxUploadSize = 8 << 20 // 8 MB

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if s.projects == nil {
		s.writeError(w, http.StatusServiceUnavailable, "project directory not configured")
		return
	}
	projects, err := s.projects.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list projects", "error", err)
		s.writeError(w, http.StatusBadGateway, "failed to list projects")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// CreateProjectRequest is the body for POST /api/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if s.projects == nil {
		s.writeError(w, http.StatusServiceUnavailable, "project directory not configured")
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := s.projects.Create(r.Context(), project.Project{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.logger.Error("Failed to create project", "name", req.Name, "error", err)
		s.writeError(w, http.StatusBadGateway, "failed to create project")
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

// SelectProjectRequest is the body for POST /api/projects/select.
type SelectProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// handleSelectProject switches the session to a project and loads its
// pre-approved rules into the working set.
func (s *Server) handleSelectProject(w http.ResponseWriter, r *http.Request) {
	var req SelectProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	s.session.SelectProject(review.ProjectRef{ID: req.ID, Name: req.Name})

	// Existing rules arrive pre-approved; a directory failure leaves the
	// working set empty rather than failing the switch.
	if s.projects != nil {
		if existing, err := s.projects.Rules(r.Context(), req.ID); err == nil {
			s.session.ReplaceAll(existing)
		} else {
			s.logger.Warn("Failed to load project rules", "project", req.ID, "error", err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"project": s.session.Project(),
		"summary": s.session.Summary(),
	})
}

// ExtractRequest is the body for POST /api/extract-rule.
type ExtractRequest struct {
	Text     string `json:"text"`
	RuleType string `json:"rule_type,omitempty"`
	RulePack string `json:"rule_pack,omitempty"`
	Author   string `json:"author,omitempty"`
}

// IntakeResponse is the response for both extraction endpoints.
type IntakeResponse struct {
	Candidates []review.Candidate `json:"candidates"`
	Summary    review.Summary     `json:"summary"`
}

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.runIntake(w, r, extract.Source{Text: req.Text}, req.RuleType, req.RulePack, req.Author)
}

// handleExtractDocument accepts a multipart upload with a "file" part plus
// the same form fields as the text endpoint.
func (s *Server) handleExtractDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	src := extract.Source{Filename: header.Filename, FileContent: content}
	s.runIntake(w, r, src,
		r.FormValue("rule_type"), r.FormValue("rule_pack"), r.FormValue("author"))
}

// ExtractURLRequest asks for extraction from a guideline web page.
type ExtractURLRequest struct {
	URL      string `json:"url"`
	RuleType string `json:"rule_type"`
	RulePack string `json:"rule_pack"`
	Author   string `json:"author"`
}

// handleExtractFromURL fetches a guideline page, reduces it to its leading
// paragraphs, and runs the intake on the resulting text.
func (s *Server) handleExtractFromURL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req ExtractURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if s.fetcher == nil {
		s.writeError(w, http.StatusServiceUnavailable, "web intake not configured")
		return
	}
	if err := docsource.ValidateURL(req.URL); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		s.logger.Warn("Failed to fetch guideline page", "url", req.URL, "error", err)
		s.writeError(w, http.StatusBadGateway, "failed to fetch page")
		return
	}

	paragraphs := docsource.SplitParagraphs(doc.Text, docsource.MaxParagraphs)
	if len(paragraphs) == 0 {
		s.writeError(w, http.StatusUnprocessableEntity, "page has no extractable text")
		return
	}

	src := extract.Source{Text: strings.Join(paragraphs, "\n\n")}
	s.runIntake(w, r, src, req.RuleType, req.RulePack, req.Author)
}

// runIntake claims the intake flag, runs the extraction under the project
// captured at issue time, and appends the results.
func (s *Server) runIntake(w http.ResponseWriter, r *http.Request, src extract.Source, ruleType, rulePack, author string) {
	if ruleType != "" && !rule.Category(ruleType).IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid rule_type")
		return
	}

	issued, err := s.session.BeginIntake()
	if err != nil {
		s.actionError(w, err)
		return
	}
	defer s.session.EndIntake()

	s.metrics.intakeRuns.Inc()

	candidates, err := s.intake.Intake(r.Context(), src, extract.Context{
		RuleType:  rule.Category(ruleType),
		RulePack:  rulePack,
		Author:    author,
		ProjectID: issued.ID,
	})
	if err != nil {
		s.actionError(w, err)
		return
	}

	// Results land against the project the intake was issued for. If the
	// reviewer switched projects mid-flight, drop the batch.
	current := s.session.Project()
	if current == nil || current.ID != issued.ID {
		s.logger.Warn("Discarding intake results after project switch", "issued", issued.ID)
		s.writeError(w, http.StatusConflict, "project changed during extraction")
		return
	}
	s.session.Append(candidates...)

	if s.publisher != nil {
		category := ""
		if len(candidates) > 0 {
			category = string(candidates[0].Category)
		}
		s.publisher.Intake(events.IntakeEvent{
			ProjectID: issued.ID,
			Category:  category,
			Count:     len(candidates),
		})
	}

	s.writeJSON(w, http.StatusOK, IntakeResponse{
		Candidates: candidates,
		Summary:    s.session.Summary(),
	})
}

// SubmitPackRequest is the body for POST /api/packs.
type SubmitPackRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	if s.packStore == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"packs": []any{}})
		return
	}
	result, err := s.packStore.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list packs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list packs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"packs": result.Records})
}

// handleSubmitPack assembles the accepting candidates into a pack, submits
// it, and persists the record locally.
func (s *Server) handleSubmitPack(w http.ResponseWriter, r *http.Request) {
	var req SubmitPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.session.BeginSubmit(); err != nil {
		s.actionError(w, err)
		return
	}
	defer s.session.EndSubmit()

	sub, err := pack.Assemble(req.Name, s.session.Snapshot(), s.session.Project())
	if err != nil {
		s.metrics.packSubmissions.WithLabelValues("rejected").Inc()
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.packs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "pack backend not configured")
		return
	}

	receipt, err := s.packs.Submit(r.Context(), sub)
	if err != nil {
		s.metrics.packSubmissions.WithLabelValues("failed").Inc()
		s.logger.Error("Pack submission failed", "name", req.Name, "error", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.metrics.packSubmissions.WithLabelValues("accepted").Inc()

	if s.packStore != nil {
		slug := pack.Slugify(req.Name)
		now := time.Now()
		record := &pack.Record{Slug: slug, Submission: sub, Receipt: receipt, CreatedAt: now, SubmittedAt: &now}
		if saveErr := s.packStore.Save(r.Context(), record); saveErr != nil {
			s.logger.Warn("Failed to save pack record", "slug", slug, "error", saveErr)
		}
	}

	if s.publisher != nil {
		s.publisher.PackSubmitted(events.PackEvent{
			Name:      req.Name,
			ProjectID: sub.ProjectID,
			RuleCount: len(sub.Rules),
		})
	}

	s.writeJSON(w, http.StatusCreated, receipt)
}
