package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonizehq/ruleforge/docsource"
	"github.com/harmonizehq/ruleforge/extract"
	"github.com/harmonizehq/ruleforge/pack"
	"github.com/harmonizehq/ruleforge/project"
	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/rule"
)

// newTestServer wires a server with no extraction backend, so every intake
// takes the fallback path, and no external services.
func newTestServer(t *testing.T, opts ...Option) (*Server, *review.Session) {
	t.Helper()
	session := review.NewSession()
	srv := New(session, extract.NewService(nil), opts...)
	return srv, session
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func seedCandidates(session *review.Session, texts ...string) {
	session.SelectProject(review.ProjectRef{ID: "p1", Name: "Test"})
	var cs []review.Candidate
	for _, text := range texts {
		cs = append(cs, review.Retag(review.NewCandidate(text)))
	}
	session.ReplaceAll(cs)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractRequiresProject(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/extract-rule",
		ExtractRequest{Text: "some guideline text"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestExtractFallbackLandsCandidates(t *testing.T) {
	srv, session := newTestServer(t)
	session.SelectProject(review.ProjectRef{ID: "p1"})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/extract-rule",
		ExtractRequest{Text: "OPTIMIZE the report", RuleType: "performance", RulePack: "abap-core"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[IntakeResponse](t, rec)
	require.NotEmpty(t, resp.Candidates)
	for _, c := range resp.Candidates {
		assert.Equal(t, rule.CategoryPerformance, c.Category)
		assert.Equal(t, review.StatusNew, c.Status)
	}
	assert.Equal(t, len(resp.Candidates), session.Len(), "candidates appended to the session")
	assert.Equal(t, len(resp.Candidates), resp.Summary.Performance)
}

type stubFetcher struct {
	doc   *docsource.Document
	err   error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (*docsource.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func TestExtractFromURL(t *testing.T) {
	fetcher := &stubFetcher{doc: &docsource.Document{
		Title: "Performance Guidelines",
		Text: "Reports must not OPTIMIZE by trial and error; measure before tuning.\n\n" +
			"short\n\n" +
			"Nested SELECT loops over large tables are forbidden in report programs.",
	}}
	srv, session := newTestServer(t, WithFetcher(fetcher))
	session.SelectProject(review.ProjectRef{ID: "p1"})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/extract-from-url",
		ExtractURLRequest{URL: "https://docs.example.com/perf", RuleType: "performance"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, fetcher.calls)

	resp := decode[IntakeResponse](t, rec)
	require.NotEmpty(t, resp.Candidates)
	for _, c := range resp.Candidates {
		assert.Equal(t, rule.CategoryPerformance, c.Category)
	}
	assert.Equal(t, len(resp.Candidates), session.Len())
}

func TestExtractFromURLRejectsInvalidURL(t *testing.T) {
	fetcher := &stubFetcher{}
	srv, session := newTestServer(t, WithFetcher(fetcher))
	session.SelectProject(review.ProjectRef{ID: "p1"})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/extract-from-url",
		ExtractURLRequest{URL: "http://docs.example.com/perf"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fetcher.calls, "invalid URL must be rejected before fetching")
}

func TestExtractFromURLFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	srv, session := newTestServer(t, WithFetcher(fetcher))
	session.SelectProject(review.ProjectRef{ID: "p1"})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/extract-from-url",
		ExtractURLRequest{URL: "https://docs.example.com/perf"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Zero(t, session.Len(), "no candidates on fetch failure")
}

func TestExtractFromURLWithoutFetcher(t *testing.T) {
	srv, session := newTestServer(t)
	session.SelectProject(review.ProjectRef{ID: "p1"})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/extract-from-url",
		ExtractURLRequest{URL: "https://docs.example.com/perf"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExtractRejectsInvalidRuleType(t *testing.T) {
	srv, session := newTestServer(t)
	session.SelectProject(review.ProjectRef{ID: "p1"})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/extract-rule",
		ExtractRequest{Text: "x", RuleType: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractFromDocumentUpload(t *testing.T) {
	srv, session := newTestServer(t)
	session.SelectProject(review.ProjectRef{ID: "p1"})

	var buf bytes.Buffer
	boundary := "testboundary"
	fmt.Fprintf(&buf, "--%s\r\nContent-Disposition: form-data; name=\"rule_type\"\r\n\r\nnaming\r\n", boundary)
	fmt.Fprintf(&buf, "--%s\r\nContent-Disposition: form-data; name=\"file\"; filename=\"guide.txt\"\r\n\r\nNaming guidelines body\r\n", boundary)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	req := httptest.NewRequest(http.MethodPost, "/api/extract-from-document", &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[IntakeResponse](t, rec)
	require.NotEmpty(t, resp.Candidates)
	assert.Equal(t, rule.CategoryNaming, resp.Candidates[0].Category)
}

func TestCandidateActions(t *testing.T) {
	srv, session := newTestServer(t)
	seedCandidates(session,
		"id: r1\nseverity: MINOR\ntype: code\n",
		"id: r2\nseverity: MAJOR\ntype: naming\n")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/candidates/0/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[review.Candidate](t, rec)
	assert.Equal(t, review.StatusApproved, c.Status)

	rec = doJSON(t, h, http.MethodPost, "/api/candidates/1/discard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c = decode[review.Candidate](t, rec)
	assert.Equal(t, review.StatusDiscarded, c.Status)

	// Discarded candidates reject further actions.
	rec = doJSON(t, h, http.MethodPost, "/api/candidates/1/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/candidates/9/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/candidates/zero/approve", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditCandidateWithWarning(t *testing.T) {
	srv, session := newTestServer(t)
	seedCandidates(session, "id: r1\nseverity: MINOR\n")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/candidates/0/edit",
		EditRequest{YAML: "id: [broken"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[EditResponse](t, rec)
	assert.Equal(t, review.StatusEdited, resp.Candidate.Status)
	assert.NotEmpty(t, resp.Warning, "unparseable edit is accepted with a warning")

	rec = doJSON(t, h, http.MethodPost, "/api/candidates/0/edit",
		EditRequest{YAML: "id: r1-fixed\nseverity: MINOR\n"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[EditResponse](t, rec)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, "r1-fixed", resp.Candidate.DerivedID)
}

func TestSetSeverity(t *testing.T) {
	srv, session := newTestServer(t)
	seedCandidates(session, "id: r1\nseverity: MINOR\n")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/candidates/0/severity",
		SeverityRequest{Severity: "CRITICAL"})
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[review.Candidate](t, rec)
	assert.Equal(t, "CRITICAL", c.DerivedSeverity)
	assert.Contains(t, c.CanonicalText, "CRITICAL")

	rec = doJSON(t, h, http.MethodPost, "/api/candidates/0/severity",
		SeverityRequest{Severity: "WHATEVER"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCandidatesWithFilter(t *testing.T) {
	srv, session := newTestServer(t)
	seedCandidates(session,
		"id: naming-rule\ntype: naming\nmessage: prefix locals\n",
		"id: perf-rule\ntype: performance\nmessage: no select star\n")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/candidates?category=naming", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ListCandidatesResponse](t, rec)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "naming-rule", resp.Candidates[0].DerivedID)
	assert.Equal(t, 2, resp.Summary.Total, "summary counts the whole working set")

	rec = doJSON(t, h, http.MethodGet, "/api/candidates?q=select+star", nil)
	resp = decode[ListCandidatesResponse](t, rec)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "perf-rule", resp.Candidates[0].DerivedID)
}

func TestSelectProjectLoadsExistingRules(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/rules") {
			_, _ = w.Write([]byte(`{"rules":[{"yaml":"id: existing\nseverity: MINOR\n","confidence":1}]}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer backend.Close()

	srv, session := newTestServer(t, WithProjects(project.NewClient(backend.URL)))
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/projects/select",
		SelectProjectRequest{ID: "p1", Name: "Test"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, 1, session.Len())
	c, err := session.Get(0)
	require.NoError(t, err)
	assert.Equal(t, review.StatusApproved, c.Status, "existing project rules arrive pre-approved")
	assert.Equal(t, "existing", c.DerivedID)
}

func TestSubmitPack(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pk-1","name":"abap-core","status":"draft"}`))
	}))
	defer backend.Close()

	store := pack.NewManager(t.TempDir())
	srv, session := newTestServer(t,
		WithPackClient(pack.NewClient(backend.URL)),
		WithPackStore(store),
	)
	seedCandidates(session, "id: r1\nseverity: MINOR\n")
	require.NoError(t, session.Approve(0))
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/packs", SubmitPackRequest{Name: "abap-core"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[pack.Receipt](t, rec)
	assert.Equal(t, "pk-1", receipt.ID)

	// The submission is persisted locally.
	assert.True(t, store.Exists("abap-core"))

	rec = doJSON(t, h, http.MethodGet, "/api/packs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitPackWithNoApprovedCandidates(t *testing.T) {
	srv, session := newTestServer(t, WithPackClient(pack.NewClient("http://unused")))
	seedCandidates(session, "id: r1\nseverity: MINOR\n")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/packs", SubmitPackRequest{Name: "empty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, WithCORSOrigins([]string{"https://review.example.com"}))
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://review.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://review.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, http.MethodGet, "/api/health", nil)

	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ruleforge_http_requests_total")
}
