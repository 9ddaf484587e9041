// Package extract implements extraction intake: the client for the external
// rule-extraction service, retry and error classification for that edge, and
// the deterministic fallback generator that keeps the review workflow usable
// offline.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/rule"
)

// maxResponseSize limits the extraction response body to prevent memory
// exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Context carries the review context an extraction batch is issued with.
type Context struct {
	// RuleType is the requested rule category.
	RuleType rule.Category

	// RulePack is the target pack name hint stamped into extracted rules.
	RulePack string

	// Author is the requesting reviewer.
	Author string

	// ProjectID is the owning project. Intake requires it.
	ProjectID string
}

// Source is the raw material for one extraction batch: pasted text or an
// uploaded document. Exactly one of Text or FileContent should be set.
type Source struct {
	Text string

	Filename    string
	FileContent []byte
}

// IsZero reports whether the source carries no material.
func (s Source) IsZero() bool {
	return strings.TrimSpace(s.Text) == "" && len(s.FileContent) == 0
}

// Client talks to the extraction backend with retry and transient/fatal
// error classification.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithAPIKey sets the bearer token sent with every extraction request.
func WithAPIKey(key string) ClientOption {
	return func(client *Client) {
		client.apiKey = key
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates an extraction client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // extraction rides on an LLM
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireCandidate is the extraction response record. The backend names the
// canonical text field "yaml".
type wireCandidate struct {
	YAML          string        `json:"yaml"`
	Confidence    float64       `json:"confidence"`
	Category      rule.Category `json:"category,omitempty"`
	DuplicateOf   string        `json:"duplicate_of,omitempty"`
	Similarity    *float64      `json:"similarity,omitempty"`
	SourceSnippet string        `json:"source_snippet,omitempty"`
}

// Extract submits a source for extraction and returns the raw candidates.
// Transient failures (network, 5xx) are retried per the retry config; 4xx
// and malformed responses fail immediately. Callers are expected to retag
// the result before storing it.
func (c *Client) Extract(ctx context.Context, src Source, ictx Context) ([]review.Candidate, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryConfig.backoff(attempt - 1)
			c.logger.Debug("Retrying extraction", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, NewTransientError(ctx.Err())
			case <-time.After(delay):
			}
		}

		candidates, err := c.extractOnce(ctx, src, ictx)
		if err == nil {
			return candidates, nil
		}
		lastErr = err
		if IsFatal(err) {
			return nil, err
		}
		c.logger.Warn("Extraction attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (c *Client) extractOnce(ctx context.Context, src Source, ictx Context) ([]review.Candidate, error) {
	req, err := c.buildRequest(ctx, src, ictx)
	if err != nil {
		return nil, NewFatalError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("extraction request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read extraction response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, NewTransientError(fmt.Errorf("extraction service error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	case resp.StatusCode != http.StatusOK:
		return nil, NewFatalError(fmt.Errorf("extraction rejected (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	return parseResponse(body)
}

// buildRequest assembles the multipart form the extraction contract expects:
// a text or file part plus the review context fields.
func (c *Client) buildRequest(ctx context.Context, src Source, ictx Context) (*http.Request, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	endpoint := c.baseURL + "/api/extract-rule"
	if len(src.FileContent) > 0 {
		endpoint = c.baseURL + "/api/extract-from-document"
		part, err := form.CreateFormFile("file", src.Filename)
		if err != nil {
			return nil, fmt.Errorf("build file part: %w", err)
		}
		if _, err := part.Write(src.FileContent); err != nil {
			return nil, fmt.Errorf("write file part: %w", err)
		}
	} else {
		if err := form.WriteField("text", src.Text); err != nil {
			return nil, fmt.Errorf("write text field: %w", err)
		}
	}

	fields := map[string]string{
		"rule_type":  ictx.RuleType.String(),
		"rule_pack":  ictx.RulePack,
		"author":     ictx.Author,
		"project_id": ictx.ProjectID,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := form.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write %s field: %w", name, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// parseResponse accepts both contract shapes: a single candidate object or
// a {"rules": [...]} batch.
func parseResponse(body []byte) ([]review.Candidate, error) {
	var batch struct {
		Rules []wireCandidate `json:"rules"`
	}
	if err := json.Unmarshal(body, &batch); err == nil && batch.Rules != nil {
		return fromWire(batch.Rules), nil
	}

	var single wireCandidate
	if err := json.Unmarshal(body, &single); err != nil || single.YAML == "" {
		return nil, NewFatalError(fmt.Errorf("unexpected extraction response shape: %s", truncate(string(body), 200)))
	}
	return fromWire([]wireCandidate{single}), nil
}

func fromWire(wire []wireCandidate) []review.Candidate {
	candidates := make([]review.Candidate, 0, len(wire))
	for _, w := range wire {
		c := review.NewCandidate(CleanYAML(w.YAML))
		c.Confidence = w.Confidence
		c.Category = w.Category
		c.DuplicateOf = w.DuplicateOf
		c.Similarity = w.Similarity
		c.SourceSnippet = w.SourceSnippet
		candidates = append(candidates, c)
	}
	return candidates
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
