package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harmonizehq/ruleforge/review"
)

// maxResponseSize caps directory responses to prevent memory exhaustion.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// Client talks to the project directory service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a directory client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the known projects. The directory may respond with a bare
// array or a {"projects": [...]} wrapper; both shapes are accepted.
func (c *Client) List(ctx context.Context) ([]Project, error) {
	body, err := c.get(ctx, "/api/projects")
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := json.Unmarshal(body, &projects); err == nil {
		return projects, nil
	}

	var wrapped struct {
		Projects []Project `json:"projects"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("parse projects response: %w", err)
	}
	return wrapped.Projects, nil
}

// Create registers a new project and returns the created record.
func (c *Client) Create(ctx context.Context, p Project) (*Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("project name is required")
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal project: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/projects", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("create project failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var created Project
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("parse created project: %w", err)
	}
	return &created, nil
}

// Rules returns the candidate-shaped rule records already persisted for a
// project. They arrive pre-approved: the reviewer vetted them in an earlier
// session.
func (c *Client) Rules(ctx context.Context, projectID string) ([]review.Candidate, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}

	body, err := c.get(ctx, "/api/projects/"+url.PathEscape(projectID)+"/rules")
	if err != nil {
		return nil, err
	}

	var candidates []review.Candidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		var wrapped struct {
			Rules []review.Candidate `json:"rules"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("parse project rules: %w", err)
		}
		candidates = wrapped.Rules
	}

	for i := range candidates {
		if candidates[i].Status == "" {
			candidates[i].Status = review.StatusApproved
		}
		candidates[i] = review.Retag(candidates[i])
	}
	return candidates, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Directory request failed", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("directory request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Ref converts a project into the session reference the review engine
// carries around.
func (p *Project) Ref() review.ProjectRef {
	return review.ProjectRef{ID: p.ID, Name: p.Name}
}
