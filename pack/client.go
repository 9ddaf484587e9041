package pack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize caps backend responses to prevent memory exhaustion.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// Client submits assembled packs to the rules backend.
//
// Submission is deliberately single-shot: the backend create is not known
// to be idempotent, so a retry could file the same pack twice. A failed
// submit is reported to the reviewer, who decides whether to resubmit.
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

// NewClient creates a pack submission client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Receipt is the backend's acknowledgement of a pack submission.
type Receipt struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// Submit posts a pack to the backend and returns its receipt. A non-2xx
// response surfaces the backend's message when it sent one.
func (c *Client) Submit(ctx context.Context, sub *Submission) (*Receipt, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("marshal pack: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/packs", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Submitting pack", "name", sub.Name, "rules", len(sub.Rules))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit pack: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg := backendMessage(body); msg != "" {
			return nil, fmt.Errorf("pack submission rejected (status %d): %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("pack submission rejected (status %d)", resp.StatusCode)
	}

	receipt := &Receipt{Name: sub.Name, Status: sub.Status}
	if len(body) > 0 {
		// Best effort: an empty or non-JSON body still counts as accepted.
		_ = json.Unmarshal(body, receipt)
	}

	c.logger.Info("Pack submitted", "name", sub.Name, "rules", len(sub.Rules))
	return receipt, nil
}

// backendMessage pulls a human-readable error out of a failure body, which
// may be {"detail": ...} (the backend's validation shape) or {"message": ...}.
func backendMessage(body []byte) string {
	var e struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}
