// Package events publishes review lifecycle events to NATS.
//
// Subjects follow "rules.<domain>.<action>" so consumers can subscribe per
// event type or wildcard a whole domain. Publishing is fire-and-forget:
// review operations never fail because the event bus is down.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subject constants for review lifecycle events.
const (
	SubjectCandidateIntake    = "rules.candidate.intake"
	SubjectCandidateApproved  = "rules.candidate.approved"
	SubjectCandidateEdited    = "rules.candidate.edited"
	SubjectCandidateDiscarded = "rules.candidate.discarded"
	SubjectPackSubmitted      = "rules.pack.submitted"
)

// CandidateEvent is published on candidate lifecycle transitions.
type CandidateEvent struct {
	CandidateID string    `json:"candidate_id"`
	RuleID      string    `json:"rule_id,omitempty"`
	Category    string    `json:"category,omitempty"`
	Status      string    `json:"status"`
	ProjectID   string    `json:"project_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// IntakeEvent is published when an extraction run lands candidates.
type IntakeEvent struct {
	ProjectID string    `json:"project_id"`
	Category  string    `json:"category"`
	Count     int       `json:"count"`
	Fallback  bool      `json:"fallback"`
	Timestamp time.Time `json:"timestamp"`
}

// PackEvent is published when a pack is submitted.
type PackEvent struct {
	Name      string    `json:"name"`
	ProjectID string    `json:"project_id,omitempty"`
	RuleCount int       `json:"rule_count"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits events to a NATS connection. A nil Publisher, or one
// created without a connection, is valid and publishes nothing, so callers
// never need a bus-configured branch.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewPublisher creates a publisher over an existing connection. conn may be
// nil when no event bus is configured.
func NewPublisher(conn *nats.Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Connect dials a NATS server and returns a publisher over the connection.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return NewPublisher(conn, logger), nil
}

// Close drains and closes the underlying connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
	p.conn.Close()
}

// Publish marshals the event and publishes it on subject. Failures are
// logged, never returned.
func (p *Publisher) Publish(subject string, event any) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

// Candidate publishes a candidate lifecycle event on the subject matching
// the action.
func (p *Publisher) Candidate(subject string, ev CandidateEvent) {
	ev.Timestamp = time.Now().UTC()
	p.Publish(subject, ev)
}

// Intake publishes an extraction intake event.
func (p *Publisher) Intake(ev IntakeEvent) {
	ev.Timestamp = time.Now().UTC()
	p.Publish(SubjectCandidateIntake, ev)
}

// PackSubmitted publishes a pack submission event.
func (p *Publisher) PackSubmitted(ev PackEvent) {
	ev.Timestamp = time.Now().UTC()
	p.Publish(SubjectPackSubmitted, ev)
}
