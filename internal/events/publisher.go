// Package events publishes project lifecycle notifications. Publishing is
// best-effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Type names an event. The NATS subject is "<prefix>.<type>".
type Type string

const (
	ProjectCreated      Type = "project.created"
	ProjectCompleted    Type = "project.completed"
	ProjectDeleted      Type = "project.deleted"
	DeveloperAssigned   Type = "project.assigned"
	DeveloperUnassigned Type = "project.unassigned"
	DocumentUploaded    Type = "document.uploaded"
)

// Event is the JSON payload published for every type.
type Event struct {
	Type       Type      `json:"type"`
	ProjectID  string    `json:"projectId"`
	UserID     string    `json:"userId,omitempty"`
	ActorID    string    `json:"actorId,omitempty"`
	DocumentID string    `json:"documentId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events after the change they describe has committed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// NATSPublisher publishes events as JSON on core NATS subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url and publishes under prefix.
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("forgeapi"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Subject returns the subject ev is published on.
func (p *NATSPublisher) Subject(t Type) string {
	return Subject(p.prefix, t)
}

// Publish serialises ev and hands it to the NATS client.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Subject joins prefix and t. An empty prefix yields the bare type.
func Subject(prefix string, t Type) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// Recorder keeps published events in memory. Tests use it to assert on what a
// service emitted.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	var out []Type
	for _, ev := range r.Events() {
		out = append(out, ev.Type)
	}
	return out
}
