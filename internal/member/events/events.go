// Package events publishes member change notifications.
//
// Events are a side channel: a failed publish is logged by the caller and never
// rolls back the write that produced it.
package events

import (
	"context"
	"sync"
	"time"
)

// Type names a member lifecycle change.
type Type string

const (
	// TypeMaterialized: a seed-only member got its persistent record.
	TypeMaterialized Type = "member_materialized"
	// TypeUpdated: a patch was applied to a persistent record.
	TypeUpdated Type = "member_updated"
)

// Event describes one change to a member record.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Slug       string    `json:"slug"`
	MemberID   int64     `json:"member_id"`
	Fields     []string  `json:"fields,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers member events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory for local runs and tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the published events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
