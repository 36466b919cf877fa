// Package events publishes medication plan lifecycle changes to downstream consumers.
// Publishing happens after the owning transaction commits and is best effort.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type names a plan lifecycle change.
type Type string

const (
	PlanCreated   Type = "plan.created"
	PlanConfirmed Type = "plan.confirmed"
	PlanRejected  Type = "plan.rejected"
)

// Event is the message body sent for each lifecycle change.
type Event struct {
	Type       Type      `json:"type"`
	PlanID     string    `json:"plan_id"`
	PatientID  string    `json:"patient_id"`
	Status     string    `json:"status"`
	Dosage     *float64  `json:"dosage,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
