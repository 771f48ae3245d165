// Package notify delivers post-commit notifications about reconciliation
// outcomes. Publishing never blocks the caller: notifications are queued and
// fanned out to sinks by a Dispatcher.
package notify

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies the notification payload.
type Kind string

const (
	KindTrainingCompleted Kind = "training.completed"
	KindEventClosed       Kind = "event.closed"
	KindAttendanceRemoved Kind = "attendance.removed"
	KindResetCodeIssued   Kind = "reset_code.issued"
)

// Notification is a single outbound message. Only the fields relevant to
// Kind are set.
type Notification struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	OccurrenceID    string    `json:"occurrence_id,omitempty"`
	SectionID       string    `json:"section_id,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	UserIDs         []string  `json:"user_ids,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Code            int       `json:"code,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitzero"`
	CreatedAt       time.Time `json:"created_at"`
}

// New stamps a notification with a ULID and creation time.
func New(kind Kind, now time.Time) Notification {
	return Notification{
		ID:        ulid.Make().String(),
		Kind:      kind,
		CreatedAt: now.UTC(),
	}
}

// Publisher accepts notifications after the state change they describe has
// committed.
type Publisher interface {
	Publish(ctx context.Context, n Notification)
}

// Sink is a delivery target.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// Nop returns a Publisher that discards everything.
func Nop() Publisher { return nopPublisher{} }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Notification) {}
