// Package models holds the persisted domain records of the club: scheduled
// occurrences, attendances, rating accumulators and reset codes.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/common"
)

// OccurrenceKind distinguishes trainings from events.
type OccurrenceKind string

const (
	KindTraining OccurrenceKind = "training"
	KindEvent    OccurrenceKind = "event"
)

// Kinds lists every kind in reconciliation order.
var Kinds = []OccurrenceKind{KindTraining, KindEvent}

// ParseKind converts user input into an OccurrenceKind.
func ParseKind(s string) (OccurrenceKind, error) {
	switch k := OccurrenceKind(s); k {
	case KindTraining, KindEvent:
		return k, nil
	default:
		return "", fmt.Errorf("unknown occurrence kind %q", s)
	}
}

// OccurrenceStatus is active until the claim engine closes the occurrence.
// Closed is terminal.
type OccurrenceStatus string

const (
	StatusActive OccurrenceStatus = "active"
	StatusClosed OccurrenceStatus = "closed"
)

// EventLevel is the competition level of an event.
type EventLevel string

const (
	LevelInstitute       EventLevel = "institute"
	LevelUniversity      EventLevel = "university"
	LevelInterUniversity EventLevel = "interuniversity"
	LevelDistrict        EventLevel = "district"
	LevelCity            EventLevel = "city"
	LevelRegional        EventLevel = "regional"
	LevelAllRussia       EventLevel = "all-russia"
)

var eventLevels = map[EventLevel]struct{}{
	LevelInstitute: {}, LevelUniversity: {}, LevelInterUniversity: {}, LevelDistrict: {},
	LevelCity: {}, LevelRegional: {}, LevelAllRussia: {},
}

// Validate checks the kind-specific fields of a new occurrence. Every
// failure wraps common.ErrInvalidOccurrence.
func (o *Occurrence) Validate() error {
	switch o.Kind {
	case KindTraining:
		if o.DurationMinutes <= 0 {
			return fmt.Errorf("%w: training %s: duration must be positive", common.ErrInvalidOccurrence, o.ID)
		}
	case KindEvent:
		if _, ok := eventLevels[o.Level]; !ok {
			return fmt.Errorf("%w: event %s: unknown level %q", common.ErrInvalidOccurrence, o.ID, o.Level)
		}
	default:
		return fmt.Errorf("%w: occurrence %s: unknown kind %q", common.ErrInvalidOccurrence, o.ID, o.Kind)
	}
	if o.SectionID == "" {
		return fmt.Errorf("%w: occurrence %s: section is required", common.ErrInvalidOccurrence, o.ID)
	}
	if o.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: occurrence %s: scheduled time is required", common.ErrInvalidOccurrence, o.ID)
	}
	return nil
}

// Occurrence is a scheduled Training or Event belonging to one section.
// DurationMinutes is set for trainings only, Level for events only.
type Occurrence struct {
	ID              string
	SectionID       string
	Kind            OccurrenceKind
	Title           string
	Place           string
	ScheduledAt     time.Time
	Status          OccurrenceStatus
	ClosedAt        *time.Time
	DurationMinutes int
	Level           EventLevel
}

// ClaimCursor is the (scheduled_at, id) position of the last occurrence a
// claim loop looked at. The zero value starts from the beginning.
type ClaimCursor struct {
	ScheduledAt time.Time
	ID          string
}

// After returns the cursor positioned on o.
func (o *Occurrence) After() ClaimCursor {
	return ClaimCursor{ScheduledAt: o.ScheduledAt, ID: o.ID}
}

// Less reports whether o sorts before the cursor position c.
func (c ClaimCursor) Less(o *Occurrence) bool {
	if o.ScheduledAt.Equal(c.ScheduledAt) {
		return c.ID < o.ID
	}
	return c.ScheduledAt.Before(o.ScheduledAt)
}
