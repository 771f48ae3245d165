package models

import "time"

// UserRating is the global rating accumulator of a user.
type UserRating struct {
	UserID string
	Rating int64
}

// SectionMembership carries the per-section accumulators of a member.
type SectionMembership struct {
	SectionID      string
	UserID         string
	Rating         int64
	CompletedCount int64
}

// TrainingCompletion marks a training whose rating effects were applied.
// At most one exists per training.
type TrainingCompletion struct {
	TrainingID      string
	DurationMinutes int
	Attendees       int
	AppliedAt       time.Time
}

// RatingSnapshot is a consistent view of every accumulator together with the
// trainings whose effects it already includes.
type RatingSnapshot struct {
	Users     []UserRating
	Members   []SectionMembership
	Completed []string
}
