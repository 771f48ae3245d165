package models

import "time"

// Attendance is a user's registration to an occurrence, unique per pair.
type Attendance struct {
	ID           string
	OccurrenceID string
	UserID       string
	CreatedAt    time.Time
}
