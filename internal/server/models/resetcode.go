package models

import "time"

// ResetCode is a short-lived single-use secret authorising a password change.
type ResetCode struct {
	ID        string
	UserID    string
	Code      int
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the code can still be consumed at now.
func (c *ResetCode) Valid(now time.Time) bool {
	return c.ExpiresAt.After(now)
}
