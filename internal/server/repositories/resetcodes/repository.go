package resetcodes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

type Repository interface {
	// Create stores a new code; common.ErrorNotFound for an unknown user.
	Create(ctx context.Context, rc *models.ResetCode) error
	// Consume atomically deletes one unexpired code matching (userID, code)
	// and returns it; common.ErrorNotFound if none matches.
	Consume(ctx context.Context, userID string, code int, now time.Time) (*models.ResetCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}
