package attendances

import (
	"context"

	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

type Repository interface {
	// Create inserts the attendance; common.ErrAlreadyRegistered for an
	// existing (occurrence, user) pair, common.ErrorNotFound for an unknown
	// occurrence or user.
	Create(ctx context.Context, a *models.Attendance) error
	Delete(ctx context.Context, occurrenceID, userID string) error
	// ListUserIDs returns attendee ids in ascending order.
	ListUserIDs(ctx context.Context, occurrenceID string) ([]string, error)
}
