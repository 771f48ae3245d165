package ratings

import (
	"context"

	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

// Repository owns the rating accumulators. Writes are in-place adds, never
// read-modify-write.
type Repository interface {
	// RecordCompletion inserts the completion marker of a training and
	// reports whether this call created it.
	RecordCompletion(ctx context.Context, c *models.TrainingCompletion) (bool, error)
	Completion(ctx context.Context, trainingID string) (*models.TrainingCompletion, error)

	// AddUserRating adds delta to the user's global rating;
	// common.ErrorNotFound if the user does not exist.
	AddUserRating(ctx context.Context, userID string, delta int64) error
	// AddSectionResult adds delta to the member's section rating and one
	// completed training; common.ErrorNotFound if there is no membership.
	AddSectionResult(ctx context.Context, sectionID, userID string, delta int64) error

	UserRating(ctx context.Context, userID string) (int64, error)
	Membership(ctx context.Context, sectionID, userID string) (*models.SectionMembership, error)
	ListUserRatings(ctx context.Context) ([]models.UserRating, error)
	ListMemberships(ctx context.Context) ([]models.SectionMembership, error)
	// ListCompletedTrainings returns the ids of every training with a
	// completion marker.
	ListCompletedTrainings(ctx context.Context) ([]string, error)
}
