package occurrences

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

// Repository is the occurrence store. ClaimNext and ClaimDue are the only
// operations that change an occurrence's status.
type Repository interface {
	Create(ctx context.Context, o *models.Occurrence) error
	Get(ctx context.Context, id string) (*models.Occurrence, error)
	// ClaimNext closes the earliest due active occurrence of kind positioned
	// strictly after the cursor and returns it. common.ErrorNotFound means
	// nothing is left to claim.
	ClaimNext(ctx context.Context, kind models.OccurrenceKind, now time.Time, after models.ClaimCursor) (*models.Occurrence, error)
	// ClaimDue closes every due active occurrence of kind in one statement
	// and returns the rows this call flipped.
	ClaimDue(ctx context.Context, kind models.OccurrenceKind, now time.Time) ([]*models.Occurrence, error)
}
