package scheduler

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

// Job names.
const (
	JobReconcileTrainings = "reconcile-trainings"
	JobReconcileEvents    = "reconcile-events"
	JobPurgeResetCodes    = "purge-reset-codes"
	JobRebuildLeaderboard = "rebuild-leaderboard"
)

type reconciler interface {
	Run(ctx context.Context, kind models.OccurrenceKind, now time.Time) ([]string, error)
}

type purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type snapshotter interface {
	Snapshot(ctx context.Context) (*models.RatingSnapshot, error)
}

type board interface {
	Rebuild(ctx context.Context, snap *models.RatingSnapshot) error
}

// ReconcileJob claims the due occurrences of kind.
func ReconcileJob(name string, r reconciler, kind models.OccurrenceKind, clock func() time.Time) Job {
	return Func(name, func(ctx context.Context) error {
		_, err := r.Run(ctx, kind, clock())
		return err
	})
}

// PurgeJob removes expired reset codes.
func PurgeJob(p purger, clock func() time.Time) Job {
	return Func(JobPurgeResetCodes, func(ctx context.Context) error {
		_, err := p.PurgeExpired(ctx, clock())
		return err
	})
}

// RebuildLeaderboardJob reloads the leaderboard from one consistent snapshot
// of the rating accumulators.
func RebuildLeaderboardJob(src snapshotter, b board) Job {
	return Func(JobRebuildLeaderboard, func(ctx context.Context) error {
		snap, err := src.Snapshot(ctx)
		if err != nil {
			return err
		}
		return b.Rebuild(ctx, snap)
	})
}
