package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/repomanager"
)

// RatingSnapshots reads every rating accumulator at one point in time.
// The transactor should run read-only REPEATABLE READ transactions so that
// the lists and the completion markers agree with each other.
type RatingSnapshots struct {
	tx    dbx.Transactor
	repos repomanager.RepositoryManager
}

func NewRatingSnapshots(tx dbx.Transactor, repos repomanager.RepositoryManager) *RatingSnapshots {
	return &RatingSnapshots{tx: tx, repos: repos}
}

func (s *RatingSnapshots) Snapshot(ctx context.Context) (*models.RatingSnapshot, error) {
	snap := &models.RatingSnapshot{}
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		ratings := s.repos.Ratings(tx)

		var err error
		if snap.Users, err = ratings.ListUserRatings(ctx); err != nil {
			return fmt.Errorf("error listing user ratings: %w", err)
		}
		if snap.Members, err = ratings.ListMemberships(ctx); err != nil {
			return fmt.Errorf("error listing memberships: %w", err)
		}
		if snap.Completed, err = ratings.ListCompletedTrainings(ctx); err != nil {
			return fmt.Errorf("error listing completions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
