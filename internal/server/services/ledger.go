package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/metrics"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/notify"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/repomanager"
)

// errSkipAttendee aborts one attendee's savepoint without failing the training.
var errSkipAttendee = errors.New("skip attendee")

// CompletionResult describes what one ApplyTrainingCompletion call changed.
type CompletionResult struct {
	// Applied is false when the effects had already been applied earlier.
	Applied bool
	// Credited lists attendees whose global rating was incremented.
	Credited []string
	// Skipped lists attendees with no user row at completion time.
	Skipped []string
}

// RatingLedger applies the attendance-driven rating effects of a completed
// training.
type RatingLedger struct {
	repos      repomanager.RepositoryManager
	logger     logging.Logger
	metrics    *metrics.Metrics
	retries    uint64
	retryDelay time.Duration
}

func NewRatingLedger(repos repomanager.RepositoryManager, logger logging.Logger, m *metrics.Metrics, retries int, retryDelay time.Duration) *RatingLedger {
	if retries < 0 {
		retries = 0
	}
	return &RatingLedger{
		repos:      repos,
		logger:     logger.With("module", "ledger"),
		metrics:    m,
		retries:    uint64(retries),
		retryDelay: retryDelay,
	}
}

// ApplyTrainingCompletion credits every attendee of training with its
// duration. It must run inside the transaction that claimed the training; the
// completion marker makes a repeated call a no-op.
//
// Each attendee is incremented inside its own savepoint. A transient failure
// rolls back and retries only that attendee. An attendee still failing after
// the retries fails the whole call, so the caller's transaction rolls back and
// the training is reconsidered later.
func (l *RatingLedger) ApplyTrainingCompletion(ctx context.Context, tx dbx.DBTX, training *models.Occurrence, now time.Time) (*CompletionResult, error) {
	if training.Kind != models.KindTraining {
		return nil, fmt.Errorf("occurrence %s is a %s, not a training", training.ID, training.Kind)
	}

	attendees, err := l.repos.Attendances(tx).ListUserIDs(ctx, training.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing attendees: %w", err)
	}

	ratings := l.repos.Ratings(tx)
	created, err := ratings.RecordCompletion(ctx, &models.TrainingCompletion{
		TrainingID:      training.ID,
		DurationMinutes: training.DurationMinutes,
		Attendees:       len(attendees),
		AppliedAt:       now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("error recording completion: %w", err)
	}
	if !created {
		l.logger.Info(ctx, "completion already applied", "training_id", training.ID)
		return &CompletionResult{}, nil
	}

	res := &CompletionResult{Applied: true}
	delta := int64(training.DurationMinutes)

	for _, userID := range attendees {
		credited, err := l.applyAttendee(ctx, tx, training, userID, delta)
		if err != nil {
			return nil, fmt.Errorf("attendee %s: %w", userID, err)
		}
		if credited {
			res.Credited = append(res.Credited, userID)
		} else {
			res.Skipped = append(res.Skipped, userID)
		}
	}

	l.logger.Info(ctx, "training completion applied",
		"training_id", training.ID, "duration", training.DurationMinutes,
		"credited", len(res.Credited), "skipped", len(res.Skipped))
	return res, nil
}

func (l *RatingLedger) applyAttendee(ctx context.Context, tx dbx.DBTX, training *models.Occurrence, userID string, delta int64) (bool, error) {
	ratings := l.repos.Ratings(tx)
	backoff := l.backoff()

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			l.metrics.IncIncrementRetry()
			l.logger.Debug(ctx, "retrying attendee increment", "training_id", training.ID, "user_id", userID, "attempt", attempt)
		}

		err := dbx.WithSavepoint(ctx, tx, "rating_attendee", func(ctx context.Context) error {
			if err := ratings.AddUserRating(ctx, userID, delta); err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return errSkipAttendee
				}
				return err
			}
			err := ratings.AddSectionResult(ctx, training.SectionID, userID, delta)
			if errors.Is(err, common.ErrorNotFound) {
				// left the section: the global rating still counts
				l.logger.Warn(ctx, "attendee is not a section member",
					"training_id", training.ID, "section_id", training.SectionID, "user_id", userID)
				return nil
			}
			return err
		})
		if errors.Is(err, common.ErrStoreUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case errors.Is(err, errSkipAttendee):
		l.metrics.IncSkippedAttendee()
		l.logger.Warn(ctx, "attendee no longer exists", "training_id", training.ID, "user_id", userID)
		return false, nil
	case err != nil:
		return false, err
	}

	l.metrics.IncRatingIncrement()
	l.logger.Debug(ctx, "attendee credited", "training_id", training.ID, "user_id", userID, "delta", delta)
	return true, nil
}

// backoff retries immediately when no delay is configured.
func (l *RatingLedger) backoff() retry.Backoff {
	if l.retryDelay <= 0 {
		return retry.WithMaxRetries(l.retries, retry.BackoffFunc(func() (time.Duration, bool) {
			return 0, false
		}))
	}
	return retry.WithMaxRetries(l.retries, retry.NewConstant(l.retryDelay))
}

// Hook adapts the ledger to the claim engine.
func (l *RatingLedger) Hook() CompletionHook {
	return func(ctx context.Context, tx dbx.DBTX, o *models.Occurrence, now time.Time) (*notify.Notification, error) {
		res, err := l.ApplyTrainingCompletion(ctx, tx, o, now)
		if err != nil {
			return nil, err
		}
		if !res.Applied {
			return nil, nil
		}
		return completedNotification(o, res, now), nil
	}
}

func completedNotification(o *models.Occurrence, res *CompletionResult, now time.Time) *notify.Notification {
	n := notify.New(notify.KindTrainingCompleted, now)
	n.OccurrenceID = o.ID
	n.SectionID = o.SectionID
	n.UserIDs = res.Credited
	n.DurationMinutes = o.DurationMinutes
	return &n
}
