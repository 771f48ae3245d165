package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/notify"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/repomanager"
)

// Reconciler is the trigger entry point shared by the scheduler, the admin
// API and the one-shot command.
type Reconciler struct {
	engine    *ClaimEngine
	ledger    *RatingLedger
	tx        dbx.Transactor
	repos     repomanager.RepositoryManager
	publisher notify.Publisher
}

func NewReconciler(engine *ClaimEngine, ledger *RatingLedger, tx dbx.Transactor, repos repomanager.RepositoryManager, publisher notify.Publisher) *Reconciler {
	if publisher == nil {
		publisher = notify.Nop()
	}
	return &Reconciler{engine: engine, ledger: ledger, tx: tx, repos: repos, publisher: publisher}
}

// Run claims the due occurrences of one kind.
func (r *Reconciler) Run(ctx context.Context, kind models.OccurrenceKind, now time.Time) ([]string, error) {
	return r.engine.ClaimDue(ctx, kind, now)
}

// RunAll claims every kind in turn. A failing kind does not stop the others.
func (r *Reconciler) RunAll(ctx context.Context, now time.Time) (map[models.OccurrenceKind][]string, error) {
	out := make(map[models.OccurrenceKind][]string, len(models.Kinds))
	var errs []error
	for _, kind := range models.Kinds {
		ids, err := r.Run(ctx, kind, now)
		out[kind] = ids
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// ApplyTrainingCompletion applies the effects of an already closed training
// in its own transaction. It is a no-op when they were applied before.
func (r *Reconciler) ApplyTrainingCompletion(ctx context.Context, trainingID string, now time.Time) (*CompletionResult, error) {
	var (
		o   *models.Occurrence
		res *CompletionResult
	)
	err := r.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		o, err = r.repos.Occurrences(tx).Get(ctx, trainingID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrOccurrenceNotFound
			}
			return err
		}
		if o.Status != models.StatusClosed {
			return fmt.Errorf("training %s: %w", o.ID, common.ErrOccurrenceActive)
		}
		res, err = r.ledger.ApplyTrainingCompletion(ctx, tx, o, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if res.Applied {
		r.publisher.Publish(ctx, *completedNotification(o, res, now))
	}
	return res, nil
}
