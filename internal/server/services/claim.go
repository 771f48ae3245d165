// Package services contains the reconciliation engine: claiming due
// occurrences, applying their completion effects, gating registrations and
// issuing single-use reset codes.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/metrics"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/notify"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/repomanager"
)

// CompletionHook runs inside the transaction that claims one occurrence. An
// error rolls the claim back. The returned notification, if any, is published
// after commit.
type CompletionHook func(ctx context.Context, tx dbx.DBTX, o *models.Occurrence, now time.Time) (*notify.Notification, error)

// ClaimEngine moves due occurrences from active to closed. Every id it returns
// was flipped by that call and no other.
type ClaimEngine struct {
	tx        dbx.Transactor
	repos     repomanager.RepositoryManager
	publisher notify.Publisher
	logger    logging.Logger
	metrics   *metrics.Metrics
	hooks     map[models.OccurrenceKind]CompletionHook
}

func NewClaimEngine(tx dbx.Transactor, repos repomanager.RepositoryManager, publisher notify.Publisher, logger logging.Logger, m *metrics.Metrics) *ClaimEngine {
	if publisher == nil {
		publisher = notify.Nop()
	}
	return &ClaimEngine{
		tx:        tx,
		repos:     repos,
		publisher: publisher,
		logger:    logger.With("module", "claim"),
		metrics:   m,
		hooks:     make(map[models.OccurrenceKind]CompletionHook),
	}
}

// Handle registers the completion hook of kind. Must be called before the
// engine is used.
func (e *ClaimEngine) Handle(kind models.OccurrenceKind, hook CompletionHook) {
	e.hooks[kind] = hook
}

// ClaimDue closes every active occurrence of kind scheduled at or before now
// and returns the ids this call closed.
//
// Kinds with a hook are claimed one occurrence per transaction so that the
// claim and its effects commit together. An occurrence whose hook fails stays
// active and the remaining ones are still processed; the failures are joined
// into the returned error alongside the ids that did commit.
func (e *ClaimEngine) ClaimDue(ctx context.Context, kind models.OccurrenceKind, now time.Time) ([]string, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveReconcile(string(kind), time.Since(start)) }()

	var (
		ids []string
		err error
	)
	if hook, ok := e.hooks[kind]; ok {
		ids, err = e.claimEach(ctx, kind, now, hook)
	} else {
		ids, err = e.claimBatch(ctx, kind, now)
	}

	e.metrics.IncClaimed(string(kind), len(ids))
	if len(ids) > 0 {
		e.logger.Info(ctx, "occurrences closed", "kind", kind, "count", len(ids))
	}
	return ids, err
}

func (e *ClaimEngine) claimEach(ctx context.Context, kind models.OccurrenceKind, now time.Time, hook CompletionHook) ([]string, error) {
	var (
		ids    []string
		errs   []error
		cursor models.ClaimCursor
	)

	for {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var (
			claimed *models.Occurrence
			n       *notify.Notification
		)
		err := e.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			claimed, err = e.repos.Occurrences(tx).ClaimNext(ctx, kind, now, cursor)
			if err != nil {
				return err
			}
			n, err = hook(ctx, tx, claimed, now)
			return err
		})

		if claimed == nil {
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				e.logger.Error(ctx, "claim failed", "kind", kind, "error", err)
				errs = append(errs, fmt.Errorf("claim %s: %w", kind, err))
			}
			break
		}

		cursor = models.ClaimCursor{ScheduledAt: claimed.ScheduledAt, ID: claimed.ID}

		if err != nil {
			e.metrics.IncClaimFailure(string(kind))
			e.logger.Error(ctx, "occurrence left active", "kind", kind, "occurrence_id", claimed.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s %s: %w", kind, claimed.ID, err))
			continue
		}

		ids = append(ids, claimed.ID)
		if n != nil {
			e.publisher.Publish(ctx, *n)
		}
	}

	return ids, errors.Join(errs...)
}

func (e *ClaimEngine) claimBatch(ctx context.Context, kind models.OccurrenceKind, now time.Time) ([]string, error) {
	closed, err := e.repos.Occurrences(e.tx.DB()).ClaimDue(ctx, kind, now)
	if err != nil {
		e.metrics.IncClaimFailure(string(kind))
		e.logger.Error(ctx, "claim failed", "kind", kind, "error", err)
		return nil, fmt.Errorf("claim %s: %w", kind, err)
	}

	ids := make([]string, 0, len(closed))
	for _, o := range closed {
		ids = append(ids, o.ID)
		if o.Kind != models.KindEvent {
			continue
		}

		n := notify.New(notify.KindEventClosed, now)
		n.OccurrenceID = o.ID
		n.SectionID = o.SectionID
		e.publisher.Publish(ctx, n)
	}
	return ids, nil
}
