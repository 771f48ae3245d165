package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/metrics"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/notify"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/repomanager"
)

// RegistrationGate creates attendance records subject to the cutoff rules of
// the occurrence.
type RegistrationGate struct {
	tx        dbx.Transactor
	repos     repomanager.RepositoryManager
	publisher notify.Publisher
	logger    logging.Logger
	metrics   *metrics.Metrics
	grace     time.Duration
}

func NewRegistrationGate(tx dbx.Transactor, repos repomanager.RepositoryManager, publisher notify.Publisher, logger logging.Logger, m *metrics.Metrics, grace time.Duration) *RegistrationGate {
	if publisher == nil {
		publisher = notify.Nop()
	}
	return &RegistrationGate{
		tx:        tx,
		repos:     repos,
		publisher: publisher,
		logger:    logger.With("module", "gate"),
		metrics:   m,
		grace:     grace,
	}
}

// Open reports whether o accepts registrations at now. Trainings accept late
// check-in while now is within grace of the start; events close at the start.
func Open(o *models.Occurrence, now time.Time, grace time.Duration) bool {
	if o.Status != models.StatusActive {
		return false
	}
	if !now.After(o.ScheduledAt) {
		return true
	}
	return o.Kind == models.KindTraining && now.Sub(o.ScheduledAt) < grace
}

// Register records userID as an attendee of occurrenceID and returns the
// attendance id.
func (g *RegistrationGate) Register(ctx context.Context, occurrenceID, userID string, now time.Time) (string, error) {
	db := g.tx.DB()

	o, err := g.repos.Occurrences(db).Get(ctx, occurrenceID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			g.metrics.IncRegistration("", "not_found")
			return "", common.ErrOccurrenceNotFound
		}
		g.metrics.IncRegistration("", "error")
		return "", fmt.Errorf("error loading occurrence: %w", err)
	}
	kind := string(o.Kind)

	if !Open(o, now, g.grace) {
		g.metrics.IncRegistration(kind, "expired")
		return "", common.ErrOccurrenceExpired
	}

	a := &models.Attendance{
		ID:           uuid.NewString(),
		OccurrenceID: o.ID,
		UserID:       userID,
		CreatedAt:    now.UTC(),
	}
	if err := g.repos.Attendances(db).Create(ctx, a); err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyRegistered):
			g.metrics.IncRegistration(kind, "duplicate")
			return "", err
		case errors.Is(err, common.ErrorNotFound):
			g.metrics.IncRegistration(kind, "not_found")
			return "", fmt.Errorf("user %s: %w", userID, err)
		}
		g.metrics.IncRegistration(kind, "error")
		return "", fmt.Errorf("error creating attendance: %w", err)
	}

	g.metrics.IncRegistration(kind, "ok")
	g.logger.Info(ctx, "registered", "occurrence_id", o.ID, "user_id", userID, "attendance_id", a.ID)
	return a.ID, nil
}

// Unregister removes an attendance on behalf of a moderator and notifies the
// user. Rating effects already applied are kept.
func (g *RegistrationGate) Unregister(ctx context.Context, occurrenceID, userID string, now time.Time) error {
	if err := g.repos.Attendances(g.tx.DB()).Delete(ctx, occurrenceID, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error deleting attendance: %w", err)
	}

	n := notify.New(notify.KindAttendanceRemoved, now)
	n.OccurrenceID = occurrenceID
	n.UserID = userID
	g.publisher.Publish(ctx, n)

	g.logger.Info(ctx, "attendance removed", "occurrence_id", occurrenceID, "user_id", userID)
	return nil
}
