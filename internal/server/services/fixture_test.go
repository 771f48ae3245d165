package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/metrics"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/notify"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/memory"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/ratings"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/repomanager"
)

var t0 = time.Date(2025, 4, 12, 18, 0, 0, 0, time.UTC)

type recorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recorder) Publish(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) ofKind(kind notify.Kind) []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Notification
	for _, n := range r.got {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	store      *memory.Store
	repos      repomanager.RepositoryManager
	pub        *recorder
	metrics    *metrics.Metrics
	engine     *ClaimEngine
	ledger     *RatingLedger
	reconciler *Reconciler
	gate       *RegistrationGate
	codes      *ResetCodeService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, memory.NewManager())
}

func newFixtureWith(t *testing.T, repos repomanager.RepositoryManager) *fixture {
	t.Helper()

	f := &fixture{
		store:   memory.NewStore(),
		repos:   repos,
		pub:     &recorder{},
		metrics: metrics.New(nil),
	}
	log := logging.Nop()

	f.ledger = NewRatingLedger(repos, log, f.metrics, 3, time.Millisecond)
	f.engine = NewClaimEngine(f.store, repos, f.pub, log, f.metrics)
	f.engine.Handle(models.KindTraining, f.ledger.Hook())
	f.reconciler = NewReconciler(f.engine, f.ledger, f.store, repos, f.pub)
	f.gate = NewRegistrationGate(f.store, repos, f.pub, log, f.metrics, 3*time.Hour)
	f.codes = NewResetCodeService(f.store, repos, f.pub, log, f.metrics, 30*time.Minute, 0)

	f.store.AddSection("s1")
	return f
}

func (f *fixture) member(userID string) {
	f.store.AddUser(userID)
	f.store.AddMember("s1", userID)
}

func (f *fixture) training(t *testing.T, id string, at time.Time, minutes int) {
	t.Helper()
	require.NoError(t, f.repos.Occurrences(f.store).Create(context.Background(), &models.Occurrence{
		ID: id, SectionID: "s1", Kind: models.KindTraining, Title: id,
		ScheduledAt: at, DurationMinutes: minutes,
	}))
}

func (f *fixture) event(t *testing.T, id string, at time.Time) {
	t.Helper()
	require.NoError(t, f.repos.Occurrences(f.store).Create(context.Background(), &models.Occurrence{
		ID: id, SectionID: "s1", Kind: models.KindEvent, Title: id,
		ScheduledAt: at, Level: models.LevelCity,
	}))
}

// attend registers directly through the repository, bypassing the cutoff.
func (f *fixture) attend(t *testing.T, occurrenceID string, userIDs ...string) {
	t.Helper()
	for _, u := range userIDs {
		require.NoError(t, f.repos.Attendances(f.store).Create(context.Background(), &models.Attendance{
			ID: occurrenceID + "/" + u, OccurrenceID: occurrenceID, UserID: u, CreatedAt: t0.Add(-time.Hour),
		}))
	}
}

func (f *fixture) rating(t *testing.T, userID string) int64 {
	t.Helper()
	r, err := f.repos.Ratings(f.store).UserRating(context.Background(), userID)
	require.NoError(t, err)
	return r
}

func (f *fixture) membership(t *testing.T, userID string) *models.SectionMembership {
	t.Helper()
	m, err := f.repos.Ratings(f.store).Membership(context.Background(), "s1", userID)
	require.NoError(t, err)
	return m
}

func (f *fixture) status(t *testing.T, id string) models.OccurrenceStatus {
	t.Helper()
	o, err := f.repos.Occurrences(f.store).Get(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

// faultyManager injects failures into the rating increments. op is "user"
// or "section".
type faultyManager struct {
	repomanager.RepositoryManager
	fail func(op, userID string) error
}

func (m *faultyManager) Ratings(db dbx.DBTX) ratings.Repository {
	return &faultyRatings{Repository: m.RepositoryManager.Ratings(db), fail: m.fail}
}

type faultyRatings struct {
	ratings.Repository
	fail func(op, userID string) error
}

func (r *faultyRatings) AddUserRating(ctx context.Context, userID string, delta int64) error {
	if err := r.fail("user", userID); err != nil {
		return err
	}
	return r.Repository.AddUserRating(ctx, userID, delta)
}

func (r *faultyRatings) AddSectionResult(ctx context.Context, sectionID, userID string, delta int64) error {
	if err := r.fail("section", userID); err != nil {
		return err
	}
	return r.Repository.AddSectionResult(ctx, sectionID, userID, delta)
}

func transient(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrStoreUnavailable, msg)
}
