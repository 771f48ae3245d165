package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/dbx"
	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/metrics"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
	"github.com/dmitrijs2005/sporthack/internal/server/notify"
	"github.com/dmitrijs2005/sporthack/internal/server/repositories/repomanager"
)

type attemptLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ResetCodeService issues and validates single-use password reset codes.
type ResetCodeService struct {
	tx        dbx.Transactor
	repos     repomanager.RepositoryManager
	publisher notify.Publisher
	logger    logging.Logger
	metrics   *metrics.Metrics
	ttl       time.Duration
	random    io.Reader

	perMinute int
	mu        sync.Mutex
	attempts  map[string]*attemptLimiter
}

// NewResetCodeService creates the service. attemptsPerMinute <= 0 disables
// the per-user validation limit.
func NewResetCodeService(tx dbx.Transactor, repos repomanager.RepositoryManager, publisher notify.Publisher, logger logging.Logger, m *metrics.Metrics, ttl time.Duration, attemptsPerMinute int) *ResetCodeService {
	if publisher == nil {
		publisher = notify.Nop()
	}
	return &ResetCodeService{
		tx:        tx,
		repos:     repos,
		publisher: publisher,
		logger:    logger.With("module", "resetcodes"),
		metrics:   m,
		ttl:       ttl,
		perMinute: attemptsPerMinute,
		attempts:  make(map[string]*attemptLimiter),
	}
}

// Issue creates a new code for userID valid until now+ttl. Earlier codes stay
// valid. The code is handed to the notification channel for delivery.
func (s *ResetCodeService) Issue(ctx context.Context, userID string, now time.Time) (int, error) {
	code, err := common.RandomCode(s.random)
	if err != nil {
		s.metrics.IncResetCode("issue", "error")
		return 0, fmt.Errorf("error generating code: %w", err)
	}

	rc := &models.ResetCode{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		IssuedAt:  now.UTC(),
		ExpiresAt: now.Add(s.ttl).UTC(),
	}
	if err := s.repos.ResetCodes(s.tx.DB()).Create(ctx, rc); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.IncResetCode("issue", "not_found")
			return 0, fmt.Errorf("user %s: %w", userID, err)
		}
		s.metrics.IncResetCode("issue", "error")
		return 0, fmt.Errorf("error storing code: %w", err)
	}

	n := notify.New(notify.KindResetCodeIssued, now)
	n.UserID = userID
	n.Code = code
	n.ExpiresAt = rc.ExpiresAt
	s.publisher.Publish(ctx, n)

	s.metrics.IncResetCode("issue", "ok")
	s.logger.Info(ctx, "reset code issued", "user_id", userID, "expires_at", rc.ExpiresAt)
	return code, nil
}

// Validate consumes a matching unexpired code. Wrong, expired and already
// used codes all yield common.ErrInvalidCode.
func (s *ResetCodeService) Validate(ctx context.Context, userID string, code int, now time.Time) error {
	if !s.allow(userID, now) {
		s.metrics.IncResetCode("validate", "limited")
		s.logger.Warn(ctx, "reset code attempts exceeded", "user_id", userID)
		return common.ErrTooManyAttempts
	}

	if code < common.ResetCodeMin || code > common.ResetCodeMax {
		s.failed(ctx, userID, now)
		s.metrics.IncResetCode("validate", "invalid")
		return common.ErrInvalidCode
	}

	repo := s.repos.ResetCodes(s.tx.DB())
	_, err := repo.Consume(ctx, userID, code, now)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.metrics.IncResetCode("validate", "error")
			return fmt.Errorf("error consuming code: %w", err)
		}

		if n, err := repo.DeleteExpiredForUser(ctx, userID, now); err != nil {
			s.logger.Warn(ctx, "expired code cleanup failed", "user_id", userID, "error", err)
		} else if n > 0 {
			s.logger.Debug(ctx, "expired codes removed", "user_id", userID, "count", n)
		}

		s.failed(ctx, userID, now)
		s.metrics.IncResetCode("validate", "invalid")
		return common.ErrInvalidCode
	}

	s.metrics.IncResetCode("validate", "ok")
	s.logger.Info(ctx, "reset code consumed", "user_id", userID)
	return nil
}

// PurgeExpired deletes every code expired at now and forgets idle limiters.
func (s *ResetCodeService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repos.ResetCodes(s.tx.DB()).DeleteExpired(ctx, now)
	if err != nil {
		s.metrics.IncResetCode("purge", "error")
		return 0, fmt.Errorf("error purging codes: %w", err)
	}

	s.mu.Lock()
	for userID, a := range s.attempts {
		if now.Sub(a.lastSeen) > time.Minute {
			delete(s.attempts, userID)
		}
	}
	s.mu.Unlock()

	s.metrics.IncResetCode("purge", "ok")
	if n > 0 {
		s.logger.Info(ctx, "expired reset codes purged", "count", n)
	}
	return n, nil
}

// allow spends one attempt of an already limited user. Users without a
// limiter are not limited yet.
func (s *ResetCodeService) allow(userID string, now time.Time) bool {
	if s.perMinute <= 0 {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[userID]
	if !ok {
		return true
	}
	a.lastSeen = now
	return a.lim.AllowN(now, 1)
}

// failed starts limiting userID after its first failed attempt. Unknown users
// are never tracked, so guessing ids does not grow the limiter map.
func (s *ResetCodeService) failed(ctx context.Context, userID string, now time.Time) {
	if s.perMinute <= 0 {
		return
	}

	s.mu.Lock()
	_, ok := s.attempts[userID]
	s.mu.Unlock()
	if ok {
		return
	}

	if _, err := s.repos.Ratings(s.tx.DB()).UserRating(ctx, userID); err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "user lookup failed", "user_id", userID, "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[userID]; ok {
		return
	}
	lim := rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMinute)), s.perMinute)
	lim.AllowN(now, 1) // the attempt that just failed
	s.attempts[userID] = &attemptLimiter{lim: lim, lastSeen: now}
}
