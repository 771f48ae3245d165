package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

type occurrenceRepo struct{ h handle }

func (r *occurrenceRepo) Create(_ context.Context, o *models.Occurrence) error {
	if err := o.Validate(); err != nil {
		return err
	}
	return r.h.do(func(st *state) error {
		if _, ok := st.sections[o.SectionID]; !ok {
			return common.ErrorNotFound
		}
		o.Status = models.StatusActive
		o.ClosedAt = nil
		st.occurrences[o.ID] = *o
		return nil
	})
}

func (r *occurrenceRepo) Get(_ context.Context, id string) (*models.Occurrence, error) {
	var out models.Occurrence
	err := r.h.do(func(st *state) error {
		o, ok := st.occurrences[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func dueSorted(st *state, kind models.OccurrenceKind, now time.Time) []models.Occurrence {
	var due []models.Occurrence
	for _, o := range st.occurrences {
		if o.Kind == kind && o.Status == models.StatusActive && !o.ScheduledAt.After(now) {
			due = append(due, o)
		}
	}
	slices.SortFunc(due, func(a, b models.Occurrence) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return due
}

func closeOccurrence(st *state, o models.Occurrence, now time.Time) *models.Occurrence {
	closedAt := now
	o.Status = models.StatusClosed
	o.ClosedAt = &closedAt
	st.occurrences[o.ID] = o
	return &o
}

func (r *occurrenceRepo) ClaimNext(_ context.Context, kind models.OccurrenceKind, now time.Time, after models.ClaimCursor) (*models.Occurrence, error) {
	var out *models.Occurrence
	err := r.h.do(func(st *state) error {
		for _, o := range dueSorted(st, kind, now) {
			if after.Less(&o) {
				out = closeOccurrence(st, o, now)
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r *occurrenceRepo) ClaimDue(_ context.Context, kind models.OccurrenceKind, now time.Time) ([]*models.Occurrence, error) {
	var out []*models.Occurrence
	err := r.h.do(func(st *state) error {
		for _, o := range dueSorted(st, kind, now) {
			out = append(out, closeOccurrence(st, o, now))
		}
		return nil
	})
	return out, err
}

type attendanceRepo struct{ h handle }

func (r *attendanceRepo) Create(_ context.Context, a *models.Attendance) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.occurrences[a.OccurrenceID]; !ok {
			return common.ErrorNotFound
		}
		if _, ok := st.users[a.UserID]; !ok {
			return common.ErrorNotFound
		}
		k := attendanceKey{a.OccurrenceID, a.UserID}
		if _, ok := st.attendances[k]; ok {
			return common.ErrAlreadyRegistered
		}
		st.attendances[k] = *a
		return nil
	})
}

func (r *attendanceRepo) Delete(_ context.Context, occurrenceID, userID string) error {
	return r.h.do(func(st *state) error {
		k := attendanceKey{occurrenceID, userID}
		if _, ok := st.attendances[k]; !ok {
			return common.ErrorNotFound
		}
		delete(st.attendances, k)
		return nil
	})
}

func (r *attendanceRepo) ListUserIDs(_ context.Context, occurrenceID string) ([]string, error) {
	var ids []string
	err := r.h.do(func(st *state) error {
		for k := range st.attendances {
			if k.occurrenceID == occurrenceID {
				ids = append(ids, k.userID)
			}
		}
		return nil
	})
	slices.Sort(ids)
	return ids, err
}

type ratingRepo struct{ h handle }

func (r *ratingRepo) RecordCompletion(_ context.Context, c *models.TrainingCompletion) (bool, error) {
	created := false
	err := r.h.do(func(st *state) error {
		if _, ok := st.occurrences[c.TrainingID]; !ok {
			return common.ErrorNotFound
		}
		if _, ok := st.completions[c.TrainingID]; ok {
			return nil
		}
		st.completions[c.TrainingID] = *c
		created = true
		return nil
	})
	return created, err
}

func (r *ratingRepo) Completion(_ context.Context, trainingID string) (*models.TrainingCompletion, error) {
	var out models.TrainingCompletion
	err := r.h.do(func(st *state) error {
		c, ok := st.completions[trainingID]
		if !ok {
			return common.ErrorNotFound
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ratingRepo) AddUserRating(_ context.Context, userID string, delta int64) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.users[userID]; !ok {
			return common.ErrorNotFound
		}
		st.users[userID] += delta
		return nil
	})
}

func (r *ratingRepo) AddSectionResult(_ context.Context, sectionID, userID string, delta int64) error {
	return r.h.do(func(st *state) error {
		k := memberKey{sectionID, userID}
		m, ok := st.members[k]
		if !ok {
			return common.ErrorNotFound
		}
		m.Rating += delta
		m.CompletedCount++
		st.members[k] = m
		return nil
	})
}

func (r *ratingRepo) UserRating(_ context.Context, userID string) (int64, error) {
	var rating int64
	err := r.h.do(func(st *state) error {
		v, ok := st.users[userID]
		if !ok {
			return common.ErrorNotFound
		}
		rating = v
		return nil
	})
	return rating, err
}

func (r *ratingRepo) Membership(_ context.Context, sectionID, userID string) (*models.SectionMembership, error) {
	var out models.SectionMembership
	err := r.h.do(func(st *state) error {
		m, ok := st.members[memberKey{sectionID, userID}]
		if !ok {
			return common.ErrorNotFound
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ratingRepo) ListUserRatings(_ context.Context) ([]models.UserRating, error) {
	var out []models.UserRating
	err := r.h.do(func(st *state) error {
		for id, rating := range st.users {
			out = append(out, models.UserRating{UserID: id, Rating: rating})
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.UserRating) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, err
}

func (r *ratingRepo) ListMemberships(_ context.Context) ([]models.SectionMembership, error) {
	var out []models.SectionMembership
	err := r.h.do(func(st *state) error {
		for _, m := range st.members {
			out = append(out, m)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.SectionMembership) int {
		if c := cmp.Compare(a.SectionID, b.SectionID); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out, err
}

func (r *ratingRepo) ListCompletedTrainings(_ context.Context) ([]string, error) {
	var ids []string
	err := r.h.do(func(st *state) error {
		for id := range st.completions {
			ids = append(ids, id)
		}
		return nil
	})
	slices.Sort(ids)
	return ids, err
}

type resetCodeRepo struct{ h handle }

func (r *resetCodeRepo) Create(_ context.Context, rc *models.ResetCode) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.users[rc.UserID]; !ok {
			return common.ErrorNotFound
		}
		st.resetCodes[rc.ID] = *rc
		return nil
	})
}

func (r *resetCodeRepo) Consume(_ context.Context, userID string, code int, now time.Time) (*models.ResetCode, error) {
	var out *models.ResetCode
	err := r.h.do(func(st *state) error {
		for _, rc := range st.resetCodes {
			if rc.UserID == userID && rc.Code == code && rc.Valid(now) {
				if out == nil || rc.ExpiresAt.Before(out.ExpiresAt) {
					c := rc
					out = &c
				}
			}
		}
		if out == nil {
			return common.ErrorNotFound
		}
		delete(st.resetCodes, out.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *resetCodeRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(rc models.ResetCode) bool { return !rc.Valid(now) })
}

func (r *resetCodeRepo) DeleteExpiredForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	return r.deleteWhere(func(rc models.ResetCode) bool { return rc.UserID == userID && !rc.Valid(now) })
}

func (r *resetCodeRepo) deleteWhere(match func(models.ResetCode) bool) (int64, error) {
	var n int64
	err := r.h.do(func(st *state) error {
		for id, rc := range st.resetCodes {
			if match(rc) {
				delete(st.resetCodes, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
