package memory

import (
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

// The records below are owned by out-of-process collaborators (user
// management, section management). The store exposes plain setters so that
// dev mode and tests can populate them.

func (s *Store) AddUser(userID string) {
	_ = s.do(func(st *state) error {
		if _, ok := st.users[userID]; !ok {
			st.users[userID] = 0
		}
		return nil
	})
}

func (s *Store) DeleteUser(userID string) {
	_ = s.do(func(st *state) error {
		delete(st.users, userID)
		for k := range st.members {
			if k.userID == userID {
				delete(st.members, k)
			}
		}
		for k := range st.attendances {
			if k.userID == userID {
				delete(st.attendances, k)
			}
		}
		for id, rc := range st.resetCodes {
			if rc.UserID == userID {
				delete(st.resetCodes, id)
			}
		}
		return nil
	})
}

func (s *Store) AddSection(sectionID string) {
	_ = s.do(func(st *state) error {
		st.sections[sectionID] = struct{}{}
		return nil
	})
}

// AddMember makes userID a member of sectionID with zeroed accumulators.
func (s *Store) AddMember(sectionID, userID string) {
	_ = s.do(func(st *state) error {
		k := memberKey{sectionID, userID}
		if _, ok := st.members[k]; !ok {
			st.members[k] = models.SectionMembership{SectionID: sectionID, UserID: userID}
		}
		return nil
	})
}

// SetUserRating overwrites a rating the way a moderator edit would.
func (s *Store) SetUserRating(userID string, rating int64) {
	_ = s.do(func(st *state) error {
		if _, ok := st.users[userID]; ok {
			st.users[userID] = rating
		}
		return nil
	})
}
