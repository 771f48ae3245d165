package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sporthack/internal/common"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("training")
	require.NoError(t, err)
	assert.Equal(t, KindTraining, k)

	k, err = ParseKind("event")
	require.NoError(t, err)
	assert.Equal(t, KindEvent, k)

	_, err = ParseKind("match")
	require.Error(t, err)
}

func TestClaimCursor_Less(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var zero ClaimCursor

	a := &Occurrence{ID: "a", ScheduledAt: t0}
	b := &Occurrence{ID: "b", ScheduledAt: t0}
	c := &Occurrence{ID: "0", ScheduledAt: t0.Add(time.Minute)}

	assert.True(t, zero.Less(a))
	assert.True(t, a.After().Less(b))
	assert.False(t, b.After().Less(a))
	assert.False(t, a.After().Less(a))
	assert.True(t, b.After().Less(c))
}

func TestResetCode_Valid(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rc := &ResetCode{IssuedAt: t0, ExpiresAt: t0.Add(30 * time.Minute)}

	assert.True(t, rc.Valid(t0.Add(29*time.Minute)))
	assert.False(t, rc.Valid(t0.Add(30*time.Minute)))
	assert.False(t, rc.Valid(t0.Add(31*time.Minute)))
}

func TestOccurrence_Validate(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		occ     Occurrence
		wantErr bool
	}{
		{name: "training", occ: Occurrence{Kind: KindTraining, SectionID: "s", ScheduledAt: t0, DurationMinutes: 60}},
		{name: "event", occ: Occurrence{Kind: KindEvent, SectionID: "s", ScheduledAt: t0, Level: LevelCity}},
		{name: "training without duration", occ: Occurrence{Kind: KindTraining, SectionID: "s", ScheduledAt: t0}, wantErr: true},
		{name: "event with unknown level", occ: Occurrence{Kind: KindEvent, SectionID: "s", ScheduledAt: t0, Level: "galactic"}, wantErr: true},
		{name: "no section", occ: Occurrence{Kind: KindTraining, ScheduledAt: t0, DurationMinutes: 60}, wantErr: true},
		{name: "no time", occ: Occurrence{Kind: KindTraining, SectionID: "s", DurationMinutes: 60}, wantErr: true},
		{name: "training with negative duration", occ: Occurrence{Kind: KindTraining, SectionID: "s", ScheduledAt: t0, DurationMinutes: -60}, wantErr: true},
		{name: "event without level", occ: Occurrence{Kind: KindEvent, SectionID: "s", ScheduledAt: t0}, wantErr: true},
		{name: "unknown kind", occ: Occurrence{Kind: "match", SectionID: "s", ScheduledAt: t0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.occ.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidOccurrence)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
