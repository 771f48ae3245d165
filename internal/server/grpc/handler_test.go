package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// ---- fakes ----

type fakeReconciler struct {
	kind    models.OccurrenceKind
	now     time.Time
	claimed map[models.OccurrenceKind][]string
	err     error
}

func (f *fakeReconciler) Run(_ context.Context, kind models.OccurrenceKind, now time.Time) ([]string, error) {
	f.kind, f.now = kind, now
	return f.claimed[kind], f.err
}

func (f *fakeReconciler) RunAll(_ context.Context, now time.Time) (map[models.OccurrenceKind][]string, error) {
	f.now = now
	return f.claimed, f.err
}

type fakeGate struct {
	occurrenceID, userID string
	err                  error
}

func (f *fakeGate) Register(_ context.Context, occurrenceID, userID string, _ time.Time) (string, error) {
	f.occurrenceID, f.userID = occurrenceID, userID
	if f.err != nil {
		return "", f.err
	}
	return "att-1", nil
}

func (f *fakeGate) Unregister(_ context.Context, occurrenceID, userID string, _ time.Time) error {
	f.occurrenceID, f.userID = occurrenceID, userID
	return f.err
}

type fakeCodes struct {
	userID string
	code   int
	err    error
}

func (f *fakeCodes) Issue(_ context.Context, userID string, _ time.Time) (int, error) {
	f.userID = userID
	return 4242, f.err
}

func (f *fakeCodes) Validate(_ context.Context, userID string, code int, _ time.Time) error {
	f.userID, f.code = userID, code
	return f.err
}

func newTestServer(r *fakeReconciler, g *fakeGate, c *fakeCodes) *GRPCServer {
	s := NewGRPCServer("", logging.Nop(), r, g, c)
	s.clock = func() time.Time { return fixedNow }
	return s
}

func TestReconcile(t *testing.T) {
	r := &fakeReconciler{claimed: map[models.OccurrenceKind][]string{
		models.KindTraining: {"t1", "t2"},
		models.KindEvent:    {"e1"},
	}}
	client := startBufServer(t, newTestServer(r, &fakeGate{}, &fakeCodes{}))
	ctx := context.Background()

	resp, err := client.Reconcile(ctx, "training")
	require.NoError(t, err)
	assert.Equal(t, models.KindTraining, r.kind)
	assert.Equal(t, fixedNow, r.now)
	got := resp.AsMap()["claimed"].(map[string]any)
	assert.Equal(t, []any{"t1", "t2"}, got["training"])

	resp, err = client.Reconcile(ctx, "all")
	require.NoError(t, err)
	got = resp.AsMap()["claimed"].(map[string]any)
	assert.Len(t, got, 2)

	_, err = client.Reconcile(ctx, "match")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestReconcile_Failures(t *testing.T) {
	r := &fakeReconciler{err: fmt.Errorf("claim training: %w", common.ErrStoreUnavailable)}
	client := startBufServer(t, newTestServer(r, &fakeGate{}, &fakeCodes{}))

	_, err := client.Reconcile(context.Background(), "training")
	assert.Equal(t, codes.Unavailable, status.Code(err))

	// partial: committed claims are reported along with the error
	r.claimed = map[models.OccurrenceKind][]string{models.KindTraining: {"t1"}}
	resp, err := client.Reconcile(context.Background(), "training")
	require.NoError(t, err)
	assert.Contains(t, resp.AsMap()["error"], "store unavailable")
}

func TestRegisterAndUnregister(t *testing.T) {
	g := &fakeGate{}
	client := startBufServer(t, newTestServer(&fakeReconciler{}, g, &fakeCodes{}))
	ctx := context.Background()

	resp, err := client.Register(ctx, "tr", "u1")
	require.NoError(t, err)
	assert.Equal(t, "att-1", resp.AsMap()["attendance_id"])
	assert.Equal(t, "tr", g.occurrenceID)
	assert.Equal(t, "u1", g.userID)

	_, err = client.Unregister(ctx, "tr", "u1")
	require.NoError(t, err)

	_, err = client.Register(ctx, "", "u1")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRegister_ErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{common.ErrOccurrenceNotFound, codes.NotFound},
		{common.ErrOccurrenceExpired, codes.FailedPrecondition},
		{common.ErrAlreadyRegistered, codes.AlreadyExists},
		{fmt.Errorf("db error: %w", common.ErrStoreUnavailable), codes.Unavailable},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			client := startBufServer(t, newTestServer(&fakeReconciler{}, &fakeGate{err: tt.err}, &fakeCodes{}))
			_, err := client.Register(context.Background(), "tr", "u1")
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestResetCodes(t *testing.T) {
	c := &fakeCodes{}
	client := startBufServer(t, newTestServer(&fakeReconciler{}, &fakeGate{}, c))
	ctx := context.Background()

	resp, err := client.IssueResetCode(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["issued"])
	assert.NotContains(t, resp.AsMap(), "code")

	_, err = client.ValidateResetCode(ctx, "u1", 4242)
	require.NoError(t, err)
	assert.Equal(t, 4242, c.code)

	c.err = common.ErrInvalidCode
	_, err = client.ValidateResetCode(ctx, "u1", 1111)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	c.err = common.ErrTooManyAttempts
	_, err = client.ValidateResetCode(ctx, "u1", 1111)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	_, err = client.call(ctx, MethodValidateResetCode, map[string]any{"user_id": "u1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.call(ctx, MethodValidateResetCode, map[string]any{"user_id": "u1", "code": 12.5})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus_HidesInternalDetails(t *testing.T) {
	err := toStatus(errors.New("pq: password authentication failed for user admin"))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), "password")
}
