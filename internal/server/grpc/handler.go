package grpc

import (
	"context"
	"errors"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/sporthack/internal/common"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

func (s *GRPCServer) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	kind := req.GetFields()["kind"].GetStringValue()
	now := s.clock()

	var (
		claimed map[models.OccurrenceKind][]string
		err     error
	)
	if kind == "" || kind == "all" {
		claimed, err = s.reconciler.RunAll(ctx, now)
	} else {
		k, perr := models.ParseKind(kind)
		if perr != nil {
			return nil, status.Error(codes.InvalidArgument, perr.Error())
		}
		var ids []string
		ids, err = s.reconciler.Run(ctx, k, now)
		claimed = map[models.OccurrenceKind][]string{k: ids}
	}

	total := 0
	byKind := make(map[string]any, len(claimed))
	for k, ids := range claimed {
		list := make([]any, 0, len(ids))
		for _, id := range ids {
			list = append(list, id)
		}
		byKind[string(k)] = list
		total += len(ids)
	}

	// partial success is still reported: the committed claims are final
	if err != nil && total == 0 {
		s.logger.Error(ctx, "reconcile failed", "kind", kind, "error", err)
		return nil, toStatus(err)
	}

	resp := map[string]any{"claimed": byKind}
	if err != nil {
		s.logger.Warn(ctx, "reconcile partially failed", "kind", kind, "error", err)
		resp["error"] = err.Error()
	}
	return structpb.NewStruct(resp)
}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	occurrenceID, userID, err := occurrenceAndUser(req)
	if err != nil {
		return nil, err
	}

	id, err := s.gate.Register(ctx, occurrenceID, userID, s.clock())
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"attendance_id": id})
}

func (s *GRPCServer) Unregister(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	occurrenceID, userID, err := occurrenceAndUser(req)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Unregister(ctx, occurrenceID, userID, s.clock()); err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{}, nil
}

// IssueResetCode never returns the code: it is delivered out of band.
func (s *GRPCServer) IssueResetCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := stringField(req, "user_id")
	if err != nil {
		return nil, err
	}

	if _, err := s.codes.Issue(ctx, userID, s.clock()); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"issued": true})
}

func (s *GRPCServer) ValidateResetCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := stringField(req, "user_id")
	if err != nil {
		return nil, err
	}
	v, ok := req.GetFields()["code"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}
	n := v.GetNumberValue()
	if n != math.Trunc(n) {
		return nil, status.Error(codes.InvalidArgument, "code must be an integer")
	}

	if err := s.codes.Validate(ctx, userID, int(n), s.clock()); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"valid": true})
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v := req.GetFields()[name].GetStringValue()
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v, nil
}

func occurrenceAndUser(req *structpb.Struct) (string, string, error) {
	occurrenceID, err := stringField(req, "occurrence_id")
	if err != nil {
		return "", "", err
	}
	userID, err := stringField(req, "user_id")
	if err != nil {
		return "", "", err
	}
	return occurrenceID, userID, nil
}

// toStatus maps the error taxonomy onto gRPC codes. Internal details of
// unexpected errors are not exposed.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrAlreadyRegistered):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrOccurrenceExpired), errors.Is(err, common.ErrOccurrenceActive):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrInvalidCode):
		return status.Error(codes.InvalidArgument, common.ErrInvalidCode.Error())
	case errors.Is(err, common.ErrTooManyAttempts):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, common.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, common.ErrStoreUnavailable.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}
