package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "sporthack.v1.ClubAdmin"

// Full method names of the admin service.
const (
	MethodReconcile         = "/" + serviceName + "/Reconcile"
	MethodRegister          = "/" + serviceName + "/Register"
	MethodUnregister        = "/" + serviceName + "/Unregister"
	MethodIssueResetCode    = "/" + serviceName + "/IssueResetCode"
	MethodValidateResetCode = "/" + serviceName + "/ValidateResetCode"
)

// ClubAdminServer is the admin API. Requests and responses are free-form
// structs so the service needs no generated code.
type ClubAdminServer interface {
	Reconcile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Unregister(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IssueResetCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateResetCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ClubAdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name, fullMethod string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ClubAdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ClubAdminServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ClubAdminServiceDesc describes the admin service for grpc.Server.RegisterService.
var ClubAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ClubAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Reconcile", MethodReconcile, ClubAdminServer.Reconcile),
		unary("Register", MethodRegister, ClubAdminServer.Register),
		unary("Unregister", MethodUnregister, ClubAdminServer.Unregister),
		unary("IssueResetCode", MethodIssueResetCode, ClubAdminServer.IssueResetCode),
		unary("ValidateResetCode", MethodValidateResetCode, ClubAdminServer.ValidateResetCode),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sporthack/v1/admin.proto",
}

// Client calls the admin service over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reconcile triggers a run for kind ("training", "event" or "all").
func (c *Client) Reconcile(ctx context.Context, kind string) (*structpb.Struct, error) {
	return c.call(ctx, MethodReconcile, map[string]any{"kind": kind})
}

func (c *Client) Register(ctx context.Context, occurrenceID, userID string) (*structpb.Struct, error) {
	return c.call(ctx, MethodRegister, map[string]any{"occurrence_id": occurrenceID, "user_id": userID})
}

func (c *Client) Unregister(ctx context.Context, occurrenceID, userID string) (*structpb.Struct, error) {
	return c.call(ctx, MethodUnregister, map[string]any{"occurrence_id": occurrenceID, "user_id": userID})
}

func (c *Client) IssueResetCode(ctx context.Context, userID string) (*structpb.Struct, error) {
	return c.call(ctx, MethodIssueResetCode, map[string]any{"user_id": userID})
}

func (c *Client) ValidateResetCode(ctx context.Context, userID string, code int) (*structpb.Struct, error) {
	return c.call(ctx, MethodValidateResetCode, map[string]any{"user_id": userID, "code": code})
}
