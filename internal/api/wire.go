// Package api serves the daemon over gRPC. Requests and responses travel as
// google.protobuf.Struct messages carrying the JSON form of the types in
// this package, so no generated code is needed on either side.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/chatdesk/internal/call"
	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/ingest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service names.
const (
	DeskServiceName    = "chatdesk.v1.Desk"
	CallServiceName    = "chatdesk.v1.Call"
	SessionServiceName = "chatdesk.v1.Session"
)

// FullMethod returns the gRPC method path of a service method.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// Encode converts v to its wire form.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// Decode fills dst from its wire form. A nil message leaves dst unchanged.
func Decode(s *structpb.Struct, dst any) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode %T: %w", dst, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %T: %w", dst, err)
	}
	return nil
}

// handle decodes a request, runs fn and encodes its response.
func handle[Req, Resp any](in *structpb.Struct, fn func(*Req) (Resp, error)) (*structpb.Struct, error) {
	req := new(Req)
	if err := Decode(in, req); err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := fn(req)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := Encode(resp)
	if err != nil {
		return nil, grpcstatus.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, ingest.ErrCaptureDenied):
		code = codes.PermissionDenied
	case errors.Is(err, ingest.ErrCaptureUnsupported):
		code = codes.Unavailable
	case errors.Is(err, ingest.ErrAlreadyRecording),
		errors.Is(err, ingest.ErrNotRecording),
		errors.Is(err, chat.ErrNoRecipients):
		code = codes.FailedPrecondition
	case errors.Is(err, chat.ErrDuplicateContact):
		code = codes.AlreadyExists
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMixedContent),
		errors.Is(err, chat.ErrTombstoneContent),
		errors.Is(err, chat.ErrInvalidStatus),
		errors.Is(err, chat.ErrMissingID),
		errors.Is(err, chat.ErrEmptyName),
		errors.Is(err, call.ErrMissingParticipant),
		errors.Is(err, call.ErrSelfCall),
		errors.Is(err, call.ErrInvalidType),
		errors.Is(err, call.ErrInvalidDirection),
		errors.Is(err, ingest.ErrEmptyName),
		errors.Is(err, ingest.ErrTooLarge),
		errors.Is(err, ingest.ErrEmptyRecording):
		code = codes.InvalidArgument
	}
	return grpcstatus.Error(code, err.Error())
}

// unaryMethod is a server method in wire form.
type unaryMethod[S any] func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)

// method builds the descriptor of a unary method of service.
func method[S any](service, name string, fn unaryMethod[S]) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(service, name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*structpb.Struct))
			})
		},
	}
}
