package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type claimsKey struct{}

// ClaimsFromContext returns the claims of an authenticated call.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// authenticate checks the bearer token in ctx's metadata.
func (m *Manager) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}
	token, found := strings.CutPrefix(values[0], "Bearer ")
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return nil, status.Error(codes.Unauthenticated, "malformed authorization header")
	}
	claims, err := m.Verify(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
	}
	return context.WithValue(ctx, claimsKey{}, claims), nil
}

// UnaryInterceptor rejects unary calls without a valid bearer token.
func (m *Manager) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := m.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor is the stream equivalent of UnaryInterceptor.
func (m *Manager) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := m.authenticate(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, contextStream{ServerStream: ss, ctx: ctx})
	}
}

// contextStream overrides the context of a server stream.
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s contextStream) Context() context.Context { return s.ctx }

// BearerCredentials attaches a bearer token to every outgoing call.
type BearerCredentials struct {
	Token string
}

func (c BearerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + c.Token}, nil
}

// RequireTransportSecurity is false: the daemon listens on a local socket.
func (BearerCredentials) RequireTransportSecurity() bool { return false }
