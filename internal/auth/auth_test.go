package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("s3cret", time.Minute)
	token, exp, err := m.Issue("chatdeskctl", "main")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "chatdeskctl", claims.Subject)
	require.Equal(t, "main", claims.Profile)
}

func TestVerifyRejects(t *testing.T) {
	m := NewManager("s3cret", time.Minute)

	other, _, err := NewManager("different", time.Minute).Issue("x", "")
	require.NoError(t, err)
	_, err = m.Verify(other)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := NewManager("s3cret", time.Nanosecond).Issue("x", "")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = m.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(none)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func incoming(header string) context.Context {
	if header == "" {
		return metadata.NewIncomingContext(context.Background(), metadata.MD{})
	}
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", header))
}

func TestUnaryInterceptor(t *testing.T) {
	m := NewManager("s3cret", time.Minute)
	token, _, err := m.Issue("tester", "main")
	require.NoError(t, err)

	var seen *Claims
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = ClaimsFromContext(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/chatdesk.v1.Desk/ListContacts"}
	intercept := m.UnaryInterceptor()

	resp, err := intercept(incoming("Bearer "+token), nil, info, handler)
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.NotNil(t, seen)
	require.Equal(t, "tester", seen.Subject)

	for _, header := range []string{"", "Bearer ", token, "Bearer garbage"} {
		_, err := intercept(incoming(header), nil, info, handler)
		require.Equal(t, codes.Unauthenticated, status.Code(err), "header %q", header)
	}

	_, err = intercept(context.Background(), nil, info, handler)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f fakeStream) Context() context.Context { return f.ctx }

func TestStreamInterceptor(t *testing.T) {
	m := NewManager("s3cret", time.Minute)
	token, _, err := m.Issue("watcher", "")
	require.NoError(t, err)

	var subject string
	handler := func(_ any, ss grpc.ServerStream) error {
		c, _ := ClaimsFromContext(ss.Context())
		subject = c.Subject
		return nil
	}
	intercept := m.StreamInterceptor()
	info := &grpc.StreamServerInfo{FullMethod: "/chatdesk.v1.Session/WatchEvents"}

	require.NoError(t, intercept(nil, fakeStream{ctx: incoming("Bearer " + token)}, info, handler))
	require.Equal(t, "watcher", subject)

	err = intercept(nil, fakeStream{ctx: incoming("")}, info, handler)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestBearerCredentials(t *testing.T) {
	md, err := BearerCredentials{Token: "abc"}.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", md["authorization"])
	require.False(t, BearerCredentials{}.RequireTransportSecurity())
}

func TestLimiterStore(t *testing.T) {
	s := NewLimiterStore(60, 3, 0)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		require.True(t, s.Allow("k"), "iteration %d", i)
	}
	require.False(t, s.Allow("k"), "burst exhausted")
	require.True(t, s.Allow("other"), "keys are independent")

	s.prune(time.Now().Add(time.Minute))
	s.mu.Lock()
	require.Empty(t, s.clients)
	s.mu.Unlock()
	s.Stop()
}

func TestLimiterStoreUnlimited(t *testing.T) {
	s := NewLimiterStore(0, 0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, s.Allow("k"))
	}
}

func TestRateLimitUnaryInterceptor(t *testing.T) {
	s := NewLimiterStore(60, 1, 0)
	defer s.Stop()
	limited := map[string]bool{"/chatdesk.v1.Desk/Send": true}
	intercept := RateLimitUnaryInterceptor(s, limited)
	handler := func(context.Context, any) (any, error) { return "ok", nil }

	send := &grpc.UnaryServerInfo{FullMethod: "/chatdesk.v1.Desk/Send"}
	list := &grpc.UnaryServerInfo{FullMethod: "/chatdesk.v1.Desk/ListContacts"}
	ctx := context.Background()

	_, err := intercept(ctx, nil, send, handler)
	require.NoError(t, err)
	_, err = intercept(ctx, nil, send, handler)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))

	for i := 0; i < 5; i++ {
		_, err = intercept(ctx, nil, list, handler)
		require.NoError(t, err)
	}

	// Another authenticated caller has its own bucket.
	other := context.WithValue(ctx, claimsKey{}, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "b"}})
	_, err = intercept(other, nil, send, handler)
	require.NoError(t, err)
}
