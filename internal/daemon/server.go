package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/matheus3301/chatdesk/internal/api"
	"github.com/matheus3301/chatdesk/internal/auth"
	"github.com/matheus3301/chatdesk/internal/config"
	"github.com/matheus3301/chatdesk/internal/profile"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// rateLimited are the methods that create messages or calls.
var rateLimited = map[string]bool{
	api.FullMethod(api.DeskServiceName, "Send"):          true,
	api.FullMethod(api.DeskServiceName, "Receive"):       true,
	api.FullMethod(api.DeskServiceName, "CreateContact"): true,
	api.FullMethod(api.CallServiceName, "StartCall"):     true,
}

// Server manages the gRPC server lifecycle for a profile daemon.
type Server struct {
	grpcServer *grpc.Server
	listeners  []net.Listener
	socketPath string
	limiter    *auth.LimiterStore
	logger     *zap.Logger
}

// NewServer creates a gRPC server bound to the profile's Unix domain socket
// and, when configured, a TCP address.
func NewServer(
	p Params,
	cfg *config.Config,
	logger *zap.Logger,
	deskSvc *api.DeskService,
	callSvc *api.CallService,
	sessionSvc *api.SessionService,
) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = profile.SocketPath(p.Profile)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	listeners := []net.Listener{listener}

	if cfg.API.TCPListen != "" {
		tcp, err := net.Listen("tcp", cfg.API.TCPListen)
		if err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("listen tcp: %w", err)
		}
		listeners = append(listeners, tcp)
	}

	limiter := auth.NewLimiterStore(cfg.API.SendRatePerMinute, 10, time.Minute)
	var unary []grpc.UnaryServerInterceptor
	var stream []grpc.StreamServerInterceptor
	if cfg.API.AuthSecret != "" {
		m := auth.NewManager(cfg.API.AuthSecret, 0)
		unary = append(unary, m.UnaryInterceptor())
		stream = append(stream, m.StreamInterceptor())
	}
	unary = append(unary, auth.RateLimitUnaryInterceptor(limiter, rateLimited))

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)
	api.RegisterDeskServer(srv, deskSvc)
	api.RegisterCallServer(srv, callSvc)
	api.RegisterSessionServer(srv, sessionSvc)

	return &Server{
		grpcServer: srv,
		listeners:  listeners,
		socketPath: socketPath,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Addrs returns the addresses the server listens on.
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, l := range s.listeners {
		addrs = append(addrs, l.Addr())
	}
	return addrs
}

// Start begins serving gRPC requests on every listener. It returns once
// all listeners have stopped.
func (s *Server) Start() error {
	errCh := make(chan error, len(s.listeners))
	for _, l := range s.listeners {
		s.logger.Info("gRPC server starting", zap.String("network", l.Addr().Network()), zap.String("addr", l.Addr().String()))
		go func() { errCh <- s.grpcServer.Serve(l) }()
	}
	var first error
	for range s.listeners {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stop performs a graceful shutdown and removes the socket file. Calls
// still running when ctx is done are cut off.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("graceful stop timed out, closing open calls")
		s.grpcServer.Stop()
		<-done
	}
	s.limiter.Stop()
	_ = os.Remove(s.socketPath)
}
