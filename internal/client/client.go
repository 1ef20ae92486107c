// Package client is the typed gRPC client of the chatdesk daemon.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/chatdesk/internal/api"
	"github.com/matheus3301/chatdesk/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn    *grpc.ClientConn
	Desk    *DeskClient
	Call    *CallClient
	Session *SessionClient
}

// Options configure Dial.
type Options struct {
	// Token is sent as a bearer token on every call when set.
	Token string
	// Target overrides the unix socket, e.g. "127.0.0.1:7443".
	Target string
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string, opts Options) (*Client, error) {
	target := opts.Target
	if target == "" {
		target = "unix://" + socketPath
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.Token != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(auth.BearerCredentials{Token: opts.Token}))
	}
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return FromConn(conn), nil
}

// FromConn wraps an existing connection.
func FromConn(conn *grpc.ClientConn) *Client {
	return &Client{
		conn:    conn,
		Desk:    &DeskClient{conn: conn},
		Call:    &CallClient{conn: conn},
		Session: &SessionClient{conn: conn},
	}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, conn *grpc.ClientConn, service, method string, req any) (*Resp, error) {
	in, err := api.Encode(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, api.FullMethod(service, method), in, out); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := api.Decode(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SessionClient calls the session service.
type SessionClient struct {
	conn *grpc.ClientConn
}

func (c *SessionClient) GetStatus(ctx context.Context) (*api.StatusResponse, error) {
	return invoke[api.StatusResponse](ctx, c.conn, api.SessionServiceName, "GetStatus", api.Empty{})
}

func (c *SessionClient) ListOutbox(ctx context.Context, req api.ListOutboxRequest) (*api.ListOutboxResponse, error) {
	return invoke[api.ListOutboxResponse](ctx, c.conn, api.SessionServiceName, "ListOutbox", req)
}

// Watch streams events matching prefixes to fn until ctx is done, the
// stream ends or fn returns an error.
func (c *SessionClient) Watch(ctx context.Context, prefixes []string, fn func(api.Envelope) error) error {
	stream, err := c.conn.NewStream(ctx, api.WatchEventsDesc, api.FullMethod(api.SessionServiceName, "WatchEvents"))
	if err != nil {
		return err
	}
	in, err := api.Encode(api.WatchRequest{Prefixes: prefixes})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var env api.Envelope
		if err := api.Decode(out, &env); err != nil {
			return err
		}
		if err := fn(env); err != nil {
			return err
		}
	}
}
