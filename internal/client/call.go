package client

import (
	"context"

	"github.com/matheus3301/chatdesk/internal/api"
	"google.golang.org/grpc"
)

// CallClient calls the call service. An empty participant id means the
// local user.
type CallClient struct {
	conn *grpc.ClientConn
}

func (c *CallClient) participant(ctx context.Context, method, id string) (*api.CallResponse, error) {
	return invoke[api.CallResponse](ctx, c.conn, api.CallServiceName, method, api.ParticipantRequest{ParticipantID: id})
}

func (c *CallClient) Start(ctx context.Context, req api.StartCallRequest) (*api.CallResponse, error) {
	return invoke[api.CallResponse](ctx, c.conn, api.CallServiceName, "StartCall", req)
}

func (c *CallClient) Answer(ctx context.Context, id string) (*api.CallResponse, error) {
	return c.participant(ctx, "AnswerCall", id)
}

func (c *CallClient) End(ctx context.Context, id string) (*api.CallResponse, error) {
	return c.participant(ctx, "EndCall", id)
}

func (c *CallClient) ToggleMute(ctx context.Context, id string) (*api.CallResponse, error) {
	return c.participant(ctx, "ToggleMute", id)
}

func (c *CallClient) ToggleCam(ctx context.Context, id string) (*api.CallResponse, error) {
	return c.participant(ctx, "ToggleCam", id)
}

func (c *CallClient) Dock(ctx context.Context, id string) (*api.CallResponse, error) {
	return c.participant(ctx, "Dock", id)
}

func (c *CallClient) Undock(ctx context.Context, id string) (*api.CallResponse, error) {
	return c.participant(ctx, "Undock", id)
}

func (c *CallClient) Get(ctx context.Context, id string) (*api.CallResponse, error) {
	return c.participant(ctx, "GetCall", id)
}

func (c *CallClient) List(ctx context.Context) (*api.ListCallsResponse, error) {
	return invoke[api.ListCallsResponse](ctx, c.conn, api.CallServiceName, "ListCalls", api.Empty{})
}
