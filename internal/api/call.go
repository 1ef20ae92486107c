package api

import (
	"context"

	"github.com/matheus3301/chatdesk/internal/call"
	"github.com/matheus3301/chatdesk/internal/chat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// CallServer drives the call coordinator.
type CallServer interface {
	StartCall(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnswerCall(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndCall(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleMute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleCam(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Dock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCall(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCalls(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// CallService implements CallServer.
type CallService struct {
	coord *call.Coordinator
	store *chat.Store
}

// NewCallService creates a new call service. Calls may only be placed
// between the local user and known contacts.
func NewCallService(coord *call.Coordinator, store *chat.Store) *CallService {
	return &CallService{coord: coord, store: store}
}

// RegisterCallServer registers srv on s.
func RegisterCallServer(s grpc.ServiceRegistrar, srv CallServer) {
	s.RegisterService(&callServiceDesc, srv)
}

var callServiceDesc = grpc.ServiceDesc{
	ServiceName: CallServiceName,
	HandlerType: (*CallServer)(nil),
	Methods: []grpc.MethodDesc{
		method(CallServiceName, "StartCall", CallServer.StartCall),
		method(CallServiceName, "AnswerCall", CallServer.AnswerCall),
		method(CallServiceName, "EndCall", CallServer.EndCall),
		method(CallServiceName, "ToggleMute", CallServer.ToggleMute),
		method(CallServiceName, "ToggleCam", CallServer.ToggleCam),
		method(CallServiceName, "Dock", CallServer.Dock),
		method(CallServiceName, "Undock", CallServer.Undock),
		method(CallServiceName, "GetCall", CallServer.GetCall),
		method(CallServiceName, "ListCalls", CallServer.ListCalls),
	},
	Metadata: "chatdesk/v1/call",
}

func (s *CallService) StartCall(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *StartCallRequest) (CallResponse, error) {
		from := participant(req.From)
		for _, id := range []string{from, req.To} {
			if id == chat.Me || id == "" {
				continue
			}
			if _, ok := s.store.ContactName(id); !ok {
				return CallResponse{}, grpcstatus.Errorf(codes.NotFound, "contact %q not found", id)
			}
		}
		c, err := s.coord.StartCall(req.Type, from, req.To, req.Direction)
		return CallResponse{Call: c, OK: err == nil}, err
	})
}

func (s *CallService) AnswerCall(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ParticipantRequest) (CallResponse, error) {
		id := participant(req.ParticipantID)
		ok := s.coord.AnswerCall(id)
		c, _ := s.coord.Get(id)
		return CallResponse{Call: c, OK: ok}, nil
	})
}

func (s *CallService) EndCall(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ParticipantRequest) (CallResponse, error) {
		id := participant(req.ParticipantID)
		ok := s.coord.EndCall(id)
		c, _ := s.coord.Get(id)
		return CallResponse{Call: c, OK: ok}, nil
	})
}

func (s *CallService) ToggleMute(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.update(in, s.coord.ToggleMute)
}

func (s *CallService) ToggleCam(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.update(in, s.coord.ToggleCam)
}

func (s *CallService) Dock(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.update(in, s.coord.DockToSide)
}

func (s *CallService) Undock(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.update(in, s.coord.UndockToModal)
}

func (s *CallService) GetCall(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ParticipantRequest) (CallResponse, error) {
		c, ok := s.coord.Get(participant(req.ParticipantID))
		return CallResponse{Call: c, OK: ok}, nil
	})
}

func (s *CallService) ListCalls(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(*Empty) (ListCallsResponse, error) {
		callID, ticks := s.coord.Ticks()
		resp := ListCallsResponse{Calls: s.coord.Calls(), TickCallID: callID, Ticks: ticks}
		if callID != "" {
			resp.Elapsed = call.FormatDuration(int64(ticks))
		}
		return resp, nil
	})
}

func (s *CallService) update(in *structpb.Struct, fn func(string) (call.Call, bool)) (*structpb.Struct, error) {
	return handle(in, func(req *ParticipantRequest) (CallResponse, error) {
		c, ok := fn(participant(req.ParticipantID))
		return CallResponse{Call: c, OK: ok}, nil
	})
}

func participant(id string) string {
	if id == "" {
		return chat.Me
	}
	return id
}
