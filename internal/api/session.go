package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatdesk/internal/bus"
	"github.com/matheus3301/chatdesk/internal/call"
	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/status"
	"github.com/matheus3301/chatdesk/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// SessionServer reports daemon health and streams events.
type SessionServer interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOutbox(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, grpc.ServerStream) error
}

// OutboxLister reads the send journal. *store.DB satisfies it.
type OutboxLister interface {
	ListOutbox(ctx context.Context, status string, limit int) ([]store.OutboxEntry, error)
	OutboxCounts(ctx context.Context) (map[string]int64, error)
}

// PersistStats reports persistence progress. *sync.Engine satisfies it.
type PersistStats interface {
	Stats() (saves, pending int, lastErr error)
}

// SessionService implements SessionServer.
type SessionService struct {
	profile   string
	backend   string
	startedAt time.Time
	machine   *status.Machine
	store     *chat.Store
	coord     *call.Coordinator
	journal   OutboxLister
	persist   PersistStats
	bus       *bus.Bus

	done     chan struct{}
	shutdown sync.Once
}

// NewSessionService creates a new session service. journal and persist may be nil.
func NewSessionService(profile, backend string, machine *status.Machine, store *chat.Store, coord *call.Coordinator, journal OutboxLister, persist PersistStats, b *bus.Bus) *SessionService {
	return &SessionService{
		profile:   profile,
		backend:   backend,
		startedAt: time.Now(),
		machine:   machine,
		store:     store,
		coord:     coord,
		journal:   journal,
		persist:   persist,
		bus:       b,
		done:      make(chan struct{}),
	}
}

// Shutdown ends every open event stream.
func (s *SessionService) Shutdown() {
	s.shutdown.Do(func() { close(s.done) })
}

// RegisterSessionServer registers srv on s.
func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		method(SessionServiceName, "GetStatus", SessionServer.GetStatus),
		method(SessionServiceName, "ListOutbox", SessionServer.ListOutbox),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "WatchEvents",
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(SessionServer).WatchEvents(in, stream)
			},
			ServerStreams: true,
		},
	},
	Metadata: "chatdesk/v1/session",
}

// WatchEventsDesc describes the WatchEvents stream for clients.
var WatchEventsDesc = &grpc.StreamDesc{StreamName: "WatchEvents", ServerStreams: true}

func (s *SessionService) GetStatus(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(*Empty) (StatusResponse, error) {
		state, reason, since := s.machine.Snapshot()
		resp := StatusResponse{
			Profile:     s.profile,
			Status:      string(state),
			Reason:      reason,
			SinceUnixMs: since.UnixMilli(),
			UptimeMs:    time.Since(s.startedAt).Milliseconds(),
			Backend:     s.backend,
		}

		if s.store != nil {
			snap := s.store.Snapshot()
			resp.Contacts = len(snap.Contacts)
			resp.Conversations = len(snap.Conversations)
			for _, c := range snap.Conversations {
				resp.Messages += len(c.Messages)
			}
			for _, c := range snap.Contacts {
				resp.Unread += c.Unread
			}
		}
		if s.coord != nil {
			resp.ActiveCalls = len(s.coord.Calls())
		}
		if s.persist != nil {
			saves, pending, err := s.persist.Stats()
			resp.Saves = saves
			resp.PendingWrites = pending
			if err != nil {
				resp.PersistError = err.Error()
			}
		}
		return resp, nil
	})
}

func (s *SessionService) ListOutbox(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ListOutboxRequest) (ListOutboxResponse, error) {
		if s.journal == nil {
			return ListOutboxResponse{}, grpcstatus.Error(codes.Unavailable, "send journal not available")
		}
		switch req.Status {
		case "", store.OutboxQueued, store.OutboxSent, store.OutboxFailed:
		default:
			return ListOutboxResponse{}, grpcstatus.Errorf(codes.InvalidArgument, "unknown outbox status %q", req.Status)
		}
		rows, err := s.journal.ListOutbox(ctx, req.Status, req.Limit)
		if err != nil {
			return ListOutboxResponse{}, grpcstatus.Errorf(codes.Internal, "list outbox: %v", err)
		}
		counts, err := s.journal.OutboxCounts(ctx)
		if err != nil {
			return ListOutboxResponse{}, grpcstatus.Errorf(codes.Internal, "count outbox: %v", err)
		}
		entries := make([]OutboxEntry, 0, len(rows))
		for _, e := range rows {
			entries = append(entries, OutboxEntry{
				ClientMsgID:  e.ClientMsgID,
				ContactID:    e.ContactID,
				Recipients:   e.Recipients,
				Body:         e.Body,
				Attachments:  e.Attachments,
				Status:       e.Status,
				ErrorMessage: e.ErrorMessage,
				CreatedAt:    e.CreatedAt,
				UpdatedAt:    e.UpdatedAt,
			})
		}
		return ListOutboxResponse{Entries: entries, Counts: counts}, nil
	})
}

// WatchEvents streams bus events until the client goes away. Events the
// client is too slow to take are dropped.
func (s *SessionService) WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	var req WatchRequest
	if err := Decode(in, &req); err != nil {
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	}

	ch, unsub := s.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if !matches(evt.Kind, req.Prefixes) {
				continue
			}
			out, err := Encode(Envelope{
				EventID:          uuid.NewString(),
				Profile:          s.profile,
				Kind:             evt.Kind,
				OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
				Payload:          evt.Payload,
			})
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "encode %s: %v", evt.Kind, err)
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}

func matches(kind string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}
