package api

import (
	"context"

	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/ingest"
	"github.com/matheus3301/chatdesk/internal/outbox"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// DeskServer is the contacts, conversations and compose surface.
type DeskServer interface {
	ListContacts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetActive(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkRead(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Visible(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Receive(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetExtraRecipients(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetOnline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteForMe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteForEveryone(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Pin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Unpin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPreferences(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdatePreferences(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Compose(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DiscardDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRecording(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRecording(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Send(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// DeskService implements DeskServer over the chat store and the composer.
type DeskService struct {
	store    *chat.Store
	composer *outbox.Composer
	ingester *ingest.Ingester
}

// NewDeskService creates a new desk service.
func NewDeskService(store *chat.Store, composer *outbox.Composer, in *ingest.Ingester) *DeskService {
	return &DeskService{store: store, composer: composer, ingester: in}
}

// RegisterDeskServer registers srv on s.
func RegisterDeskServer(s grpc.ServiceRegistrar, srv DeskServer) {
	s.RegisterService(&deskServiceDesc, srv)
}

var deskServiceDesc = grpc.ServiceDesc{
	ServiceName: DeskServiceName,
	HandlerType: (*DeskServer)(nil),
	Methods: []grpc.MethodDesc{
		method(DeskServiceName, "ListContacts", DeskServer.ListContacts),
		method(DeskServiceName, "GetConversation", DeskServer.GetConversation),
		method(DeskServiceName, "CreateContact", DeskServer.CreateContact),
		method(DeskServiceName, "SetActive", DeskServer.SetActive),
		method(DeskServiceName, "MarkRead", DeskServer.MarkRead),
		method(DeskServiceName, "Visible", DeskServer.Visible),
		method(DeskServiceName, "Receive", DeskServer.Receive),
		method(DeskServiceName, "SetExtraRecipients", DeskServer.SetExtraRecipients),
		method(DeskServiceName, "SetOnline", DeskServer.SetOnline),
		method(DeskServiceName, "DeleteForMe", DeskServer.DeleteForMe),
		method(DeskServiceName, "DeleteForEveryone", DeskServer.DeleteForEveryone),
		method(DeskServiceName, "Pin", DeskServer.Pin),
		method(DeskServiceName, "Unpin", DeskServer.Unpin),
		method(DeskServiceName, "GetPreferences", DeskServer.GetPreferences),
		method(DeskServiceName, "UpdatePreferences", DeskServer.UpdatePreferences),
		method(DeskServiceName, "Compose", DeskServer.Compose),
		method(DeskServiceName, "RemoveFile", DeskServer.RemoveFile),
		method(DeskServiceName, "DiscardDraft", DeskServer.DiscardDraft),
		method(DeskServiceName, "GetDraft", DeskServer.GetDraft),
		method(DeskServiceName, "StartRecording", DeskServer.StartRecording),
		method(DeskServiceName, "StopRecording", DeskServer.StopRecording),
		method(DeskServiceName, "Send", DeskServer.Send),
	},
	Metadata: "chatdesk/v1/desk",
}

func (s *DeskService) ListContacts(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ListContactsRequest) (ListContactsResponse, error) {
		contacts := s.store.Contacts(req.Query)
		online, offline := chat.OnlineCounts(contacts)
		return ListContactsResponse{Contacts: contacts, Online: online, Offline: offline}, nil
	})
}

func (s *DeskService) GetConversation(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ContactRequest) (ConversationResponse, error) {
		if err := s.requireContact(req.ContactID); err != nil {
			return ConversationResponse{}, err
		}
		msgs, pinned, _ := s.store.Messages(req.ContactID)
		if msgs == nil {
			msgs = []chat.Message{}
		}
		return ConversationResponse{ContactID: req.ContactID, Messages: msgs, PinnedMessageID: pinned}, nil
	})
}

func (s *DeskService) CreateContact(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *CreateContactRequest) (ContactResponse, error) {
		c, err := s.store.CreateContact(chat.Contact{ID: req.ID, Name: req.Name, Title: req.Title}, req.FirstMessage)
		return ContactResponse{Contact: c}, err
	})
}

func (s *DeskService) SetActive(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ContactRequest) (ChangedResponse, error) {
		if err := s.requireContact(req.ContactID); err != nil {
			return ChangedResponse{}, err
		}
		return ChangedResponse{Changed: s.store.SetActive(req.ContactID)}, nil
	})
}

func (s *DeskService) MarkRead(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ContactRequest) (ChangedResponse, error) {
		return ChangedResponse{Changed: s.store.MarkRead(req.ContactID)}, nil
	})
}

func (s *DeskService) Visible(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(*Empty) (ChangedResponse, error) {
		return ChangedResponse{Changed: s.store.Visible()}, nil
	})
}

func (s *DeskService) Receive(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ReceiveRequest) (MessageResponse, error) {
		if err := s.requireContact(req.ContactID); err != nil {
			return MessageResponse{}, err
		}
		msg, err := s.store.Append(req.ContactID, chat.Message{
			SenderID: req.ContactID,
			Text:     req.Text,
			Status:   chat.StatusDelivered,
		})
		return MessageResponse{Message: msg}, err
	})
}

func (s *DeskService) SetExtraRecipients(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *RecipientsRequest) (RecipientsResponse, error) {
		ids := s.store.SetExtraRecipients(req.ContactIDs)
		if ids == nil {
			ids = []string{}
		}
		return RecipientsResponse{ContactIDs: ids}, nil
	})
}

func (s *DeskService) SetOnline(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *PresenceRequest) (ChangedResponse, error) {
		return ChangedResponse{Changed: s.store.SetOnline(req.ContactID, req.Online)}, nil
	})
}

func (s *DeskService) DeleteForMe(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *MessageRequest) (ChangedResponse, error) {
		return ChangedResponse{Changed: s.store.DeleteForMe(req.ContactID, req.MessageID)}, nil
	})
}

func (s *DeskService) DeleteForEveryone(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *MessageRequest) (ChangedResponse, error) {
		return ChangedResponse{Changed: s.store.DeleteForEveryone(req.ContactID, req.MessageID)}, nil
	})
}

func (s *DeskService) Pin(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *MessageRequest) (ChangedResponse, error) {
		return ChangedResponse{Changed: s.store.Pin(req.ContactID, req.MessageID)}, nil
	})
}

func (s *DeskService) Unpin(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ContactRequest) (ChangedResponse, error) {
		return ChangedResponse{Changed: s.store.Unpin(req.ContactID)}, nil
	})
}

func (s *DeskService) GetPreferences(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(*Empty) (PreferencesResponse, error) {
		return PreferencesResponse{Preferences: s.store.Preferences()}, nil
	})
}

func (s *DeskService) UpdatePreferences(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *PreferencesRequest) (PreferencesResponse, error) {
		prefs := s.store.UpdatePreferences(chat.PreferencesUpdate{
			NotifyEnabled: req.NotifyEnabled,
			DarkBubbles:   req.DarkBubbles,
			ReadReceipts:  req.ReadReceipts,
			LastTab:       req.LastTab,
		})
		return PreferencesResponse{Preferences: prefs}, nil
	})
}

func (s *DeskService) Compose(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *ComposeRequest) (DraftResponse, error) {
		files := make([]ingest.File, 0, len(req.Files)+len(req.Paths))
		for _, f := range req.Files {
			files = append(files, ingest.File{Name: f.Name, MIME: f.MIME, Data: f.Data})
		}
		for _, p := range req.Paths {
			f, err := ingest.ReadFile(p)
			if err != nil {
				return DraftResponse{}, grpcstatus.Error(codes.NotFound, err.Error())
			}
			files = append(files, f)
		}
		if req.Text != nil {
			s.composer.SetText(*req.Text)
		}
		s.composer.AddFiles(files...)
		return s.draft(), nil
	})
}

func (s *DeskService) RemoveFile(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *RemoveFileRequest) (DraftResponse, error) {
		if !s.composer.RemoveFile(req.Name) {
			return DraftResponse{}, grpcstatus.Errorf(codes.NotFound, "no pending file %q", req.Name)
		}
		return s.draft(), nil
	})
}

func (s *DeskService) DiscardDraft(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(*Empty) (DraftResponse, error) {
		s.composer.Discard()
		return s.draft(), nil
	})
}

func (s *DeskService) GetDraft(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(*Empty) (DraftResponse, error) {
		return s.draft(), nil
	})
}

func (s *DeskService) StartRecording(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(*Empty) (DraftResponse, error) {
		if err := s.composer.StartRecording(ctx); err != nil {
			return DraftResponse{}, err
		}
		return s.draft(), nil
	})
}

func (s *DeskService) StopRecording(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(*Empty) (DraftResponse, error) {
		if _, err := s.composer.StopRecording(ctx); err != nil {
			return DraftResponse{}, err
		}
		return s.draft(), nil
	})
}

func (s *DeskService) Send(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(in, func(req *SendRequest) (SendResponse, error) {
		if req.Text != nil {
			s.composer.SetText(*req.Text)
		}
		deliveries, err := s.composer.Send(ctx)
		return SendResponse{Deliveries: deliveries}, err
	})
}

func (s *DeskService) draft() DraftResponse {
	elapsed, recording := s.composer.Recording()
	return DraftResponse{
		Draft:       s.composer.Draft(),
		Recording:   recording,
		RecordingMs: elapsed.Milliseconds(),
		MaxBytes:    s.ingester.MaxBytes(),
	}
}

func (s *DeskService) requireContact(id string) error {
	if _, ok := s.store.ContactName(id); !ok {
		return grpcstatus.Errorf(codes.NotFound, "contact %q not found", id)
	}
	return nil
}
