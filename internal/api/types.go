package api

import (
	"github.com/matheus3301/chatdesk/internal/call"
	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/outbox"
)

// Empty is the request and response of methods without fields.
type Empty struct{}

type ListContactsRequest struct {
	Query string `json:"query,omitempty"`
}

type ListContactsResponse struct {
	Contacts []chat.Contact `json:"contacts"`
	Online   int            `json:"online"`
	Offline  int            `json:"offline"`
}

type ContactRequest struct {
	ContactID string `json:"contactId"`
}

type ConversationResponse struct {
	ContactID       string         `json:"contactId"`
	Messages        []chat.Message `json:"messages"`
	PinnedMessageID string         `json:"pinnedMessageId,omitempty"`
}

type CreateContactRequest struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Title        string `json:"title,omitempty"`
	FirstMessage string `json:"firstMessage,omitempty"`
}

type ContactResponse struct {
	Contact chat.Contact `json:"contact"`
}

type MessageRequest struct {
	ContactID string `json:"contactId"`
	MessageID string `json:"messageId"`
}

// ReceiveRequest injects a message written by a contact.
type ReceiveRequest struct {
	ContactID string `json:"contactId"`
	Text      string `json:"text"`
}

type MessageResponse struct {
	Message chat.Message `json:"message"`
}

type ChangedResponse struct {
	Changed bool `json:"changed"`
}

type RecipientsRequest struct {
	ContactIDs []string `json:"contactIds"`
}

type RecipientsResponse struct {
	ContactIDs []string `json:"contactIds"`
}

type PresenceRequest struct {
	ContactID string `json:"contactId"`
	Online    bool   `json:"online"`
}

// FileUpload is a file sent inline with a compose request.
type FileUpload struct {
	Name string `json:"name"`
	MIME string `json:"mime,omitempty"`
	Data []byte `json:"data"`
}

// ComposeRequest edits the draft. Text replaces the draft text when set;
// files and daemon-local paths are appended.
type ComposeRequest struct {
	Text  *string      `json:"text,omitempty"`
	Files []FileUpload `json:"files,omitempty"`
	Paths []string     `json:"paths,omitempty"`
}

type RemoveFileRequest struct {
	Name string `json:"name"`
}

type DraftResponse struct {
	Draft       outbox.Draft `json:"draft"`
	Recording   bool         `json:"recording"`
	RecordingMs int64        `json:"recordingMs,omitempty"`
	MaxBytes    int64        `json:"maxBytes"`
}

// SendRequest sends the draft, after replacing its text when Text is set.
type SendRequest struct {
	Text *string `json:"text,omitempty"`
}

type SendResponse struct {
	Deliveries []chat.Delivery `json:"deliveries"`
}

type PreferencesRequest struct {
	NotifyEnabled *bool     `json:"notifyEnabled,omitempty"`
	DarkBubbles   *bool     `json:"darkBubbles,omitempty"`
	ReadReceipts  *bool     `json:"readReceipts,omitempty"`
	LastTab       *chat.Tab `json:"lastTab,omitempty"`
}

type PreferencesResponse struct {
	Preferences chat.Preferences `json:"preferences"`
}

type StartCallRequest struct {
	Type      call.Type      `json:"type"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to"`
	Direction call.Direction `json:"direction,omitempty"`
}

// ParticipantRequest names whose side of a call to act on. Empty means the
// local user.
type ParticipantRequest struct {
	ParticipantID string `json:"participantId,omitempty"`
}

type CallResponse struct {
	Call call.Call `json:"call"`
	OK   bool      `json:"ok"`
}

type ListCallsResponse struct {
	Calls      map[string]call.Call `json:"calls"`
	TickCallID string               `json:"tickCallId,omitempty"`
	Ticks      int                  `json:"ticks"`
	Elapsed    string               `json:"elapsed,omitempty"`
}

type StatusResponse struct {
	Profile       string `json:"profile"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	SinceUnixMs   int64  `json:"sinceUnixMs"`
	UptimeMs      int64  `json:"uptimeMs"`
	Backend       string `json:"backend"`
	Contacts      int    `json:"contacts"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
	Unread        int    `json:"unread"`
	Saves         int    `json:"saves"`
	PendingWrites int    `json:"pendingWrites"`
	PersistError  string `json:"persistError,omitempty"`
	ActiveCalls   int    `json:"activeCalls"`
}

type ListOutboxRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type OutboxEntry struct {
	ClientMsgID  string `json:"clientMsgId"`
	ContactID    string `json:"contactId,omitempty"`
	Recipients   int    `json:"recipients"`
	Body         string `json:"body,omitempty"`
	Attachments  int    `json:"attachments"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

type ListOutboxResponse struct {
	Entries []OutboxEntry    `json:"entries"`
	Counts  map[string]int64 `json:"counts"`
}

// WatchRequest selects event kinds by prefix. Empty watches everything.
type WatchRequest struct {
	Prefixes []string `json:"prefixes,omitempty"`
}

// Envelope is one streamed bus event.
type Envelope struct {
	EventID          string `json:"eventId"`
	Profile          string `json:"profile"`
	Kind             string `json:"kind"`
	OccurredAtUnixMs int64  `json:"occurredAtUnixMs"`
	Payload          any    `json:"payload,omitempty"`
}
