package client

import (
	"context"

	"github.com/matheus3301/chatdesk/internal/api"
	"google.golang.org/grpc"
)

// DeskClient calls the desk service.
type DeskClient struct {
	conn *grpc.ClientConn
}

func (c *DeskClient) call(ctx context.Context, method string, req any) (*api.ChangedResponse, error) {
	return invoke[api.ChangedResponse](ctx, c.conn, api.DeskServiceName, method, req)
}

func (c *DeskClient) draft(ctx context.Context, method string, req any) (*api.DraftResponse, error) {
	return invoke[api.DraftResponse](ctx, c.conn, api.DeskServiceName, method, req)
}

func (c *DeskClient) ListContacts(ctx context.Context, query string) (*api.ListContactsResponse, error) {
	return invoke[api.ListContactsResponse](ctx, c.conn, api.DeskServiceName, "ListContacts", api.ListContactsRequest{Query: query})
}

func (c *DeskClient) GetConversation(ctx context.Context, contactID string) (*api.ConversationResponse, error) {
	return invoke[api.ConversationResponse](ctx, c.conn, api.DeskServiceName, "GetConversation", api.ContactRequest{ContactID: contactID})
}

func (c *DeskClient) CreateContact(ctx context.Context, req api.CreateContactRequest) (*api.ContactResponse, error) {
	return invoke[api.ContactResponse](ctx, c.conn, api.DeskServiceName, "CreateContact", req)
}

func (c *DeskClient) Receive(ctx context.Context, contactID, text string) (*api.MessageResponse, error) {
	return invoke[api.MessageResponse](ctx, c.conn, api.DeskServiceName, "Receive", api.ReceiveRequest{ContactID: contactID, Text: text})
}

func (c *DeskClient) SetActive(ctx context.Context, contactID string) (*api.ChangedResponse, error) {
	return c.call(ctx, "SetActive", api.ContactRequest{ContactID: contactID})
}

func (c *DeskClient) MarkRead(ctx context.Context, contactID string) (*api.ChangedResponse, error) {
	return c.call(ctx, "MarkRead", api.ContactRequest{ContactID: contactID})
}

func (c *DeskClient) Visible(ctx context.Context) (*api.ChangedResponse, error) {
	return c.call(ctx, "Visible", api.Empty{})
}

func (c *DeskClient) SetOnline(ctx context.Context, contactID string, online bool) (*api.ChangedResponse, error) {
	return c.call(ctx, "SetOnline", api.PresenceRequest{ContactID: contactID, Online: online})
}

func (c *DeskClient) DeleteForMe(ctx context.Context, contactID, messageID string) (*api.ChangedResponse, error) {
	return c.call(ctx, "DeleteForMe", api.MessageRequest{ContactID: contactID, MessageID: messageID})
}

func (c *DeskClient) DeleteForEveryone(ctx context.Context, contactID, messageID string) (*api.ChangedResponse, error) {
	return c.call(ctx, "DeleteForEveryone", api.MessageRequest{ContactID: contactID, MessageID: messageID})
}

func (c *DeskClient) Pin(ctx context.Context, contactID, messageID string) (*api.ChangedResponse, error) {
	return c.call(ctx, "Pin", api.MessageRequest{ContactID: contactID, MessageID: messageID})
}

func (c *DeskClient) Unpin(ctx context.Context, contactID string) (*api.ChangedResponse, error) {
	return c.call(ctx, "Unpin", api.ContactRequest{ContactID: contactID})
}

func (c *DeskClient) SetExtraRecipients(ctx context.Context, ids []string) (*api.RecipientsResponse, error) {
	return invoke[api.RecipientsResponse](ctx, c.conn, api.DeskServiceName, "SetExtraRecipients", api.RecipientsRequest{ContactIDs: ids})
}

func (c *DeskClient) GetPreferences(ctx context.Context) (*api.PreferencesResponse, error) {
	return invoke[api.PreferencesResponse](ctx, c.conn, api.DeskServiceName, "GetPreferences", api.Empty{})
}

func (c *DeskClient) UpdatePreferences(ctx context.Context, req api.PreferencesRequest) (*api.PreferencesResponse, error) {
	return invoke[api.PreferencesResponse](ctx, c.conn, api.DeskServiceName, "UpdatePreferences", req)
}

func (c *DeskClient) Compose(ctx context.Context, req api.ComposeRequest) (*api.DraftResponse, error) {
	return c.draft(ctx, "Compose", req)
}

func (c *DeskClient) RemoveFile(ctx context.Context, name string) (*api.DraftResponse, error) {
	return c.draft(ctx, "RemoveFile", api.RemoveFileRequest{Name: name})
}

func (c *DeskClient) DiscardDraft(ctx context.Context) (*api.DraftResponse, error) {
	return c.draft(ctx, "DiscardDraft", api.Empty{})
}

func (c *DeskClient) GetDraft(ctx context.Context) (*api.DraftResponse, error) {
	return c.draft(ctx, "GetDraft", api.Empty{})
}

func (c *DeskClient) StartRecording(ctx context.Context) (*api.DraftResponse, error) {
	return c.draft(ctx, "StartRecording", api.Empty{})
}

func (c *DeskClient) StopRecording(ctx context.Context) (*api.DraftResponse, error) {
	return c.draft(ctx, "StopRecording", api.Empty{})
}

// Send sends the draft. A non-nil text replaces the draft text first.
func (c *DeskClient) Send(ctx context.Context, text *string) (*api.SendResponse, error) {
	return invoke[api.SendResponse](ctx, c.conn, api.DeskServiceName, "Send", api.SendRequest{Text: text})
}
