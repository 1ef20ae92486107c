// Package outbox holds the compose draft and turns it into sent messages:
// attachments are prepared, the draft is fanned out through the chat store,
// and every attempt is recorded in the send journal.
package outbox

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatdesk/internal/bus"
	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/ingest"
	"github.com/matheus3301/chatdesk/internal/store"
	"go.uber.org/zap"
)

// Sender writes a compose action into the conversations. *chat.Store satisfies it.
type Sender interface {
	Send(d chat.Draft) ([]chat.Delivery, error)
	Preferences() chat.Preferences
}

// Journal records send attempts. *store.DB satisfies it.
type Journal interface {
	QueueOutbox(ctx context.Context, e *store.OutboxEntry) error
	MarkOutboxSent(ctx context.Context, clientMsgID string, recipients int) error
	MarkOutboxFailed(ctx context.Context, clientMsgID, errMsg string) error
}

// PendingFile describes a file waiting in the draft.
type PendingFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	MIME string `json:"mime"`
}

// Draft is the current compose state.
type Draft struct {
	Text  string        `json:"text"`
	Files []PendingFile `json:"files"`
}

// SendAck is the payload of message.send_ack events.
type SendAck struct {
	ClientMsgID string   `json:"clientMsgId"`
	ContactIDs  []string `json:"contactIds"`
	Messages    int      `json:"messages"`
}

// SendFailed is the payload of message.send_failed events.
type SendFailed struct {
	ClientMsgID string `json:"clientMsgId"`
	Error       string `json:"error"`
}

// Composer owns the draft. A failed send leaves the draft untouched so it
// can be retried.
type Composer struct {
	mu    sync.Mutex
	text  string
	files []ingest.File

	ingester *ingest.Ingester
	voice    *ingest.VoiceSession
	sender   Sender
	journal  Journal
	bus      *bus.Bus
	logger   *zap.Logger
	newID    func() string
}

// NewComposer creates a composer. journal may be nil.
func NewComposer(in *ingest.Ingester, voice *ingest.VoiceSession, sender Sender, journal Journal, b *bus.Bus, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if voice == nil {
		voice = ingest.NewVoiceSession(nil, nil)
	}
	return &Composer{
		ingester: in,
		voice:    voice,
		sender:   sender,
		journal:  journal,
		bus:      b,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// SetText replaces the draft text.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

// AddFiles queues files for the next send.
func (c *Composer) AddFiles(files ...ingest.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, files...)
}

// RemoveFile drops every pending file called name.
func (c *Composer) RemoveFile(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.files)
	c.files = slices.DeleteFunc(c.files, func(f ingest.File) bool { return f.Name == name })
	return len(c.files) != n
}

// Discard clears the draft.
func (c *Composer) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = ""
	c.files = nil
}

// Draft returns the current draft.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftLocked()
}

func (c *Composer) draftLocked() Draft {
	d := Draft{Text: c.text, Files: make([]PendingFile, 0, len(c.files))}
	for _, f := range c.files {
		d.Files = append(d.Files, PendingFile{
			Name: f.Name,
			Size: int64(len(f.Data)),
			MIME: ingest.DetectMIME(f.Name, f.MIME, f.Data),
		})
	}
	return d
}

// StartRecording starts a voice note. Capture errors leave the composer
// not recording.
func (c *Composer) StartRecording(ctx context.Context) error {
	if err := c.voice.Start(ctx); err != nil {
		c.logger.Warn("voice capture failed", zap.Error(err))
		return err
	}
	return nil
}

// StopRecording finishes the voice note and adds it to the draft.
func (c *Composer) StopRecording(ctx context.Context) (PendingFile, error) {
	f, err := c.voice.Stop(ctx)
	if err != nil {
		return PendingFile{}, err
	}
	c.AddFiles(f)
	return PendingFile{Name: f.Name, Size: int64(len(f.Data)), MIME: f.MIME}, nil
}

// Recording reports whether a voice note is being recorded and for how long.
func (c *Composer) Recording() (time.Duration, bool) {
	return c.voice.Elapsed()
}

// Send prepares the pending files and fans the draft out. On success the
// draft is cleared and a send_ack event is published; on failure the draft
// is kept and a send_failed event is published.
func (c *Composer) Send(ctx context.Context) ([]chat.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := strings.TrimSpace(c.text)
	if text == "" && len(c.files) == 0 {
		return nil, chat.ErrEmptyMessage
	}

	clientID := c.newID()
	entry := &store.OutboxEntry{
		ClientMsgID: clientID,
		ContactID:   c.sender.Preferences().ActiveContactID,
		Body:        text,
		Attachments: len(c.files),
	}
	if c.journal != nil {
		if err := c.journal.QueueOutbox(ctx, entry); err != nil {
			c.logger.Warn("failed to journal send", zap.Error(err), zap.String("client_msg_id", clientID))
		}
	}

	atts, err := c.ingester.PrepareAll(ctx, c.files)
	if err != nil {
		return nil, c.fail(ctx, clientID, err)
	}

	deliveries, err := c.sender.Send(chat.Draft{Text: text, Attachments: atts})
	if err != nil {
		return nil, c.fail(ctx, clientID, err)
	}

	c.text = ""
	c.files = nil

	var contacts []string
	for _, d := range deliveries {
		if !slices.Contains(contacts, d.ContactID) {
			contacts = append(contacts, d.ContactID)
		}
	}
	if c.journal != nil {
		if err := c.journal.MarkOutboxSent(ctx, clientID, len(contacts)); err != nil {
			c.logger.Warn("failed to mark sent", zap.Error(err), zap.String("client_msg_id", clientID))
		}
	}

	c.logger.Info("message sent", zap.String("client_msg_id", clientID), zap.Strings("recipients", contacts))
	c.bus.Publish(bus.Event{
		Kind: bus.KindSendAck,
		Payload: SendAck{
			ClientMsgID: clientID,
			ContactIDs:  contacts,
			Messages:    len(deliveries),
		},
	})
	return deliveries, nil
}

func (c *Composer) fail(ctx context.Context, clientID string, err error) error {
	c.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", clientID))
	if c.journal != nil {
		if jerr := c.journal.MarkOutboxFailed(ctx, clientID, err.Error()); jerr != nil {
			c.logger.Warn("failed to mark failed", zap.Error(jerr), zap.String("client_msg_id", clientID))
		}
	}
	c.bus.Publish(bus.Event{
		Kind: bus.KindSendFailed,
		Payload: SendFailed{
			ClientMsgID: clientID,
			Error:       err.Error(),
		},
	})
	return fmt.Errorf("send message: %w", err)
}
