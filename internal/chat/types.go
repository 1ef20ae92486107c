// Package chat holds the entity store (contacts, conversations, messages,
// attachments, preferences) and the message engine that transitions it.
//
// Engine functions are pure: they take a Snapshot and return the next one.
// Store owns the current Snapshot and is the only place it changes.
package chat

import (
	"errors"
	"fmt"
)

// Me is the sender id of messages written by the local user.
const Me = "me"

// TombstoneText is what listings show in place of a message deleted for everyone.
const TombstoneText = "This message was deleted"

var (
	ErrEmptyMessage     = errors.New("message has neither text nor attachments")
	ErrMixedContent     = errors.New("message has both text and attachments")
	ErrTombstoneContent = errors.New("deleted message still carries content")
	ErrInvalidStatus    = errors.New("invalid message status")
	ErrMissingID        = errors.New("missing id")
	ErrDuplicateContact = errors.New("contact already exists")
	ErrEmptyName        = errors.New("contact name is empty")
	ErrNoRecipients     = errors.New("no recipients")
)

// Status is the delivery state of a message. It only moves forward.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.rank() > 0
}

// Advance returns the later of s and to, so a status never regresses.
func (s Status) Advance(to Status) Status {
	if to.rank() > s.rank() {
		return to
	}
	return s
}

// Tab is the last selected top-level pane.
type Tab string

const (
	TabContacts Tab = "contacts"
	TabChat     Tab = "chat"
	TabSettings Tab = "settings"
)

// Contact is a conversation partner. Unread is derived from the
// conversation and never authoritative.
type Contact struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Title              string `json:"title,omitempty"`
	Online             bool   `json:"online"`
	Unread             int    `json:"unread"`
	LastMessagePreview string `json:"lastMessagePreview,omitempty"`
}

// Attachment is an immutable file carried by a message.
type Attachment struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	MIME    string `json:"mime"`
	URL     string `json:"url"`
	IsImage bool   `json:"isImage"`
	IsAudio bool   `json:"isAudio,omitempty"`
}

// Message is a single entry in a conversation. CreatedAt is unix milliseconds.
type Message struct {
	ID                 string       `json:"id"`
	SenderID           string       `json:"senderId"`
	Text               string       `json:"text,omitempty"`
	CreatedAt          int64        `json:"createdAt"`
	Status             Status       `json:"status,omitempty"`
	Attachments        []Attachment `json:"attachments,omitempty"`
	HiddenForMe        bool         `json:"hiddenForMe,omitempty"`
	DeletedForEveryone bool         `json:"deletedForEveryone,omitempty"`
}

// Incoming reports whether the message was sent by the contact.
func (m Message) Incoming() bool {
	return m.SenderID != Me
}

// Unread reports whether the message counts towards its contact's unread badge.
func (m Message) Unread() bool {
	return m.Incoming() && m.Status != StatusRead
}

// Validate checks the creation invariants of a message.
func (m Message) Validate() error {
	if m.ID == "" || m.SenderID == "" {
		return ErrMissingID
	}
	if !m.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, m.Status)
	}
	hasText := m.Text != ""
	hasAtts := len(m.Attachments) > 0
	switch {
	case m.DeletedForEveryone && (hasText || hasAtts):
		return ErrTombstoneContent
	case m.DeletedForEveryone:
		return nil
	case hasText && hasAtts:
		return ErrMixedContent
	case !hasText && !hasAtts:
		return ErrEmptyMessage
	}
	return nil
}

// Display returns the text listings show for the message.
func (m Message) Display() string {
	if m.DeletedForEveryone {
		return TombstoneText
	}
	return m.Text
}

// Conversation is the ordered message history with one contact.
type Conversation struct {
	ID              string    `json:"id"`
	ContactID       string    `json:"contactId"`
	Messages        []Message `json:"messages"`
	PinnedMessageID string    `json:"pinnedMessageId,omitempty"`
}

// ConversationID returns the id given to a lazily created conversation.
func ConversationID(contactID string) string {
	return "c-" + contactID
}

// Preferences are the persisted per-profile UI settings.
type Preferences struct {
	NotifyEnabled   bool   `json:"notifyEnabled"`
	DarkBubbles     bool   `json:"darkBubbles"`
	ReadReceipts    bool   `json:"readReceipts"`
	ActiveContactID string `json:"activeContactId"`
	LastTab         Tab    `json:"lastTab"`
}

// DefaultPreferences returns the preferences of a fresh profile.
func DefaultPreferences() Preferences {
	return Preferences{
		NotifyEnabled: true,
		ReadReceipts:  true,
		LastTab:       TabChat,
	}
}
