package chat

import (
	"fmt"
	"slices"
	"strings"
)

// Snapshot is one immutable-by-convention state of the entity store.
// Engine functions copy what they touch and never write through a Snapshot
// they were handed.
type Snapshot struct {
	Contacts      []Contact      `json:"contacts"`
	Conversations []Conversation `json:"conversations"`
	Prefs         Preferences    `json:"prefs"`
}

// Clone returns a deep copy of s. Attachments are shared since they never change.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Contacts:      slices.Clone(s.Contacts),
		Conversations: make([]Conversation, len(s.Conversations)),
		Prefs:         s.Prefs,
	}
	for i, c := range s.Conversations {
		c.Messages = slices.Clone(c.Messages)
		out.Conversations[i] = c
	}
	return out
}

func (s Snapshot) contactIndex(id string) int {
	return slices.IndexFunc(s.Contacts, func(c Contact) bool { return c.ID == id })
}

func (s Snapshot) conversationIndex(contactID string) int {
	return slices.IndexFunc(s.Conversations, func(c Conversation) bool { return c.ContactID == contactID })
}

// Contact looks up a contact by id.
func (s Snapshot) Contact(id string) (Contact, bool) {
	i := s.contactIndex(id)
	if i < 0 {
		return Contact{}, false
	}
	return s.Contacts[i], true
}

// Conversation looks up the conversation with a contact.
func (s Snapshot) Conversation(contactID string) (Conversation, bool) {
	i := s.conversationIndex(contactID)
	if i < 0 {
		return Conversation{}, false
	}
	return s.Conversations[i], true
}

// Message looks up one message in the conversation with a contact.
func (s Snapshot) Message(contactID, messageID string) (Message, bool) {
	conv, ok := s.Conversation(contactID)
	if !ok {
		return Message{}, false
	}
	i := slices.IndexFunc(conv.Messages, func(m Message) bool { return m.ID == messageID })
	if i < 0 {
		return Message{}, false
	}
	return conv.Messages[i], true
}

// VisibleMessages returns the messages a listing should show, skipping
// those hidden for the local user.
func VisibleMessages(conv Conversation) []Message {
	out := make([]Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if m.HiddenForMe {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Preview returns the contact-list preview for a message. ok is false when
// the message carries nothing to preview, in which case the previous
// preview should be kept.
func Preview(m Message) (preview string, ok bool) {
	if m.Text != "" {
		return m.Text, true
	}
	if len(m.Attachments) == 0 || m.Attachments[0].Name == "" {
		return "", false
	}
	a := m.Attachments[0]
	switch {
	case a.IsAudio:
		return "🎤 " + a.Name, true
	case a.IsImage:
		return "🖼️ " + a.Name, true
	default:
		return a.Name, true
	}
}

// SearchContacts filters contacts by a case-insensitive substring of
// "name title". An empty query returns every contact.
func SearchContacts(contacts []Contact, query string) []Contact {
	if query == "" {
		return slices.Clone(contacts)
	}
	q := strings.ToLower(query)
	var out []Contact
	for _, c := range contacts {
		if strings.Contains(strings.ToLower(c.Name+" "+c.Title), q) {
			out = append(out, c)
		}
	}
	return out
}

// OnlineCounts returns how many contacts are online and offline.
func OnlineCounts(contacts []Contact) (online, offline int) {
	for _, c := range contacts {
		if c.Online {
			online++
		} else {
			offline++
		}
	}
	return online, offline
}

// FormatSize renders a byte count as B, KB or MB.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
