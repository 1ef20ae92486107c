package chat

import (
	"slices"
	"strings"
)

// cow returns a shallow copy of s whose top-level slices may be replaced
// element-wise. Message slices must still be cloned before they are written.
func (s Snapshot) cow() Snapshot {
	return Snapshot{
		Contacts:      slices.Clone(s.Contacts),
		Conversations: slices.Clone(s.Conversations),
		Prefs:         s.Prefs,
	}
}

// AppendMessage pushes msg onto the conversation with contactID, creating
// the conversation if needed, and refreshes the contact's preview and unread
// badge. An incoming message landing in the open conversation is read on
// arrival, which keeps the unread fast path equal to RecomputeUnread.
func AppendMessage(s Snapshot, contactID string, msg Message) Snapshot {
	next := s.cow()
	active := contactID == s.Prefs.ActiveContactID
	if msg.Incoming() && active {
		msg.Status = msg.Status.Advance(StatusRead)
	}

	if i := next.conversationIndex(contactID); i < 0 {
		next.Conversations = append(next.Conversations, Conversation{
			ID:        ConversationID(contactID),
			ContactID: contactID,
			Messages:  []Message{msg},
		})
	} else {
		conv := next.Conversations[i]
		msgs := make([]Message, len(conv.Messages), len(conv.Messages)+1)
		copy(msgs, conv.Messages)
		conv.Messages = append(msgs, msg)
		next.Conversations[i] = conv
	}

	if i := next.contactIndex(contactID); i >= 0 {
		ct := next.Contacts[i]
		if p, ok := Preview(msg); ok {
			ct.LastMessagePreview = p
		}
		if msg.Unread() && !active {
			ct.Unread++
		}
		next.Contacts[i] = ct
	}
	return next
}

// MarkConversationRead advances every incoming message with contactID to
// read and zeroes the contact's badge. changed is false when there was
// nothing to do.
func MarkConversationRead(s Snapshot, contactID string) (next Snapshot, changed bool) {
	next = s.cow()

	if i := next.conversationIndex(contactID); i >= 0 {
		conv := next.Conversations[i]
		var msgs []Message
		for j, m := range conv.Messages {
			if !m.Unread() {
				continue
			}
			if msgs == nil {
				msgs = slices.Clone(conv.Messages)
			}
			msgs[j].Status = m.Status.Advance(StatusRead)
		}
		if msgs != nil {
			conv.Messages = msgs
			next.Conversations[i] = conv
			changed = true
		}
	}

	if i := next.contactIndex(contactID); i >= 0 && next.Contacts[i].Unread != 0 {
		next.Contacts[i].Unread = 0
		changed = true
	}
	return next, changed
}

// RecomputeUnread counts, per contact, the incoming messages not yet read.
// It is the source of truth for Contact.Unread.
func RecomputeUnread(conversations []Conversation) map[string]int {
	counts := make(map[string]int, len(conversations))
	for _, c := range conversations {
		n := 0
		for _, m := range c.Messages {
			if m.Unread() {
				n++
			}
		}
		counts[c.ContactID] += n
	}
	return counts
}

// ReconcileUnread overwrites every contact's badge with RecomputeUnread and
// returns the ids whose badge had drifted.
func ReconcileUnread(s Snapshot) (Snapshot, []string) {
	counts := RecomputeUnread(s.Conversations)
	var drifted []string
	next := s
	for i, c := range s.Contacts {
		want := counts[c.ID]
		if c.Unread == want {
			continue
		}
		if drifted == nil {
			next = s.cow()
		}
		drifted = append(drifted, c.ID)
		next.Contacts[i].Unread = want
	}
	return next, drifted
}

func updateMessage(s Snapshot, contactID, messageID string, fn func(*Message) bool) (Snapshot, bool) {
	ci := s.conversationIndex(contactID)
	if ci < 0 {
		return s, false
	}
	conv := s.Conversations[ci]
	mi := slices.IndexFunc(conv.Messages, func(m Message) bool { return m.ID == messageID })
	if mi < 0 {
		return s, false
	}
	m := conv.Messages[mi]
	if !fn(&m) {
		return s, false
	}

	next := s.cow()
	conv.Messages = slices.Clone(conv.Messages)
	conv.Messages[mi] = m
	next.Conversations[ci] = conv
	return next, true
}

// DeleteForMe hides a message from the local listing. The record stays in
// place so ordering and unread counts are untouched.
func DeleteForMe(s Snapshot, contactID, messageID string) (Snapshot, bool) {
	return updateMessage(s, contactID, messageID, func(m *Message) bool {
		if m.HiddenForMe {
			return false
		}
		m.HiddenForMe = true
		return true
	})
}

// DeleteForEveryone turns a message into a tombstone. The transition is
// one-way; deleting a tombstone again changes nothing.
func DeleteForEveryone(s Snapshot, contactID, messageID string) (Snapshot, bool) {
	return updateMessage(s, contactID, messageID, func(m *Message) bool {
		if m.DeletedForEveryone {
			return false
		}
		m.Text = ""
		m.Attachments = nil
		m.DeletedForEveryone = true
		return true
	})
}

// Recipients returns active followed by extras, without blanks or duplicates.
func Recipients(active string, extras []string) []string {
	seen := make(map[string]bool, len(extras)+1)
	var out []string
	for _, id := range append([]string{active}, extras...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Draft is the content of one compose action.
type Draft struct {
	Text        string
	Attachments []Attachment
}

// Delivery records a message written to one recipient's conversation.
type Delivery struct {
	ContactID string  `json:"contactId"`
	Message   Message `json:"message"`
}

// FanOut records one compose action for every recipient. The active
// recipient gets the message as sent by Me; every other recipient gets a
// mirrored copy attributed to them as delivered, since there is no
// multi-party transport. All copies share the same attachments. A draft with
// both text and attachments becomes a text message followed by an
// attachments message.
func FanOut(s Snapshot, active string, extras []string, d Draft, now int64, newID func() string) (Snapshot, []Delivery, error) {
	d.Text = strings.TrimSpace(d.Text)
	if d.Text == "" && len(d.Attachments) == 0 {
		return s, nil, ErrEmptyMessage
	}
	if active == "" {
		return s, nil, ErrNoRecipients
	}

	next := s
	var out []Delivery
	for _, rid := range Recipients(active, extras) {
		sender, status := Me, StatusSent
		if rid != active {
			sender, status = rid, StatusDelivered
		}

		var msgs []Message
		if d.Text != "" {
			msgs = append(msgs, Message{Text: d.Text})
		}
		if len(d.Attachments) > 0 {
			msgs = append(msgs, Message{Attachments: d.Attachments})
		}
		for _, m := range msgs {
			m.ID = newID()
			m.SenderID = sender
			m.CreatedAt = now
			m.Status = status
			next = AppendMessage(next, rid, m)
			stored, _ := next.Message(rid, m.ID)
			out = append(out, Delivery{ContactID: rid, Message: stored})
		}
	}
	return next, out, nil
}

// SetActive opens the conversation with contactID: it is created if absent
// and marked read.
func SetActive(s Snapshot, contactID string) Snapshot {
	next := s.cow()
	if next.conversationIndex(contactID) < 0 {
		next.Conversations = append(next.Conversations, Conversation{
			ID:        ConversationID(contactID),
			ContactID: contactID,
			Messages:  []Message{},
		})
	}
	next.Prefs.ActiveContactID = contactID
	next, _ = MarkConversationRead(next, contactID)
	return next
}

// CreateContact adds c at the top of the contact list, optionally seeded
// with an incoming first message, and makes it the active conversation.
func CreateContact(s Snapshot, c Contact, firstText string, now int64, newID func() string) (Snapshot, error) {
	c.Name = strings.TrimSpace(c.Name)
	switch {
	case c.ID == "":
		return s, ErrMissingID
	case c.Name == "":
		return s, ErrEmptyName
	case s.contactIndex(c.ID) >= 0:
		return s, ErrDuplicateContact
	}
	c.Unread = 0

	next := s.cow()
	next.Contacts = append([]Contact{c}, next.Contacts...)

	if text := strings.TrimSpace(firstText); text != "" {
		next = AppendMessage(next, c.ID, Message{
			ID:        newID(),
			SenderID:  c.ID,
			Text:      text,
			CreatedAt: now,
			Status:    StatusDelivered,
		})
	}

	next = SetActive(next, c.ID)
	next.Prefs.LastTab = TabChat
	return next, nil
}

// SetOnline updates a contact's presence flag.
func SetOnline(s Snapshot, contactID string, online bool) (Snapshot, bool) {
	i := s.contactIndex(contactID)
	if i < 0 || s.Contacts[i].Online == online {
		return s, false
	}
	next := s.cow()
	next.Contacts[i].Online = online
	return next, true
}

// PinMessage pins messageID in the conversation with contactID. The message
// must exist.
func PinMessage(s Snapshot, contactID, messageID string) (Snapshot, bool) {
	if _, ok := s.Message(contactID, messageID); !ok {
		return s, false
	}
	ci := s.conversationIndex(contactID)
	if s.Conversations[ci].PinnedMessageID == messageID {
		return s, false
	}
	next := s.cow()
	next.Conversations[ci].PinnedMessageID = messageID
	return next, true
}

// UnpinMessage clears the pinned message of a conversation.
func UnpinMessage(s Snapshot, contactID string) (Snapshot, bool) {
	ci := s.conversationIndex(contactID)
	if ci < 0 || s.Conversations[ci].PinnedMessageID == "" {
		return s, false
	}
	next := s.cow()
	next.Conversations[ci].PinnedMessageID = ""
	return next, true
}
