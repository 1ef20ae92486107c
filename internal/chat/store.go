package chat

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatdesk/internal/bus"
	"go.uber.org/zap"
)

// Clock supplies the current time. sched.Scheduler satisfies it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store owns the current Snapshot. Every mutation goes through it: the
// engine computes the next snapshot, the store reconciles unread badges,
// swaps it in and publishes what changed.
type Store struct {
	mu     sync.Mutex
	snap   Snapshot
	extras []string

	clock  Clock
	newID  func() string
	bus    *bus.Bus
	logger *zap.Logger
}

// NewStore creates a store holding initial.
func NewStore(initial Snapshot, clock Clock, b *bus.Bus, logger *zap.Logger) *Store {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		clock:  clock,
		newID:  uuid.NewString,
		bus:    b,
		logger: logger,
	}
	s.Replace(initial)
	return s
}

// Replace swaps in a loaded snapshot without publishing change events.
func (s *Store) Replace(snap Snapshot) {
	if snap.Contacts == nil {
		snap.Contacts = []Contact{}
	}
	if snap.Conversations == nil {
		snap.Conversations = []Conversation{}
	}
	snap, drifted := ReconcileUnread(snap.Clone())
	if len(drifted) > 0 {
		s.logger.Warn("corrected stored unread counts", zap.Strings("contacts", drifted))
	}

	s.mu.Lock()
	s.snap = snap
	s.extras = nil
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Contacts returns the contacts matching query (see SearchContacts).
func (s *Store) Contacts(query string) []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SearchContacts(s.snap.Contacts, query)
}

// ContactName returns the display name of a contact.
func (s *Store) ContactName(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.snap.Contact(id)
	return c.Name, ok
}

// Messages returns the visible messages of the conversation with contactID
// and its pinned message id.
func (s *Store) Messages(contactID string) (msgs []Message, pinnedID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.snap.Conversation(contactID)
	if !ok {
		return nil, "", false
	}
	return VisibleMessages(conv), conv.PinnedMessageID, true
}

// Preferences returns the current preferences.
func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Prefs
}

// ExtraRecipients returns the contacts that will receive a copy of the next send.
func (s *Store) ExtraRecipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.extras)
}

// Append stores msg in the conversation with contactID. Missing id, sender
// and timestamp are filled in. The stored message is returned; its status
// may have advanced to read when the conversation is open.
func (s *Store) Append(contactID string, msg Message) (Message, error) {
	if contactID == "" {
		return Message{}, ErrMissingID
	}
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.SenderID == "" {
		msg.SenderID = contactID
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = s.clock.Now().UnixMilli()
	}
	if msg.Status == "" {
		msg.Status = StatusDelivered
		if !msg.Incoming() {
			msg.Status = StatusSent
		}
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(AppendMessage(s.snap, contactID, msg), true)
	stored, _ := s.snap.Message(contactID, msg.ID)
	return stored, nil
}

// MarkRead marks the conversation with contactID as read.
func (s *Store) MarkRead(contactID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := MarkConversationRead(s.snap, contactID)
	if changed {
		s.commit(next, true)
	}
	return changed
}

// Visible is called when the surface regains visibility; the open
// conversation is marked read.
func (s *Store) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Prefs.ActiveContactID == "" {
		return false
	}
	next, changed := MarkConversationRead(s.snap, s.snap.Prefs.ActiveContactID)
	if changed {
		s.commit(next, true)
	}
	return changed
}

// DeleteForMe hides a message locally. Unknown ids are ignored.
func (s *Store) DeleteForMe(contactID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := DeleteForMe(s.snap, contactID, messageID)
	if changed {
		s.commit(next, true)
	}
	return changed
}

// DeleteForEveryone tombstones a message. Unknown ids are ignored.
func (s *Store) DeleteForEveryone(contactID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := DeleteForEveryone(s.snap, contactID, messageID)
	if changed {
		s.commit(next, true)
	}
	return changed
}

// SetActive opens the conversation with contactID and clears extra recipients.
func (s *Store) SetActive(contactID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.contactIndex(contactID) < 0 {
		return false
	}
	s.extras = nil
	s.commit(SetActive(s.snap, contactID), true)
	return true
}

// SetExtraRecipients replaces the extra recipients of the next send. Unknown
// contacts and the active contact are dropped.
func (s *Store) SetExtraRecipients(ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var extras []string
	for _, id := range Recipients("", ids) {
		if id == s.snap.Prefs.ActiveContactID || s.snap.contactIndex(id) < 0 {
			continue
		}
		extras = append(extras, id)
	}
	s.extras = extras
	return slices.Clone(extras)
}

// Send fans a draft out to the active contact and the extra recipients,
// then clears the extra recipients.
func (s *Store) Send(d Draft) ([]Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.snap.Prefs.ActiveContactID
	if active != "" && s.snap.contactIndex(active) < 0 {
		active = ""
	}
	next, out, err := FanOut(s.snap, active, s.extras, d, s.clock.Now().UnixMilli(), s.newID)
	if err != nil {
		return nil, err
	}
	s.extras = nil
	s.commit(next, true)
	s.logger.Debug("message sent", zap.String("active", active), zap.Int("deliveries", len(out)))
	return out, nil
}

// CreateContact adds a contact, optionally with an incoming first message,
// and opens its conversation.
func (s *Store) CreateContact(c Contact, firstText string) (Contact, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}
	c.Title = strings.TrimSpace(c.Title)

	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := CreateContact(s.snap, c, firstText, s.clock.Now().UnixMilli(), s.newID)
	if err != nil {
		return Contact{}, err
	}
	s.extras = nil
	s.commit(next, true)
	created, _ := s.snap.Contact(c.ID)
	return created, nil
}

// SetOnline updates a contact's presence.
func (s *Store) SetOnline(contactID string, online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := SetOnline(s.snap, contactID, online)
	if changed {
		s.commit(next, false)
	}
	return changed
}

// Pin pins a message of the conversation with contactID.
func (s *Store) Pin(contactID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := PinMessage(s.snap, contactID, messageID)
	if changed {
		s.commit(next, true)
	}
	return changed
}

// Unpin clears the pinned message of the conversation with contactID.
func (s *Store) Unpin(contactID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := UnpinMessage(s.snap, contactID)
	if changed {
		s.commit(next, true)
	}
	return changed
}

// PreferencesUpdate carries the preference fields to change; nil fields are kept.
type PreferencesUpdate struct {
	NotifyEnabled *bool
	DarkBubbles   *bool
	ReadReceipts  *bool
	LastTab       *Tab
}

// UpdatePreferences applies u and returns the resulting preferences.
func (s *Store) UpdatePreferences(u PreferencesUpdate) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap
	p := &next.Prefs
	if u.NotifyEnabled != nil {
		p.NotifyEnabled = *u.NotifyEnabled
	}
	if u.DarkBubbles != nil {
		p.DarkBubbles = *u.DarkBubbles
	}
	if u.ReadReceipts != nil {
		p.ReadReceipts = *u.ReadReceipts
	}
	if u.LastTab != nil {
		switch *u.LastTab {
		case TabContacts, TabChat, TabSettings:
			p.LastTab = *u.LastTab
		}
	}
	s.commit(next, false)
	return s.snap.Prefs
}

// commit reconciles unread badges, installs next and publishes one event
// per changed entity. Callers hold s.mu.
func (s *Store) commit(next Snapshot, conversationsChanged bool) {
	next, drifted := ReconcileUnread(next)
	if len(drifted) > 0 {
		s.logger.Warn("unread count drifted from conversation state", zap.Strings("contacts", drifted))
	}

	prev := s.snap
	s.snap = next
	now := s.clock.Now()

	if !slices.Equal(prev.Contacts, next.Contacts) {
		s.bus.Emit(bus.KindContactsChanged, now, next.Contacts)
	}
	if conversationsChanged {
		s.bus.Emit(bus.KindConversationsChanged, now, next.Conversations)
	}
	if prev.Prefs != next.Prefs {
		s.bus.Emit(bus.KindPrefsChanged, now, next.Prefs)
	}
}
