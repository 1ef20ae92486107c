package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func baseSnapshot() Snapshot {
	return Snapshot{
		Contacts: []Contact{
			{ID: "a", Name: "Alice", Title: "Ops"},
			{ID: "b", Name: "Bob", Title: "Sales"},
			{ID: "c", Name: "Carol"},
		},
		Conversations: []Conversation{},
		Prefs:         DefaultPreferences(),
	}
}

func requireUnreadAgrees(t *testing.T, s Snapshot) {
	t.Helper()
	counts := RecomputeUnread(s.Conversations)
	for _, c := range s.Contacts {
		require.Equal(t, counts[c.ID], c.Unread, "unread badge of %s", c.ID)
	}
}

func TestAppendMessageCreatesConversation(t *testing.T) {
	s := baseSnapshot()
	next := AppendMessage(s, "a", Message{ID: "m1", SenderID: "a", Text: "hi", Status: StatusDelivered})

	conv, ok := next.Conversation("a")
	require.True(t, ok)
	require.Equal(t, "c-a", conv.ID)
	require.Len(t, conv.Messages, 1)

	c, _ := next.Contact("a")
	require.Equal(t, 1, c.Unread)
	require.Equal(t, "hi", c.LastMessagePreview)

	_, ok = s.Conversation("a")
	require.False(t, ok, "input snapshot was modified")
}

func TestAppendMessageUnreadRules(t *testing.T) {
	s := baseSnapshot()
	s.Prefs.ActiveContactID = "b"

	s = AppendMessage(s, "a", Message{ID: "1", SenderID: "a", Text: "x", Status: StatusDelivered})
	s = AppendMessage(s, "a", Message{ID: "2", SenderID: Me, Text: "y", Status: StatusSent})
	s = AppendMessage(s, "a", Message{ID: "3", SenderID: "a", Text: "z", Status: StatusRead})
	s = AppendMessage(s, "b", Message{ID: "4", SenderID: "b", Text: "w", Status: StatusDelivered})

	a, _ := s.Contact("a")
	b, _ := s.Contact("b")
	require.Equal(t, 1, a.Unread)
	require.Equal(t, 0, b.Unread)

	m, _ := s.Message("b", "4")
	require.Equal(t, StatusRead, m.Status, "incoming message in the open conversation is read on arrival")
	requireUnreadAgrees(t, s)
}

func TestAppendMessagePreview(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want string
	}{
		{"text", Message{Text: "hello"}, "hello"},
		{"audio", Message{Attachments: []Attachment{{Name: "v.webm", IsAudio: true}}}, "🎤 v.webm"},
		{"image", Message{Attachments: []Attachment{{Name: "p.png", IsImage: true}}}, "🖼️ p.png"},
		{"file", Message{Attachments: []Attachment{{Name: "r.pdf"}}}, "r.pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.msg.ID, tc.msg.SenderID, tc.msg.Status = "m", Me, StatusSent
			s := AppendMessage(baseSnapshot(), "a", tc.msg)
			c, _ := s.Contact("a")
			require.Equal(t, tc.want, c.LastMessagePreview)
		})
	}
}

func TestMarkConversationReadIdempotent(t *testing.T) {
	s := baseSnapshot()
	s = AppendMessage(s, "a", Message{ID: "1", SenderID: "a", Text: "x", Status: StatusDelivered})
	s = AppendMessage(s, "a", Message{ID: "2", SenderID: "a", Text: "y", Status: StatusSent})

	s, changed := MarkConversationRead(s, "a")
	require.True(t, changed)
	c, _ := s.Contact("a")
	require.Zero(t, c.Unread)
	for _, m := range s.Conversations[0].Messages {
		require.Equal(t, StatusRead, m.Status)
	}

	_, changed = MarkConversationRead(s, "a")
	require.False(t, changed)
	requireUnreadAgrees(t, s)
}

func TestMarkConversationReadLeavesOwnMessages(t *testing.T) {
	s := AppendMessage(baseSnapshot(), "a", Message{ID: "1", SenderID: Me, Text: "x", Status: StatusSent})
	s, changed := MarkConversationRead(s, "a")
	require.False(t, changed)
	m, _ := s.Message("a", "1")
	require.Equal(t, StatusSent, m.Status)
}

func TestReconcileUnreadCorrectsDrift(t *testing.T) {
	s := AppendMessage(baseSnapshot(), "a", Message{ID: "1", SenderID: "a", Text: "x", Status: StatusDelivered})
	s.Contacts[1].Unread = 7

	next, drifted := ReconcileUnread(s)
	require.Equal(t, []string{"b"}, drifted)
	requireUnreadAgrees(t, next)
	require.Equal(t, 7, s.Contacts[1].Unread, "input snapshot was modified")
}

func TestDeleteForMeHidesButKeeps(t *testing.T) {
	s := baseSnapshot()
	for i := 1; i <= 3; i++ {
		s = AppendMessage(s, "a", Message{ID: fmt.Sprint(i), SenderID: Me, Text: "t", Status: StatusSent})
	}

	s, changed := DeleteForMe(s, "a", "2")
	require.True(t, changed)

	conv, _ := s.Conversation("a")
	require.Len(t, conv.Messages, 3)
	visible := VisibleMessages(conv)
	require.Len(t, visible, 2)
	require.Equal(t, "1", visible[0].ID)
	require.Equal(t, "3", visible[1].ID)

	_, changed = DeleteForMe(s, "a", "2")
	require.False(t, changed)
	_, changed = DeleteForMe(s, "a", "missing")
	require.False(t, changed)
	_, changed = DeleteForMe(s, "nobody", "1")
	require.False(t, changed)
}

func TestDeleteForEveryoneIdempotent(t *testing.T) {
	s := AppendMessage(baseSnapshot(), "a", Message{
		ID: "1", SenderID: Me, Status: StatusSent,
		Attachments: []Attachment{{ID: "x", Name: "f.txt"}},
	})

	once, changed := DeleteForEveryone(s, "a", "1")
	require.True(t, changed)
	twice, changed := DeleteForEveryone(once, "a", "1")
	require.False(t, changed)
	require.Equal(t, once, twice)

	m, _ := once.Message("a", "1")
	require.True(t, m.DeletedForEveryone)
	require.Empty(t, m.Text)
	require.Empty(t, m.Attachments)
	require.Equal(t, TombstoneText, m.Display())
	require.NoError(t, m.Validate())

	orig, _ := s.Message("a", "1")
	require.Len(t, orig.Attachments, 1, "input snapshot was modified")
}

func TestStatusNeverRegresses(t *testing.T) {
	require.Equal(t, StatusRead, StatusRead.Advance(StatusSent))
	require.Equal(t, StatusRead, StatusRead.Advance(StatusDelivered))
	require.Equal(t, StatusDelivered, StatusSent.Advance(StatusDelivered))

	s := baseSnapshot()
	s.Prefs.ActiveContactID = "a"
	s = AppendMessage(s, "a", Message{ID: "1", SenderID: "a", Text: "x", Status: StatusDelivered})
	s, _ = MarkConversationRead(s, "a")
	s = AppendMessage(s, "a", Message{ID: "2", SenderID: "a", Text: "y", Status: StatusSent})
	for _, m := range s.Conversations[0].Messages {
		require.Equal(t, StatusRead, m.Status)
	}
}

func TestRecipientsDeduplicates(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, Recipients("a", []string{"b", "a", "", "c", "b"}))
	require.Equal(t, []string{"b"}, Recipients("", []string{"b"}))
}

func TestFanOutThreeRecipients(t *testing.T) {
	s := baseSnapshot()
	s.Prefs.ActiveContactID = "a"
	att := Attachment{ID: "att-1", Name: "plan.pdf", Size: 10, MIME: "application/pdf"}

	next, out, err := FanOut(s, "a", []string{"b", "c"}, Draft{Attachments: []Attachment{att}}, 1000, seqIDs("m"))
	require.NoError(t, err)
	require.Len(t, out, 3)

	a, _ := next.Conversation("a")
	require.Len(t, a.Messages, 1)
	require.Equal(t, Me, a.Messages[0].SenderID)
	require.Equal(t, StatusSent, a.Messages[0].Status)

	for _, id := range []string{"b", "c"} {
		conv, _ := next.Conversation(id)
		require.Len(t, conv.Messages, 1)
		m := conv.Messages[0]
		require.Equal(t, id, m.SenderID)
		require.Equal(t, StatusDelivered, m.Status)
		require.Equal(t, "att-1", m.Attachments[0].ID)
		c, _ := next.Contact(id)
		require.Equal(t, 1, c.Unread)
	}
	requireUnreadAgrees(t, next)
}

func TestFanOutSplitsTextAndAttachments(t *testing.T) {
	s := baseSnapshot()
	next, out, err := FanOut(s, "a", nil, Draft{
		Text:        "  see attached ",
		Attachments: []Attachment{{ID: "x", Name: "a.png", IsImage: true}},
	}, 5, seqIDs("m"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "see attached", out[0].Message.Text)
	require.Empty(t, out[0].Message.Attachments)
	require.Empty(t, out[1].Message.Text)
	require.Len(t, out[1].Message.Attachments, 1)
	for _, d := range out {
		require.NoError(t, d.Message.Validate())
	}

	c, _ := next.Contact("a")
	require.Equal(t, "🖼️ a.png", c.LastMessagePreview)
}

func TestFanOutRejects(t *testing.T) {
	s := baseSnapshot()
	_, _, err := FanOut(s, "a", nil, Draft{Text: "   "}, 0, seqIDs("m"))
	require.ErrorIs(t, err, ErrEmptyMessage)
	_, _, err = FanOut(s, "", []string{"b"}, Draft{Text: "x"}, 0, seqIDs("m"))
	require.ErrorIs(t, err, ErrNoRecipients)
}

func TestCreateContact(t *testing.T) {
	s := baseSnapshot()
	s.Prefs.LastTab = TabContacts

	next, err := CreateContact(s, Contact{ID: "d", Name: " Dana ", Unread: 4}, "hello there", 10, seqIDs("m"))
	require.NoError(t, err)
	require.Equal(t, "d", next.Contacts[0].ID)
	require.Equal(t, "Dana", next.Contacts[0].Name)
	require.Equal(t, "d", next.Prefs.ActiveContactID)
	require.Equal(t, TabChat, next.Prefs.LastTab)

	conv, ok := next.Conversation("d")
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, "d", conv.Messages[0].SenderID)
	requireUnreadAgrees(t, next)

	_, err = CreateContact(next, Contact{ID: "d", Name: "Dup"}, "", 0, seqIDs("m"))
	require.ErrorIs(t, err, ErrDuplicateContact)
	_, err = CreateContact(next, Contact{ID: "e", Name: "  "}, "", 0, seqIDs("m"))
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestSetActiveEnsuresConversationAndReads(t *testing.T) {
	s := AppendMessage(baseSnapshot(), "b", Message{ID: "1", SenderID: "b", Text: "x", Status: StatusDelivered})
	next := SetActive(s, "b")
	b, _ := next.Contact("b")
	require.Zero(t, b.Unread)

	next = SetActive(next, "c")
	conv, ok := next.Conversation("c")
	require.True(t, ok)
	require.Empty(t, conv.Messages)
	require.Equal(t, "c", next.Prefs.ActiveContactID)
}

func TestPinMessage(t *testing.T) {
	s := AppendMessage(baseSnapshot(), "a", Message{ID: "1", SenderID: Me, Text: "x", Status: StatusSent})

	_, ok := PinMessage(s, "a", "missing")
	require.False(t, ok)

	s, ok = PinMessage(s, "a", "1")
	require.True(t, ok)
	conv, _ := s.Conversation("a")
	require.Equal(t, "1", conv.PinnedMessageID)

	s, ok = UnpinMessage(s, "a")
	require.True(t, ok)
	_, ok = UnpinMessage(s, "a")
	require.False(t, ok)
}

func TestValidate(t *testing.T) {
	base := Message{ID: "1", SenderID: Me, Status: StatusSent}

	m := base
	require.ErrorIs(t, m.Validate(), ErrEmptyMessage)
	m.Text = "x"
	require.NoError(t, m.Validate())
	m.Attachments = []Attachment{{ID: "a"}}
	require.ErrorIs(t, m.Validate(), ErrMixedContent)
	m.DeletedForEveryone = true
	require.ErrorIs(t, m.Validate(), ErrTombstoneContent)

	m = base
	m.Text, m.Status = "x", "pending"
	require.ErrorIs(t, m.Validate(), ErrInvalidStatus)
}

func TestSearchAndCounts(t *testing.T) {
	contacts := baseSnapshot().Contacts
	contacts[0].Online = true

	require.Len(t, SearchContacts(contacts, ""), 3)
	got := SearchContacts(contacts, "SAL")
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].ID)
	require.Len(t, SearchContacts(contacts, "alice ops"), 1)

	on, off := OnlineCounts(contacts)
	require.Equal(t, 1, on)
	require.Equal(t, 2, off)
}

func TestFormatSize(t *testing.T) {
	require.Equal(t, "512 B", FormatSize(512))
	require.Equal(t, "1.5 KB", FormatSize(1536))
	require.Equal(t, "2.0 MB", FormatSize(2*1024*1024))
}
