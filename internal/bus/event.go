package bus

import "time"

// Event kinds published by the chat desk. Subscribers filter by prefix, so
// "chat." receives every entity-store change and "call." every call change.
const (
	KindContactsChanged      = "chat.contacts_changed"
	KindConversationsChanged = "chat.conversations_changed"
	KindPrefsChanged         = "chat.prefs_changed"

	KindCallChanged = "call.changed"
	KindCallRemoved = "call.removed"
	KindCallTick    = "call.tick"

	KindSendAck    = "message.send_ack"
	KindSendFailed = "message.send_failed"

	KindStatusChanged = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
