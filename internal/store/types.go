package store

// Outbox entry statuses.
const (
	OutboxQueued = "queued"
	OutboxSent   = "sent"
	OutboxFailed = "failed"
)

// OutboxEntry is one compose action recorded in the send journal.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ContactID    string
	Recipients   int
	Body         string
	Attachments  int
	Status       string // queued, sent, failed
	ErrorMessage string
	CreatedAt    int64
	UpdatedAt    int64
}
