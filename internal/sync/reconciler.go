package sync

import (
	"context"

	"github.com/matheus3301/chatdesk/internal/chat"
	"go.uber.org/zap"
)

// Loader reads the persisted state. *persist.Adapter satisfies it.
type Loader interface {
	Load(ctx context.Context) chat.Snapshot
}

// Target receives the restored state. *chat.Store satisfies it.
type Target interface {
	Replace(snap chat.Snapshot)
}

// Restore loads the persisted state into target. Loading is best-effort:
// anything unreadable has already fallen back to its default.
func Restore(ctx context.Context, loader Loader, target Target, logger *zap.Logger) chat.Snapshot {
	if logger == nil {
		logger = zap.NewNop()
	}
	snap := loader.Load(ctx)
	target.Replace(snap)

	messages := 0
	for _, c := range snap.Conversations {
		messages += len(c.Messages)
	}
	logger.Info("state restored",
		zap.Int("contacts", len(snap.Contacts)),
		zap.Int("conversations", len(snap.Conversations)),
		zap.Int("messages", messages),
		zap.String("active_contact", snap.Prefs.ActiveContactID),
	)
	return snap
}
