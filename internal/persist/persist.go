// Package persist saves and restores the chat state as three JSON blobs in
// a key/value store.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matheus3301/chatdesk/internal/chat"
	"go.uber.org/zap"
)

// Blob keys.
const (
	KeyContacts      = "contacts"
	KeyConversations = "conversations"
	KeyPrefs         = "prefs"
)

// ErrNotFound is returned by a BlobStore when a key has never been written.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a key/value store of opaque values.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Adapter maps the chat snapshot onto a BlobStore.
type Adapter struct {
	blobs  BlobStore
	logger *zap.Logger
}

// NewAdapter creates an adapter over blobs.
func NewAdapter(blobs BlobStore, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{blobs: blobs, logger: logger}
}

// Load reads the whole snapshot. It never fails: a key that is missing,
// unreadable or malformed falls back to its default and the problem is
// logged.
func (a *Adapter) Load(ctx context.Context) chat.Snapshot {
	snap := chat.Snapshot{
		Contacts:      []chat.Contact{},
		Conversations: []chat.Conversation{},
		Prefs:         chat.DefaultPreferences(),
	}

	var contacts []chat.Contact
	if a.load(ctx, KeyContacts, &contacts) && contacts != nil {
		snap.Contacts = contacts
	}
	var convs []chat.Conversation
	if a.load(ctx, KeyConversations, &convs) && convs != nil {
		snap.Conversations = convs
	}
	prefs := chat.DefaultPreferences()
	if a.load(ctx, KeyPrefs, &prefs) {
		snap.Prefs = prefs
	}
	return snap
}

func (a *Adapter) load(ctx context.Context, key string, dst any) bool {
	raw, err := a.blobs.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		a.logger.Debug("no stored value, using defaults", zap.String("key", key))
		return false
	}
	if err != nil {
		a.logger.Warn("failed to read stored value, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		a.logger.Warn("malformed stored value, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SaveContacts writes the contacts blob.
func (a *Adapter) SaveContacts(ctx context.Context, contacts []chat.Contact) error {
	if contacts == nil {
		contacts = []chat.Contact{}
	}
	return a.save(ctx, KeyContacts, contacts)
}

// SaveConversations writes the conversations blob.
func (a *Adapter) SaveConversations(ctx context.Context, convs []chat.Conversation) error {
	if convs == nil {
		convs = []chat.Conversation{}
	}
	return a.save(ctx, KeyConversations, convs)
}

// SavePreferences writes the preferences blob.
func (a *Adapter) SavePreferences(ctx context.Context, prefs chat.Preferences) error {
	return a.save(ctx, KeyPrefs, prefs)
}

// SaveSnapshot writes all three blobs.
func (a *Adapter) SaveSnapshot(ctx context.Context, s chat.Snapshot) error {
	if err := a.SaveContacts(ctx, s.Contacts); err != nil {
		return err
	}
	if err := a.SaveConversations(ctx, s.Conversations); err != nil {
		return err
	}
	return a.SavePreferences(ctx, s.Prefs)
}

func (a *Adapter) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.blobs.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying store.
func (a *Adapter) Close() error {
	return a.blobs.Close()
}
