package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatdesk/internal/bus"
	"github.com/matheus3301/chatdesk/internal/chat"
	"go.uber.org/zap"
)

// DefaultRetryInterval is how long the engine waits before retrying a
// failed save.
const DefaultRetryInterval = 2 * time.Second

// Saver writes the persisted blobs. *persist.Adapter satisfies it.
type Saver interface {
	SaveContacts(ctx context.Context, contacts []chat.Contact) error
	SaveConversations(ctx context.Context, convs []chat.Conversation) error
	SavePreferences(ctx context.Context, prefs chat.Preferences) error
	SaveSnapshot(ctx context.Context, s chat.Snapshot) error
}

// Source provides the full state for the final flush. *chat.Store satisfies it.
type Source interface {
	Snapshot() chat.Snapshot
}

// Health is told when persistence starts and stops failing.
// *status.Machine satisfies it.
type Health interface {
	Degrade(reason string)
	Recover()
}

// Engine persists entity-store changes. It subscribes to "chat.*" events
// on the bus and writes the latest value of each changed blob, retrying
// until the save succeeds.
type Engine struct {
	saver  Saver
	source Source
	bus    *bus.Bus
	health Health
	logger *zap.Logger

	// RetryInterval overrides DefaultRetryInterval when set before Start.
	RetryInterval time.Duration

	mu      sync.Mutex
	pending map[string]any
	failing bool
	lastErr error
	saves   int
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(saver Saver, source Source, b *bus.Bus, health Health, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		saver:         saver,
		source:        source,
		bus:           b,
		health:        health,
		logger:        logger,
		RetryInterval: DefaultRetryInterval,
		pending:       make(map[string]any),
	}
}

// Start subscribes to entity-store events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("chat.", 256)

	go func() {
		defer close(e.done)
		defer unsub()

		retry := time.NewTimer(time.Hour)
		retry.Stop()
		defer retry.Stop()

		for {
			select {
			case evt := <-ch:
				e.queue(evt)
				e.drain(ch)
				if err := e.Flush(ctx); err != nil && ctx.Err() == nil {
					retry.Reset(e.RetryInterval)
				}
			case <-retry.C:
				if err := e.Flush(ctx); err != nil && ctx.Err() == nil {
					retry.Reset(e.RetryInterval)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and writes the full current state once more.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.mu.Lock()
	clear(e.pending)
	e.mu.Unlock()
	if e.source == nil {
		return
	}
	if err := e.saver.SaveSnapshot(ctx, e.source.Snapshot()); err != nil {
		e.logger.Error("final state flush failed", zap.Error(err))
		return
	}
	e.logger.Debug("final state flushed")
}

// queue records evt as the latest value for its blob. Older unsaved values
// of the same kind are superseded.
func (e *Engine) queue(evt bus.Event) {
	var ok bool
	switch evt.Kind {
	case bus.KindContactsChanged:
		_, ok = evt.Payload.([]chat.Contact)
	case bus.KindConversationsChanged:
		_, ok = evt.Payload.([]chat.Conversation)
	case bus.KindPrefsChanged:
		_, ok = evt.Payload.(chat.Preferences)
	default:
		return
	}
	if !ok {
		e.logger.Warn("dropping event with unexpected payload",
			zap.String("kind", evt.Kind), zap.String("type", fmt.Sprintf("%T", evt.Payload)))
		return
	}
	e.mu.Lock()
	e.pending[evt.Kind] = evt.Payload
	e.mu.Unlock()
}

func (e *Engine) drain(ch <-chan bus.Event) {
	for {
		select {
		case evt := <-ch:
			e.queue(evt)
		default:
			return
		}
	}
}

// Flush saves every pending blob. Blobs that fail stay pending.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for kind, payload := range e.pending {
		if err := e.save(ctx, kind, payload); err != nil {
			e.logger.Warn("failed to persist state", zap.String("kind", kind), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(e.pending, kind)
		e.saves++
	}

	switch {
	case firstErr != nil && !e.failing:
		e.failing = true
		e.lastErr = firstErr
		if e.health != nil {
			e.health.Degrade(firstErr.Error())
		}
	case firstErr != nil:
		e.lastErr = firstErr
	case e.failing:
		e.failing = false
		e.lastErr = nil
		e.logger.Info("persistence recovered")
		if e.health != nil {
			e.health.Recover()
		}
	}
	return firstErr
}

func (e *Engine) save(ctx context.Context, kind string, payload any) error {
	switch kind {
	case bus.KindContactsChanged:
		return e.saver.SaveContacts(ctx, payload.([]chat.Contact))
	case bus.KindConversationsChanged:
		return e.saver.SaveConversations(ctx, payload.([]chat.Conversation))
	case bus.KindPrefsChanged:
		return e.saver.SavePreferences(ctx, payload.(chat.Preferences))
	}
	return nil
}

// Stats reports the number of successful blob writes, the number of blobs
// still waiting and the last save error, if persistence is failing.
func (e *Engine) Stats() (saves, pending int, lastErr error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saves, len(e.pending), e.lastErr
}
