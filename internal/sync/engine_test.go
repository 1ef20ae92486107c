package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/chatdesk/internal/bus"
	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/persist"
	"github.com/matheus3301/chatdesk/internal/status"
)

func seed() chat.Snapshot {
	return chat.Snapshot{
		Contacts: []chat.Contact{{ID: "a", Name: "Alice"}},
		Conversations: []chat.Conversation{{
			ID: "c-a", ContactID: "a",
			Messages: []chat.Message{{ID: "m1", SenderID: "a", Text: "hi", CreatedAt: 1, Status: chat.StatusDelivered}},
		}},
		Prefs: chat.DefaultPreferences(),
	}
}

type fixture struct {
	mem    *persist.Memory
	store  *chat.Store
	health *status.Machine
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := bus.New()
	mem := persist.NewMemory()
	health := status.NewMachine(nil)
	for _, s := range []status.State{status.Loading, status.Ready} {
		if err := health.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	store := chat.NewStore(seed(), nil, b, nil)
	e := NewEngine(persist.NewAdapter(mem, nil), store, b, health, nil)
	e.RetryInterval = 10 * time.Millisecond
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return &fixture{mem: mem, store: store, health: health, engine: e}
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s", msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func stored[T any](t *testing.T, mem *persist.Memory, key string) (T, bool) {
	t.Helper()
	var v T
	raw, err := mem.Get(context.Background(), key)
	if errors.Is(err, persist.ErrNotFound) {
		return v, false
	}
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatal(err)
	}
	return v, true
}

func TestEnginePersistsChanges(t *testing.T) {
	f := newFixture(t)

	if !f.store.MarkRead("a") {
		t.Fatal("MarkRead changed nothing")
	}
	eventually(t, func() bool {
		convs, ok := stored[[]chat.Conversation](t, f.mem, persist.KeyConversations)
		return ok && len(convs) == 1 && convs[0].Messages[0].Status == chat.StatusRead
	}, "read conversation to be saved")
	eventually(t, func() bool {
		contacts, ok := stored[[]chat.Contact](t, f.mem, persist.KeyContacts)
		return ok && contacts[0].Unread == 0
	}, "contacts to be saved")

	dark := true
	f.store.UpdatePreferences(chat.PreferencesUpdate{DarkBubbles: &dark})
	eventually(t, func() bool {
		prefs, ok := stored[chat.Preferences](t, f.mem, persist.KeyPrefs)
		return ok && prefs.DarkBubbles
	}, "prefs to be saved")
}

func TestEngineDegradesAndRecovers(t *testing.T) {
	f := newFixture(t)
	f.mem.SetFailPuts(errors.New("disk full"))

	f.store.SetOnline("a", true)
	eventually(t, func() bool { return f.health.Current() == status.Degraded }, "DEGRADED")
	if _, pending, err := f.engine.Stats(); pending == 0 || err == nil {
		t.Errorf("Stats() pending=%d err=%v, want pending blob and error", pending, err)
	}

	f.mem.SetFailPuts(nil)
	eventually(t, func() bool { return f.health.Current() == status.Ready }, "READY after retry")

	contacts, ok := stored[[]chat.Contact](t, f.mem, persist.KeyContacts)
	if !ok || !contacts[0].Online {
		t.Errorf("contacts after recovery = %+v, want Alice online", contacts)
	}
	if _, pending, err := f.engine.Stats(); pending != 0 || err != nil {
		t.Errorf("Stats() pending=%d err=%v, want clean", pending, err)
	}
}

func TestEngineStopFlushesSnapshot(t *testing.T) {
	b := bus.New()
	mem := persist.NewMemory()
	store := chat.NewStore(seed(), nil, nil, nil)
	e := NewEngine(persist.NewAdapter(mem, nil), store, b, nil, nil)
	e.Start(context.Background())

	// The store publishes nowhere, so only the final flush can save this.
	store.SetOnline("a", true)
	e.Stop()
	e.Stop()

	snap := persist.NewAdapter(mem, nil).Load(context.Background())
	if len(snap.Contacts) != 1 || !snap.Contacts[0].Online {
		t.Errorf("contacts = %+v, want Alice online", snap.Contacts)
	}
	if len(snap.Conversations) != 1 {
		t.Errorf("conversations = %d, want 1", len(snap.Conversations))
	}
	if b.Subscribers() != 0 {
		t.Errorf("subscribers after Stop = %d, want 0", b.Subscribers())
	}
}

func TestEngineIgnoresForeignEvents(t *testing.T) {
	f := newFixture(t)
	f.engine.bus.Emit("chat.something_else", time.Now(), 42)
	f.engine.bus.Emit(bus.KindContactsChanged, time.Now(), "not contacts")

	dark := true
	f.store.UpdatePreferences(chat.PreferencesUpdate{DarkBubbles: &dark})
	eventually(t, func() bool {
		_, ok := stored[chat.Preferences](t, f.mem, persist.KeyPrefs)
		return ok
	}, "prefs to be saved")

	if _, ok := stored[[]chat.Contact](t, f.mem, persist.KeyContacts); ok {
		t.Error("contacts written from a malformed payload")
	}
	if f.health.Current() != status.Ready {
		t.Errorf("state = %s, want READY", f.health.Current())
	}
}

func TestRestore(t *testing.T) {
	mem := persist.NewMemory()
	a := persist.NewAdapter(mem, nil)
	snap := seed()
	snap.Contacts[0].Unread = 7
	if err := a.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	store := chat.NewStore(chat.Snapshot{}, nil, nil, nil)
	got := Restore(context.Background(), a, store, nil)
	if len(got.Contacts) != 1 {
		t.Fatalf("restored %d contacts, want 1", len(got.Contacts))
	}

	// Stored badges are recomputed from the conversation.
	if c := store.Snapshot().Contacts[0]; c.Unread != 1 {
		t.Errorf("unread = %d, want 1", c.Unread)
	}
}

func TestRestoreEmptyStore(t *testing.T) {
	store := chat.NewStore(seed(), nil, nil, nil)
	got := Restore(context.Background(), persist.NewAdapter(persist.NewMemory(), nil), store, nil)
	if len(got.Contacts) != 0 || got.Prefs != chat.DefaultPreferences() {
		t.Errorf("restore from empty store = %+v, want defaults", got)
	}
	if n := len(store.Snapshot().Contacts); n != 0 {
		t.Errorf("store contacts = %d, want 0", n)
	}
}
