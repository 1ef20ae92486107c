package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindContactsChanged, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindContactsChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindContactsChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("call.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConversationsChanged})
	b.Publish(Event{Kind: KindCallChanged})

	select {
	case evt := <-ch:
		if evt.Kind != KindCallChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindCallChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitStampsTimestamp(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("call.", 1)
	defer unsub()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Emit(KindCallTick, ts, 3)
	evt := <-ch
	if !evt.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", evt.Timestamp, ts)
	}

	b.Publish(Event{Kind: KindCallTick})
	evt = <-ch
	if evt.Timestamp.IsZero() {
		t.Error("Publish left a zero timestamp")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	unsub()
	unsub()

	if n := b.Subscribers(); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}

	b.Publish(Event{Kind: KindPrefsChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindSendAck})
	b.Publish(Event{Kind: KindSendFailed})

	evt := <-ch
	if evt.Kind != KindSendAck {
		t.Errorf("got %q, want %s", evt.Kind, KindSendAck)
	}
}

func TestNilBusIsInert(t *testing.T) {
	var b *Bus
	b.Publish(Event{Kind: KindCallTick})
	b.Emit(KindCallTick, time.Now(), nil)
	if b.Subscribers() != 0 {
		t.Error("nil bus reports subscribers")
	}
}
