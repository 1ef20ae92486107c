package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matheus3301/chatdesk/internal/persist"
)

var _ persist.BlobStore = (*DB)(nil)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + outbox)", result.Version)
	}
	if result.Dirty {
		t.Error("schema left dirty")
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := testDB(t)
	if err := db.MigrateDown(); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`SELECT 1 FROM blobs`); err == nil {
		t.Error("blobs table still exists after MigrateDown")
	}
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed {
		t.Error("Migrate() after MigrateDown should report Changed=true")
	}
}

func TestBlobGetMissing(t *testing.T) {
	db := testDB(t)
	_, err := db.Get(context.Background(), "contacts")
	if !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBlobPutOverwrites(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.Put(ctx, "prefs", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := db.Put(ctx, "prefs", []byte(`{"a":2}`)); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get(ctx, "prefs")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("value = %s, want {\"a\":2}", got)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM blobs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1 (upsert created a duplicate)", n)
	}

	at, err := db.BlobUpdatedAt(ctx, "prefs")
	if err != nil {
		t.Fatal(err)
	}
	if at == 0 {
		t.Error("updated_at not set")
	}
}

func TestAdapterOverSQLite(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := persist.NewAdapter(db, nil)

	snap := a.Load(ctx)
	if len(snap.Contacts) != 0 || !snap.Prefs.NotifyEnabled {
		t.Fatalf("unexpected defaults: %+v", snap)
	}

	snap.Prefs.DarkBubbles = true
	if err := a.SavePreferences(ctx, snap.Prefs); err != nil {
		t.Fatal(err)
	}
	if !a.Load(ctx).Prefs.DarkBubbles {
		t.Error("preferences not persisted")
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, id := range []string{"c1", "c2"} {
		if err := db.QueueOutbox(ctx, &OutboxEntry{ClientMsgID: id, ContactID: "a", Body: "hi", Recipients: 1}); err != nil {
			t.Fatal(err)
		}
	}

	queued, err := db.ListOutbox(ctx, OutboxQueued, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 2 {
		t.Fatalf("got %d queued, want 2", len(queued))
	}

	if err := db.MarkOutboxSent(ctx, "c1", 3); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxFailed(ctx, "c2", "attachment too large"); err != nil {
		t.Fatal(err)
	}

	failed, err := db.ListOutbox(ctx, OutboxFailed, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ErrorMessage != "attachment too large" {
		t.Errorf("failed = %+v", failed)
	}

	sent, err := db.ListOutbox(ctx, OutboxSent, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 || sent[0].Recipients != 3 {
		t.Errorf("sent = %+v", sent)
	}

	counts, err := db.OutboxCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[OutboxSent] != 1 || counts[OutboxFailed] != 1 || counts[OutboxQueued] != 0 {
		t.Errorf("counts = %v", counts)
	}

	all, err := db.ListOutbox(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("got %d entries, want 2", len(all))
	}
}

func TestDuplicateClientMsgIDRejected(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	e := &OutboxEntry{ClientMsgID: "dup", ContactID: "a"}
	if err := db.QueueOutbox(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox(ctx, e); err == nil {
		t.Error("second insert with same client_msg_id should fail")
	}
}
