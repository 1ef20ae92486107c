package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatdesk/internal/api"
	"github.com/matheus3301/chatdesk/internal/auth"
	"github.com/matheus3301/chatdesk/internal/bus"
	"github.com/matheus3301/chatdesk/internal/call"
	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/client"
	"github.com/matheus3301/chatdesk/internal/config"
	"github.com/matheus3301/chatdesk/internal/ingest"
	"github.com/matheus3301/chatdesk/internal/lock"
	"github.com/matheus3301/chatdesk/internal/outbox"
	"github.com/matheus3301/chatdesk/internal/profile"
	"github.com/matheus3301/chatdesk/internal/sched"
	"github.com/matheus3301/chatdesk/internal/status"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// shortHome points the profile root at a short /tmp directory so socket
// paths stay under the 104-char Unix socket limit.
func shortHome(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "chatdesk-d-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("CHATDESK_HOME", dir)
	return dir
}

// TestNewServerCreatesSocket checks that NewServer resolves from Params and
// binds the socket override.
func TestNewServerCreatesSocket(t *testing.T) {
	tmpDir := shortHome(t)
	socketPath := filepath.Join(tmpDir, "d.sock")

	b := bus.New()
	st := chat.NewStore(chat.Snapshot{}, nil, b, nil)
	coord := call.New(call.DefaultConfig(), sched.NewFake(time.Now()), st, b, nil)
	in := ingest.New(0)

	p := Params{Profile: "fxtest", SocketPath: socketPath}
	srv, err := NewServer(
		p,
		config.Default(),
		zap.NewNop(),
		api.NewDeskService(st, outbox.NewComposer(in, nil, st, nil, b, nil), in),
		api.NewCallService(coord, st),
		api.NewSessionService("fxtest", "sqlite", status.NewMachine(nil), st, coord, nil, nil, b),
	)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	info, statErr := os.Stat(socketPath)
	if statErr != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, statErr)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket mode = %o, want 600", perm)
	}
	if addrs := srv.Addrs(); len(addrs) != 1 {
		t.Errorf("addrs = %v, want only the unix socket", addrs)
	}

	srv.Stop(context.Background())
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}

func newApp(t *testing.T, cfg *config.Config) *fxtest.App {
	t.Helper()
	return fxtest.New(t,
		Module(Params{Profile: "test", Config: cfg, Logger: zap.NewNop()}),
		fx.NopLogger,
	)
}

func dial(t *testing.T, token string) *client.Client {
	t.Helper()
	c, err := client.New(profile.SocketPath("test"), client.Options{Token: token})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// TestDaemonLifecycle starts the full fx graph, edits state over gRPC, and
// checks that a restarted daemon restores it.
func TestDaemonLifecycle(t *testing.T) {
	shortHome(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app := newApp(t, config.Default())
	app.RequireStart()

	c := dial(t, "")
	st, err := c.Session.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if st.Status != string(status.Ready) || st.Profile != "test" || st.Backend != config.BackendSQLite {
		t.Errorf("status = %+v, want READY on sqlite", st)
	}

	if _, err := c.Desk.CreateContact(ctx, api.CreateContactRequest{ID: "z", Name: "Zoe", FirstMessage: "welcome"}); err != nil {
		t.Fatalf("CreateContact error = %v", err)
	}
	if _, err := c.Desk.Receive(ctx, "z", "are you there?"); err != nil {
		t.Fatalf("Receive error = %v", err)
	}

	if pid, err := lock.Holder(profile.Dir("test")); err != nil || pid != os.Getpid() {
		t.Errorf("lock holder = %d, %v; want this process", pid, err)
	}

	app.RequireStop()

	if _, err := os.Stat(profile.SocketPath("test")); !os.IsNotExist(err) {
		t.Errorf("socket still present after stop: %v", err)
	}
	l, err := lock.Acquire(profile.Dir("test"))
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	_ = l.Release()

	app = newApp(t, config.Default())
	app.RequireStart()
	defer app.RequireStop()

	c = dial(t, "")
	conv, err := c.Desk.GetConversation(ctx, "z")
	if err != nil {
		t.Fatalf("GetConversation after restart error = %v", err)
	}
	if len(conv.Messages) != 2 || conv.Messages[1].Text != "are you there?" {
		t.Errorf("restored messages = %+v", conv.Messages)
	}
	prefs, err := c.Desk.GetPreferences(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Preferences.ActiveContactID != "z" {
		t.Errorf("restored active contact = %q, want z", prefs.Preferences.ActiveContactID)
	}
}

func TestDaemonRequiresToken(t *testing.T) {
	shortHome(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Default()
	cfg.API.AuthSecret = "test-secret"
	app := newApp(t, cfg)
	app.RequireStart()
	defer app.RequireStop()

	_, err := dial(t, "").Session.GetStatus(ctx)
	if code := grpcstatus.Code(err); code != codes.Unauthenticated {
		t.Errorf("anonymous GetStatus code = %v, want Unauthenticated", code)
	}

	token, _, err := auth.NewManager("test-secret", time.Minute).Issue("tester", "test")
	if err != nil {
		t.Fatal(err)
	}
	st, err := dial(t, token).Session.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus with token error = %v", err)
	}
	if st.Status != string(status.Ready) {
		t.Errorf("status = %s, want READY", st.Status)
	}
}
