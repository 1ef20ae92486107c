package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/chatdesk/internal/api"
	"github.com/matheus3301/chatdesk/internal/bus"
	"github.com/matheus3301/chatdesk/internal/call"
	"github.com/matheus3301/chatdesk/internal/chat"
	"github.com/matheus3301/chatdesk/internal/config"
	"github.com/matheus3301/chatdesk/internal/ingest"
	"github.com/matheus3301/chatdesk/internal/lock"
	"github.com/matheus3301/chatdesk/internal/logging"
	"github.com/matheus3301/chatdesk/internal/outbox"
	"github.com/matheus3301/chatdesk/internal/persist"
	"github.com/matheus3301/chatdesk/internal/persist/mongokv"
	"github.com/matheus3301/chatdesk/internal/persist/natskv"
	"github.com/matheus3301/chatdesk/internal/profile"
	"github.com/matheus3301/chatdesk/internal/sched"
	"github.com/matheus3301/chatdesk/internal/status"
	"github.com/matheus3301/chatdesk/internal/store"
	intsync "github.com/matheus3301/chatdesk/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// backendTimeout bounds connecting to a remote persistence backend.
const backendTimeout = 10 * time.Second

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string         // optional override for testing; empty = use default
	Config     *config.Config // optional; nil = load ~/.chatdesk/config.toml
	Logger     *zap.Logger    // optional; nil = log to the profile log file
	Debug      bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideDB,
			provideBlobStore,
			provideAdapter,
			provideScheduler,
			provideChatStore,
			provideCoordinator,
			provideIngester,
			provideComposer,
			provideSyncEngine,
			provideDeskService,
			provideCallService,
			provideSessionService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, p.Config.Validate()
	}
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger.With(zap.String("profile", p.Profile)), nil
	}
	if p.Debug {
		return logging.NewDebug(profile.LogPath(p.Profile), p.Profile)
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideDB opens the profile database. It depends on the lock so no two
// daemons migrate the same file.
func provideDB(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

// sqliteBlobs keeps the blob table in the profile database. The database
// outlives the adapter, so closing the blob store leaves it open.
type sqliteBlobs struct {
	*store.DB
}

func (sqliteBlobs) Close() error { return nil }

func provideBlobStore(p Params, cfg *config.Config, db *store.DB, logger *zap.Logger) (persist.BlobStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
	defer cancel()

	pc := cfg.Persistence
	switch pc.Backend {
	case config.BackendSQLite, "":
		logger.Info("persistence backend selected", zap.String("backend", config.BackendSQLite))
		return sqliteBlobs{db}, nil
	case config.BackendNATS:
		s, err := natskv.Open(ctx, pc.NATSURL, pc.NATSBucket, p.Profile)
		if err != nil {
			return nil, err
		}
		logger.Info("persistence backend selected", zap.String("backend", pc.Backend), zap.String("url", pc.NATSURL), zap.String("bucket", pc.NATSBucket))
		return s, nil
	case config.BackendMongo:
		s, err := mongokv.Open(ctx, pc.MongoURI, pc.MongoDatabase, p.Profile)
		if err != nil {
			return nil, err
		}
		logger.Info("persistence backend selected", zap.String("backend", pc.Backend), zap.String("database", pc.MongoDatabase))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", pc.Backend)
	}
}

func provideAdapter(blobs persist.BlobStore, logger *zap.Logger) *persist.Adapter {
	return persist.NewAdapter(blobs, logger.Named("persist"))
}

func provideScheduler() sched.Scheduler {
	return sched.NewReal()
}

// provideChatStore starts empty; the persisted state is restored on start.
func provideChatStore(s sched.Scheduler, b *bus.Bus, logger *zap.Logger) *chat.Store {
	return chat.NewStore(chat.Snapshot{}, s, b, logger.Named("chat"))
}

func provideCoordinator(cfg *config.Config, s sched.Scheduler, st *chat.Store, b *bus.Bus, logger *zap.Logger) *call.Coordinator {
	return call.New(call.Config{
		DialDelay:    cfg.Calls.DialDelay.Duration,
		CleanupDelay: cfg.Calls.CleanupDelay.Duration,
		TickInterval: cfg.Calls.TickInterval.Duration,
	}, s, st, b, logger.Named("call"))
}

func provideIngester(cfg *config.Config) *ingest.Ingester {
	return ingest.New(cfg.Attachments.MaxBytes)
}

func provideComposer(cfg *config.Config, in *ingest.Ingester, st *chat.Store, db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Composer {
	var rec ingest.Recorder = ingest.Unsupported{}
	if cfg.Attachments.VoiceSource != "" {
		rec = ingest.FileRecorder{Path: cfg.Attachments.VoiceSource}
	}
	voice := ingest.NewVoiceSession(rec, nil)
	return outbox.NewComposer(in, voice, st, db, b, logger.Named("outbox"))
}

func provideSyncEngine(a *persist.Adapter, st *chat.Store, b *bus.Bus, m *status.Machine, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(a, st, b, m, logger.Named("sync"))
}

func provideDeskService(st *chat.Store, c *outbox.Composer, in *ingest.Ingester) *api.DeskService {
	return api.NewDeskService(st, c, in)
}

func provideCallService(coord *call.Coordinator, st *chat.Store) *api.CallService {
	return api.NewCallService(coord, st)
}

func provideSessionService(p Params, cfg *config.Config, m *status.Machine, st *chat.Store, coord *call.Coordinator, db *store.DB, engine *intsync.Engine, b *bus.Bus) *api.SessionService {
	return api.NewSessionService(p.Profile, cfg.Persistence.Backend, m, st, coord, db, engine, b)
}

type lifecycleDeps struct {
	fx.In

	Server  *Server
	Session *api.SessionService
	Lock    *lock.Lock
	DB      *store.DB
	Adapter *persist.Adapter
	Store   *chat.Store
	Coord   *call.Coordinator
	Engine  *intsync.Engine
	Machine *status.Machine
	Logger  *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := d.Machine.Transition(status.Loading); err != nil {
				return err
			}
			intsync.Restore(ctx, d.Adapter, d.Store, d.Logger)

			// Start persisting only after the restore so it is not written back.
			d.Engine.Start(context.Background())

			go func() {
				if err := d.Server.Start(); err != nil {
					d.Logger.Error("gRPC server error", zap.Error(err))
					_ = d.Machine.Fail(err.Error())
				}
			}()

			return d.Machine.Transition(status.Ready)
		},
		OnStop: func(ctx context.Context) error {
			d.Session.Shutdown()
			d.Server.Stop(ctx)
			d.Coord.Stop()
			d.Engine.Stop()
			if err := d.Adapter.Close(); err != nil {
				d.Logger.Warn("error closing persistence backend", zap.Error(err))
			}
			if err := d.DB.Close(); err != nil {
				d.Logger.Warn("error closing database", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				d.Logger.Warn("error releasing lock", zap.Error(err))
			}
			d.Logger.Info("daemon stopped")
			_ = d.Logger.Sync()
			return nil
		},
	})
}
