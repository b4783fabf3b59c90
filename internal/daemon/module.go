package daemon

import (
	"context"

	"github.com/matheus3301/duochat/internal/api"
	"github.com/matheus3301/duochat/internal/bus"
	"github.com/matheus3301/duochat/internal/lock"
	"github.com/matheus3301/duochat/internal/logging"
	"github.com/matheus3301/duochat/internal/rtdb"
	"github.com/matheus3301/duochat/internal/session"
	"github.com/matheus3301/duochat/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved daemon configuration passed to the fx module.
type Params struct {
	DataDir    string
	SocketPath string
	// Listen is an optional TCP address served next to the socket.
	Listen  string
	LogPath string
	Console bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideTree,
			provideDatabaseService,
			provideStatusService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	path := p.LogPath
	if path == "" {
		path = session.LogPath("duochatd")
	}
	return logging.New(logging.Options{Path: path, Component: "duochatd", Console: p.Console})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", p.DataDir))
	l, err := lock.Acquire(p.DataDir, p.SocketPath)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

// provideStore opens the database only once the lock is held.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.DataDir)
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

func provideTree(db *store.DB, b *bus.Bus, logger *zap.Logger) (*rtdb.Local, error) {
	tree := rtdb.NewLocal(b, rtdb.WithPersister(db), rtdb.WithLogger(logger.Named("rtdb")))
	n, err := tree.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("tree loaded", zap.Int("records", n))
	return tree, nil
}

func provideDatabaseService(tree *rtdb.Local, logger *zap.Logger) *api.DatabaseService {
	return api.NewDatabaseService(tree, logger.Named("api"))
}

func provideStatusService(tree *rtdb.Local, db *store.DB, b *bus.Bus) *api.StatusService {
	return api.NewStatusService(tree, db, b)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
