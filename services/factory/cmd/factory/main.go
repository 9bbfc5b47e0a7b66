package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/config"
	"github.com/example/aoq-factory/internal/platform/db"
	"github.com/example/aoq-factory/internal/platform/httpserver"
	"github.com/example/aoq-factory/internal/platform/logging"
	"github.com/example/aoq-factory/internal/platform/run"
	fcfg "github.com/example/aoq-factory/services/factory/internal/config"
	"github.com/example/aoq-factory/services/factory/internal/handlers"
)

func main() {
	v, err := config.New()
	if err != nil {
		panic(err)
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	fc, err := fcfg.FromViper(v)
	if err != nil {
		log.Error("load factory config", zap.Error(err))
		run.Exit(1)
	}

	store, ready, closePool := initStore(log, fc)
	if closePool != nil {
		defer closePool()
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: ready, Logger: log})
	handlers.API{Store: store, Log: log}.Register(r)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go runner.Graceful(ctx, srv.Shutdown)
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the catalog backend. In production it requires a working
// Postgres connection and terminates the process otherwise.
func initStore(log *zap.Logger, fc fcfg.Config) (catalog.Store, func() error, func()) {
	if fc.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory catalog store (development only)")
		return catalog.NewInMemoryStore(), nil, nil
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, db.Options{URL: fc.DatabaseURL, MaxConns: fc.DBMaxConns})
	if err != nil {
		if fc.Production() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory store", zap.Error(err))
		return catalog.NewInMemoryStore(), nil, nil
	}

	if fc.DBAutoMigrate {
		if err := catalog.Migrate(ctx, pool); err != nil {
			pool.Close()
			log.Error("migrate", zap.Error(err))
			run.Exit(1)
		}
	}

	log.Info("catalog store: postgres")
	return catalog.NewPostgresStore(pool), db.ReadyFunc(pool, 2*time.Second), pool.Close
}
