package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/aoq-factory/internal/catalog"
	"github.com/example/aoq-factory/internal/platform/config"
	"github.com/example/aoq-factory/internal/platform/db"
	"github.com/example/aoq-factory/internal/platform/httpserver"
	"github.com/example/aoq-factory/internal/platform/logging"
	"github.com/example/aoq-factory/internal/platform/natsconn"
	"github.com/example/aoq-factory/internal/platform/run"
	"github.com/example/aoq-factory/services/songsworker/internal/anidb"
	swcfg "github.com/example/aoq-factory/services/songsworker/internal/config"
	"github.com/example/aoq-factory/services/songsworker/internal/events"
	"github.com/example/aoq-factory/services/songsworker/internal/pagecache"
	"github.com/example/aoq-factory/services/songsworker/internal/ratelimit"
	"github.com/example/aoq-factory/services/songsworker/internal/worker"
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

	wc, err := swcfg.FromViper(v)
	if err != nil {
		log.Error("load songs worker config", zap.Error(err))
		run.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, db.Options{URL: wc.DatabaseURL, MaxConns: wc.DBMaxConns})
	if err != nil {
		log.Error("open database", zap.Error(err))
		run.Exit(1)
	}
	defer pool.Close()
	if wc.DBAutoMigrate {
		if err := catalog.Migrate(ctx, pool); err != nil {
			log.Error("migrate", zap.Error(err))
			run.Exit(1)
		}
	}
	store := catalog.NewPostgresStore(pool)

	pageStore, err := pagecache.OpenStore(ctx, wc.Cache.Backend, wc.Cache.Path, wc.Cache.RedisURL)
	if err != nil {
		log.Error("open page cache", zap.String("backend", wc.Cache.Backend), zap.Error(err))
		run.Exit(1)
	}
	defer func() { _ = pageStore.Close() }()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "anidb",
		MaxRequests: wc.Breaker.MaxRequests,
		Interval:    wc.Breaker.Interval,
		Timeout:     wc.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= wc.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	// One limiter for the whole process: AniDB bans clients that hammer it.
	limiter := ratelimit.NewInterval(wc.AniDB.RequestInterval)
	limiter.OnWait = worker.ObserveRateLimitWait

	client := anidb.New(wc.AniDB.BaseURL, anidb.ClientConfig{
		UserAgent: wc.AniDB.UserAgent,
		Timeout:   wc.AniDB.Timeout,
	}, limiter, anidb.WithCircuitBreaker(cb), anidb.WithLogger(log))
	pages := pagecache.New(pageStore, client.Fetch, log)

	var publisher events.Publisher = events.Nop{}
	natsOpts := natsconn.Options{
		URL:           wc.NATS.URL,
		Name:          cfg.ServiceName,
		MaxReconnects: wc.NATS.MaxReconnects,
		ReconnectWait: wc.NATS.ReconnectWait,
		Logger:        log,
	}
	if natsconn.Enabled(natsOpts) {
		nc, err := natsconn.Connect(natsOpts)
		if err != nil {
			log.Error("nats connect", zap.Error(err))
			run.Exit(1)
		}
		defer nc.Close()
		jsp, err := events.NewJetStreamPublisher(log, nc)
		if err != nil {
			log.Error("jetstream", zap.Error(err))
			run.Exit(1)
		}
		if err := jsp.EnsureStream(ctx); err != nil {
			log.Error("ensure stream", zap.Error(err))
			run.Exit(1)
		}
		publisher = jsp
	} else {
		log.Info("NATS_URL not set, outcome events disabled")
	}

	wrk := worker.New(worker.Config{
		Name:                 wc.WorkerName,
		BatchSize:            wc.BatchSize,
		PollInterval:         wc.PollInterval,
		Concurrency:          wc.Concurrency,
		MaxTemporaryFailures: wc.MaxTemporaryFailures,
		LegacyFailurePolicy:  wc.LegacyFailurePolicy,
	}, store, pages, worker.WithLogger(log), worker.WithEvents(publisher))

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: db.ReadyFunc(pool, 2*time.Second), Logger: log})
	worker.StatusAPI{Worker: wrk, EnableTriggers: wc.EnableHTTPTriggers}.Register(r)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Start(log) })
		g.Go(func() error { return wrk.Run(gctx) })
		g.Go(func() error {
			runner.Graceful(gctx, srv.Shutdown)
			return nil
		})
		return g.Wait()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
