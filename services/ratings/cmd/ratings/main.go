package main

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/store-rating/internal/platform/analytics"
	"github.com/example/store-rating/internal/platform/config"
	"github.com/example/store-rating/internal/platform/db"
	"github.com/example/store-rating/internal/platform/httpserver"
	"github.com/example/store-rating/internal/platform/logging"
	"github.com/example/store-rating/internal/platform/natsconn"
	"github.com/example/store-rating/internal/platform/run"
	"github.com/example/store-rating/services/ratings/internal/bootstrap"
	ratingsconfig "github.com/example/store-rating/services/ratings/internal/config"
	"github.com/example/store-rating/services/ratings/internal/grpcserver"
	"github.com/example/store-rating/services/ratings/internal/handlers"
	"github.com/example/store-rating/services/ratings/internal/service"
	"github.com/example/store-rating/services/ratings/internal/store"
	"github.com/example/store-rating/services/ratings/internal/tokens"
)

func main() {
	run.Exit(realMain())
}

// realMain returns the exit code so deferred cleanup (pool close, NATS
// drain, log sync) runs before the process exits.
func realMain() int {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	svcCfg, err := ratingsconfig.Load()
	if err != nil {
		log.Error("load ratings config", zap.Error(err))
		return 1
	}

	repo, closeRepo, err := initStore(context.Background(), cfg, svcCfg, log)
	if err != nil {
		log.Error("init store", zap.Error(err))
		return 1
	}
	defer closeRepo()

	events, closeNATS := initAnalytics(log)
	defer closeNATS()

	tok := tokens.Service{Secret: svcCfg.JWTSecret, AccessTokenTTL: svcCfg.AccessTokenTTL}
	accounts := service.NewAccounts(repo, service.AccountsOptions{
		Tokens:     tok,
		Events:     events,
		Logger:     log,
		BcryptCost: svcCfg.BcryptCost,
	})

	// Bootstrap admin (optional)
	if err := bootstrap.EnsureAdmin(context.Background(), repo, accounts.HashPassword, svcCfg.Admin, log); err != nil {
		log.Error("bootstrap admin", zap.Error(err))
		return 1
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc:   repo.Ping,
		Logger:      log,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	handlers.Mount(r, handlers.Deps{
		Ratings:  service.NewRatings(repo, events, log),
		Stores:   service.NewStores(repo, events, log),
		Accounts: accounts,
		Limits:   service.Limits{DefaultPageLimit: svcCfg.DefaultPageLimit, MaxPageLimit: svcCfg.MaxPageLimit},
		Verifier: tok.Verifier(),
		Log:      log,
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Logger: log, Router: r})

	// gRPC health
	lis, err := net.Listen("tcp", svcCfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		return 1
	}
	grpcSrv := grpcserver.New(grpcserver.Options{Pinger: repo, Logger: log})
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	runner := run.New(log)
	var wg sync.WaitGroup
	code := runner.WithSignals(func(ctx context.Context) error {
		go grpcSrv.Watch(ctx)
		wg.Add(2)
		go func() { defer wg.Done(); runner.Graceful(ctx, "grpc", grpcSrv.Shutdown) }()
		go func() { defer wg.Done(); runner.Graceful(ctx, "http", srv.Shutdown) }()
		return srv.Start(log)
	})
	wg.Wait()

	log.Info("exit", zap.Int("code", code))
	return code
}

// initStore opens Postgres when DATABASE_URL is set. Outside production a
// missing DSN falls back to the in-memory store.
func initStore(ctx context.Context, cfg config.AppConfig, svcCfg ratingsconfig.Config, log *zap.Logger) (store.Repository, func(), error) {
	pool, err := db.Open(ctx)
	if errors.Is(err, db.ErrNoDSN) && !cfg.IsProduction() {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewInMemoryStore(), func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if svcCfg.AutoMigrate {
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("migrations applied")
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}

// initAnalytics connects the JetStream publisher when NATS_URL is set.
// Analytics is best effort and never blocks startup.
func initAnalytics(log *zap.Logger) (service.EventPublisher, func()) {
	if !natsconn.Configured() {
		return nil, func() {}
	}
	nc, err := natsconn.Connect(natsconn.Options{Name: "ratings", Logger: log})
	if err != nil {
		log.Warn("nats connect failed, analytics disabled", zap.Error(err))
		return nil, func() {}
	}
	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		log.Warn("jetstream unavailable, analytics disabled", zap.Error(err))
		nc.Close()
		return nil, func() {}
	}
	pub := analytics.New(js, log)
	if err := pub.EnsureStream(); err != nil {
		log.Warn("analytics stream", zap.Error(err))
	}
	return pub, func() { _ = nc.Drain() }
}
