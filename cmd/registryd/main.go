// Package main implements registryd, the product registry daemon. It
// serves the lifecycle and lookup API, confirms ledger submissions and
// tails the chain for contract events.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/chaintrace/registry/internal/api"
	"github.com/chaintrace/registry/internal/chain"
	"github.com/chaintrace/registry/internal/config"
	"github.com/chaintrace/registry/internal/database"
	"github.com/chaintrace/registry/internal/events"
	"github.com/chaintrace/registry/internal/ledger"
	"github.com/chaintrace/registry/internal/lookup"
	"github.com/chaintrace/registry/internal/metrics"
	"github.com/chaintrace/registry/internal/middleware"
	"github.com/chaintrace/registry/internal/registry"
	"github.com/chaintrace/registry/pkg/logger"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	flag.Parse()

	// .env is optional; env vars may come from the environment proper.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("registryd").WithError(err).Fatal("load configuration")
	}

	log := logger.New("registryd", cfg.LogLevel)
	log.WithFields(map[string]interface{}{
		"addr":    cfg.Server.Addr(),
		"backend": cfg.Ledger.Backend,
	}).Info("starting product registry")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("registry")
	hub := events.NewHub()

	// Store: PostgreSQL when a DSN is configured, in-memory otherwise.
	var store registry.Store
	handlerChecks := map[string]func() error{}
	if cfg.Database.DSN != "" {
		db, err := database.Open(database.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		})
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			log.WithError(err).Fatal("apply migrations")
		}
		store = registry.NewPostgresStore(db)
		handlerChecks["database"] = db.Ping
	} else {
		log.Warn("no database DSN configured, using in-memory store")
		store = registry.NewMemoryStore()
	}

	svc := registry.New(store, log).WithEvents(hub).WithMetrics(m)

	// Ledger backend and lookup source. The chain backend broadcasts to
	// the contract and reads state back from it; the service backend
	// commits to the local store directly.
	var (
		backend ledger.Backend
		source  lookup.Source
	)
	var listener *chain.Listener
	if cfg.Ledger.Backend == "chain" {
		client, err := chain.NewClient(chain.Config{RPCURL: cfg.Chain.RPCURL})
		if err != nil {
			log.WithError(err).Fatal("create chain client")
		}
		contract := chain.NewRegistryContract(client, cfg.Chain.ContractHash, cfg.Chain.SignerAccount)
		backend = ledger.NewChainBackend(contract)
		source = contract

		listener, err = chain.NewListener(client, chain.ListenerConfig{
			ContractHash:   cfg.Chain.ContractHash,
			PollInterval:   cfg.Chain.PollInterval,
			ResyncSchedule: cfg.Chain.ResyncSchedule,
		}, hub, log)
		if err != nil {
			log.WithError(err).Fatal("create chain listener")
		}
	} else {
		backend = ledger.NewServiceBackend(svc)
		source = lookup.NewStoreSource(store)
	}

	lc := ledger.NewClient(backend, log).WithMetrics(m)
	lk := lookup.New(source, log)

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Passwd,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		cache := lookup.NewCache(rdb, cfg.Redis.TTL, log)
		lk = lk.WithCache(cache)
		go cache.WatchEvents(ctx, hub)
		handlerChecks["redis"] = func() error { return cache.Ping(ctx) }
	}

	handler := api.NewHandler(lc, lk, hub, m, log)
	for name, check := range handlerChecks {
		handler.WithCheck(name, check)
	}

	rl := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	stopCleanup := rl.StartCleanup(10 * time.Minute)
	defer stopCleanup()

	auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), log, []string{"/health", "/metrics"})
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.MetricsMiddleware(m))
	r.Use(cors.Handler)
	r.Use(auth.Handler)
	r.Use(rl.Handler)
	handler.RegisterRoutes(r)

	if listener != nil {
		if err := listener.Start(ctx); err != nil {
			log.WithError(err).Fatal("start chain listener")
		}
		defer listener.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("api listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
}
