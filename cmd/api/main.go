package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/ariefcatur/go-pos-accounts/internal/backend"
	"github.com/ariefcatur/go-pos-accounts/internal/catalog"
	"github.com/ariefcatur/go-pos-accounts/internal/config"
	"github.com/ariefcatur/go-pos-accounts/internal/events"
	"github.com/ariefcatur/go-pos-accounts/internal/httpx"
	"github.com/ariefcatur/go-pos-accounts/internal/identity"
	kafkax "github.com/ariefcatur/go-pos-accounts/internal/kafka"
	"github.com/ariefcatur/go-pos-accounts/internal/logx"
	"github.com/ariefcatur/go-pos-accounts/internal/postgres"
	"github.com/ariefcatur/go-pos-accounts/internal/redisx"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logx.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	dispatch := &postgres.DispatchRepo{DB: db}
	if err := dispatch.EnsureSchema(ctx); err != nil {
		logger.Fatal("db schema", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	tickets := kafkax.NewProducer(cfg.KafkaBrokers, accounts.TopicTicketEmitted, 1024, logger)
	tickets.Start(ctx)
	kitchen := kafkax.NewProducer(cfg.KafkaBrokers, accounts.TopicItemsCommanded, 1024, logger)
	kitchen.Start(ctx)

	client := backend.New(cfg.BackendURL, cfg.BackendTimeout, logger.Named("backend"))
	identities := identity.NewStore(rdb, cfg.IdentityTTL)

	policy := accounts.ClosePolicy(cfg.ClosePendingPolicy)
	if policy != accounts.ClosePendingDiscard && policy != accounts.ClosePendingReject {
		logger.Fatal("invalid CLOSE_PENDING_POLICY", zap.String("value", cfg.ClosePendingPolicy))
	}
	sessions := accounts.NewRegistry(client, accounts.SessionOptions{
		Publisher: &events.Publisher{
			Tickets:  tickets,
			Kitchen:  kitchen,
			Producer: cfg.ServiceName,
			TraceID:  middleware.GetReqID,
		},
		Dispatch:       dispatch,
		Locker:         redisx.NewAccountLocker(rdb, redisx.TTLAccountLock),
		Logger:         logger.Named("session"),
		ClosePolicy:    policy,
		CloseDelay:     cfg.SessionCloseDelay,
		RestaurantName: cfg.RestaurantName,
	})

	products := catalog.New(client, rdb, logger.Named("catalog"))

	router := httpx.NewRouter()
	(&httpx.AuthHandler{Backend: client, Identities: identities, Log: logger}).Register(router)
	(&httpx.ProxyHandler{Backend: client, Catalog: products, Log: logger.Named("proxy")}).Register(router)
	(&httpx.SessionHandler{
		Sessions:   sessions,
		Catalog:    products,
		Identities: identities,
		Log:        logger,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("backend", cfg.BackendURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	tickets.Close()
	kitchen.Close()
	cancel()
	tickets.WaitClosed()
	kitchen.WaitClosed()
}
