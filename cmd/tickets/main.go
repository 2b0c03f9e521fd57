package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/ariefcatur/go-pos-accounts/internal/config"
	kafkax "github.com/ariefcatur/go-pos-accounts/internal/kafka"
	"github.com/ariefcatur/go-pos-accounts/internal/logx"
	"github.com/ariefcatur/go-pos-accounts/internal/redisx"
	"github.com/ariefcatur/go-pos-accounts/internal/tickets"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger, err := logx.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName+"-tickets")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &tickets.Service{
		Redis:       rdb,
		Dir:         cfg.TicketsDir,
		ServiceName: "tickets",
		Log:         logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.TicketsGroup, accounts.TopicTicketEmitted, cfg.TicketsWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("tickets consumer started",
			zap.String("group", cfg.TicketsGroup),
			zap.String("topic", accounts.TopicTicketEmitted),
			zap.Int("workers", cfg.TicketsWorkers),
			zap.String("dir", cfg.TicketsDir))
		if err := cons.Start(ctx, svc.HandleTicketEmitted); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done
}
