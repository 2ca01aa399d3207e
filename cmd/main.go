package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fathima-sithara/realtime-service/internal/api"
	"github.com/fathima-sithara/realtime-service/internal/auth"
	"github.com/fathima-sithara/realtime-service/internal/config"
	"github.com/fathima-sithara/realtime-service/internal/events"
	"github.com/fathima-sithara/realtime-service/internal/logger"
	"github.com/fathima-sithara/realtime-service/internal/metrics"
	"github.com/fathima-sithara/realtime-service/internal/presence"
	"github.com/fathima-sithara/realtime-service/internal/redisstore"
	"github.com/fathima-sithara/realtime-service/internal/relay"
	"github.com/fathima-sithara/realtime-service/internal/repository"
	"github.com/fathima-sithara/realtime-service/internal/roompresence"
	"github.com/fathima-sithara/realtime-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(logger.Config{
		Development: cfg.App.Env != "production",
		Level:       cfg.App.LogLevel,
	})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	jv, err := auth.NewValidator(cfg.App.JWTSecret)
	if err != nil {
		zl.Fatalw("jwt validator init", "err", err)
	}

	ctx := context.Background()
	mongoClient, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo connect", "err", err)
	}
	db := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		zl.Fatalw("ensure indexes", "err", err)
	}

	msgRepo := repository.NewMessageRepo(db)
	convRepo := repository.NewConversationRepo(db)
	userRepo := repository.NewUserRepo(db)

	hub := ws.NewHub(zl)
	rooms := roompresence.NewTracker()
	tracker := presence.NewTracker(cfg.OfflineGrace, userRepo, hub, zl)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Pass,
			DB:       cfg.Redis.DB,
		})
		store := redisstore.New(rdb, cfg.Redis.Prefix)
		tracker.SetMirror(store)
		hub.SetPublish(store.Publish)
	}

	svc := relay.NewService(rooms, msgRepo, convRepo, hub, zl)

	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		svc.SetEventPublisher(producer)
	}

	wsSrv := ws.NewServer(cfg, hub, jv, tracker, svc, zl)
	rl := api.NewIPRateLimiter(cfg.App.RESTRatePerMinute, zl)
	app := api.NewServer(wsSrv, convRepo, msgRepo, tracker, jv, rl, zl)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		zl.Infow("metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, metrics.Handler()); err != nil {
			zl.Warnw("metrics server stopped", "err", err)
		}
	}()

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		zl.Infow("realtime service listening", "addr", addr)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zl.Fatalw("server error", "err", e)
	case s := <-sig:
		zl.Infow("signal received", "signal", s.String())
	}

	if err := app.Shutdown(); err != nil {
		zl.Warnw("fiber shutdown", "err", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			zl.Warnw("kafka producer close", "err", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		zl.Warnw("mongo disconnect", "err", err)
	}
	zl.Infow("shutdown complete")
}
