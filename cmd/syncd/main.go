package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/institute-portal/internal/api"
	"github.com/yourorg/institute-portal/internal/config"
	"github.com/yourorg/institute-portal/internal/events"
	"github.com/yourorg/institute-portal/internal/handlers"
	"github.com/yourorg/institute-portal/internal/logger"
	"github.com/yourorg/institute-portal/internal/presence"
	"github.com/yourorg/institute-portal/internal/profile"
	"github.com/yourorg/institute-portal/internal/realtime"
	"github.com/yourorg/institute-portal/internal/repository"
	wshub "github.com/yourorg/institute-portal/internal/ws"
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
	defer zl.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	cancel()
	if err != nil {
		zl.Fatalw("mongo connect", "err", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = mongoClient.Disconnect(sctx)
	}()
	repo := repository.NewMongoRepository(mongoClient.Database(cfg.Mongo.Database))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Pass,
		DB:       cfg.Redis.DB,
	})
	pctx, pcancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pctx).Err(); err != nil {
		pcancel()
		zl.Fatalw("redis ping", "err", err)
	}
	pcancel()
	defer rdb.Close()

	bus := realtime.NewRedisBus(rdb, cfg.Redis.Prefix, zl)
	broker := presence.NewRedisBroker(rdb, cfg.Redis.Prefix, cfg.PresenceTTL)

	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		defer producer.Close()
	}

	profiles := profile.NewCache(repo)
	hub := wshub.NewHub()
	h := handlers.NewSyncHandler(cfg, repo, bus, broker, producer, profiles, hub, zl)
	app := api.NewServer(cfg, h)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.App.Port)
		zl.Infow("starting sync service", "addr", addr)
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

	hub.CloseAll()
	if err := app.Shutdown(); err != nil {
		zl.Warnw("fiber shutdown", "err", err)
	}
	zl.Info("shut down")
}
