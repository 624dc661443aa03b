package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/api"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/auth"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/cache"
	cfgpkg "github.com/gaurabsunargs-sudo/HMS-sub002/internal/config"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/events"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/hub"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/logger"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/presence"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/repository"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/service"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/ws"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := cfgpkg.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(cfg.App.Development())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Mongo
	mc, err := repository.NewMongoClient(context.Background(), cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	repo := repository.NewMongoRepository(mc.Database(cfg.Mongo.DB).Collection(cfg.Mongo.Collection))

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	convCache := cache.NewConversations(rdb, cfg.Redis.Prefix, 5*time.Minute)

	// Kafka producer
	pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zl)
	defer func() { _ = pub.Close() }()

	jv := auth.NewValidator(cfg.JWT.Secret)
	h := hub.New()
	tracker := presence.NewTracker(ws.PresenceNotifier(h, zl))
	chat := service.NewChat(repo, convCache, pub, h, zl)

	wsrv := ws.NewServer(h, tracker, chat, jv, ws.Options{
		PingInterval:    cfg.PingInterval,
		WriteDeadline:   cfg.WriteDeadline,
		MaxMessageSize:  cfg.WS.MaxMessageSizeBytes,
		EventsPerSecond: cfg.WS.EventsPerSecond,
	}, zl)

	app := api.NewServer(chat, tracker, wsrv, jv, zl)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.PortString()
		zl.Infow("starting chat service", "addr", addr)
		errs <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zl.Fatalw("server error", "err", e)
	case s := <-quit:
		zl.Infow("signal received", "signal", s.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zl.Info("chat service stopped")
}
