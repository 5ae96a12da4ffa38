package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"taskboard/internal/auth"
	"taskboard/internal/docstore"
	"taskboard/internal/handler"
	"taskboard/internal/httpserver"
	"taskboard/internal/notify"
	"taskboard/internal/session"
	"taskboard/internal/sync"
	"taskboard/pkg/config"
	"taskboard/pkg/db"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
	"taskboard/pkg/redisclient"
)

func main() {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting taskboard...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("port", cfg.Server.Port),
	)

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	store := docstore.NewPostgresStore(dbConn, rdb, log)
	notifier := notify.NewLogNotifier(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := sync.NewManager(ctx, store, publisher, notifier, log)
	defer manager.Shutdown()

	provider := auth.NewDocstoreProvider(store, cfg.JWT.Secret, log)
	sessionStore := session.NewSessionStore(provider, store, notifier, log)
	go sessionStore.Watch(ctx)

	authHandler := handler.NewAuthHandler(sessionStore, provider, manager, log)
	taskHandler := handler.NewTaskHandler(manager, log)
	dashboardHandler := handler.NewDashboardHandler(manager, log)

	router := httpserver.NewRouter(authHandler, taskHandler, dashboardHandler, cfg.JWT.Secret, log, dbConn)

	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}
}
