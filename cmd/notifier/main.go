package main

import (
	"go.uber.org/zap"

	mqcontracts "taskboard/contracts/mq"
	"taskboard/internal/docstore"
	"taskboard/internal/mailer"
	"taskboard/internal/mqhandler"
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

	log.Info("Starting notifier...",
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("mailer_endpoint", cfg.Mailer.EndpointURL),
	)

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	store := docstore.NewPostgresStore(dbConn, rdb, log)
	mail := mailer.NewMailer(cfg.Mailer.EndpointURL, cfg.Mailer.FromName, log)
	assignedHandler := mqhandler.NewTaskAssignedHandler(store, mail, log)

	consumer, err := mq.NewConsumer(cfg.MQ.URL, "task.assigned.q", mqcontracts.RoutingKeyTaskAssigned, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	consumer.SetHandler(assignedHandler.Handle)

	log.Info("Starting task.assigned consumer...")
	if err := consumer.StartConsuming(); err != nil {
		log.Fatal("Consumer failed", zap.Error(err))
	}
}
