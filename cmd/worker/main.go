package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailflow/config"
	"mailflow/internal/db"
	"mailflow/internal/mailer"
	"mailflow/internal/mq"
	"mailflow/internal/mqhandler"
	"mailflow/internal/queue"
	redisclient "mailflow/internal/redis"
	"mailflow/internal/repository"
	"mailflow/internal/util"
	"mailflow/internal/worker"
)

func main() {
	// Load config
	cfg := config.Load()

	logger := util.NewLogger()
	defer logger.Sync()

	logger.Info("Starting delivery worker...")

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	logger.Info("Database connection established")

	// Init Redis
	rdb := redisclient.NewClient(cfg.Redis)
	defer rdb.Close()

	// Init RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	emailRepo := repository.NewEmailRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Init mail provider client
	sender := mailer.NewResendClient(cfg.Resend)

	// Init delivery pipeline
	deliveryQueue := queue.New(rdb, logger)
	deliverer := worker.NewDeliverer(emailRepo, sender, publisher, cfg.Resend.Domain, logger)

	// Dedup guard so retried deliveries notify once
	deduper := util.NewDeduperWithLogger(rdb, time.Hour, logger)

	// Consumer for failed-delivery notifications
	logger.Info("Initializing email-failed consumer", zap.String("queue", "email.failed.notify.q"))
	failedHandler := mqhandler.NewEmailFailedHandler(notificationRepo, deduper, logger)
	consumerFailed, err := mq.NewConsumer(cfg.MQ.URL, "email.failed.notify.q", mq.RoutingKeyEmailFailed, logger)
	if err != nil {
		logger.Fatal("failed to init email-failed consumer", zap.Error(err))
	}
	consumerFailed.SetHandler(failedHandler.HandleEmailFailed)
	go func() {
		logger.Info("Starting email-failed consumer")
		if err := consumerFailed.StartConsuming(); err != nil {
			logger.Fatal("email-failed consumer failed", zap.Error(err))
		}
	}()
	defer consumerFailed.Close()

	// Metrics endpoint
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.Metrics.Port, nil); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("Worker is ready to process delivery jobs")

	// Poll the scheduled set until shutdown
	if err := deliveryQueue.Run(context.Background(), deliverer.Handle); err != nil {
		logger.Fatal("delivery loop stopped", zap.Error(err))
	}
}
