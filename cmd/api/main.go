package main

import (
	"log"

	"go.uber.org/zap"

	"mailflow/config"
	"mailflow/internal/api"
	"mailflow/internal/db"
	"mailflow/internal/queue"
	redisclient "mailflow/internal/redis"
	"mailflow/internal/repository"
	"mailflow/internal/service"
	"mailflow/internal/util"
)

func main() {
	// Load config
	cfg := config.Load()

	logger := util.NewLogger()
	defer logger.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewClient(cfg.Redis)
	defer rdb.Close()

	// Init delivery queue
	deliveryQueue := queue.New(rdb, logger)

	// Init Repositories
	userRepo := repository.NewUserRepository(dbConn)
	emailRepo := repository.NewEmailRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Init Services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret)
	emailService := service.NewEmailService(emailRepo, deliveryQueue, logger)

	// Init Handlers
	authHandler := api.NewAuthHandler(authService)
	emailHandler := api.NewEmailHandler(emailService, userRepo)
	notificationHandler := api.NewNotificationHandler(notificationRepo)

	// Router
	router := api.NewRouter(authHandler, emailHandler, notificationHandler, cfg.JWT.Secret)

	// Start API server
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}
