package main

import (
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dealflow/server/config"
	"dealflow/server/internal/api"
	"dealflow/server/internal/database"
	"dealflow/server/internal/processor"
	"dealflow/server/internal/queue"
	"dealflow/server/internal/scheduler"
	"dealflow/server/internal/snapshot"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", cfg.Database.Path)

	// Initialize the pipeline store
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	// Run database migrations
	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Initialize the derived analytics store
	snapshots, err := snapshot.NewStore(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize analytics store")
	}

	// Start the snapshot persistence path: queue feeding batch writers
	snapshotQueue := queue.NewSnapshotQueue(cfg.Snapshots.QueueSize, logger)
	snapshotQueue.Start()
	defer snapshotQueue.Close()

	batchProcessor := processor.NewBatchProcessor(snapshots.DB(), snapshotQueue, cfg, logger)
	batchProcessor.Start()
	defer batchProcessor.Stop()

	generator := snapshot.NewService(db, snapshotQueue, logger)

	// Schedule the daily snapshot job
	snapshotScheduler := scheduler.NewScheduler(generator, logger)
	snapshotScheduler.Start()
	defer snapshotScheduler.Stop()

	// Initialize router
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
	}))

	api.SetupRoutes(router, db, snapshots, generator, cfg)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
