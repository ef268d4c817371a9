// Package main runs the background job worker (CSV exports to S3).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/invoica/backend/config"
	"github.com/invoica/backend/internal/resources"
	"github.com/invoica/backend/internal/worker"
	"github.com/invoica/backend/pkg/database"
	"github.com/invoica/backend/pkg/logger"
	"github.com/invoica/backend/pkg/queue"
	"github.com/invoica/backend/pkg/redis"
	"github.com/invoica/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Log)
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	db, err := database.NewGorm(pool)
	if err != nil {
		log.Fatal("gorm", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		DocumentsBucket: cfg.AWS.DocumentsBucket,
		PhotosBucket:    cfg.AWS.PhotosBucket,
		PublicBaseURL:   cfg.AWS.PublicBaseURL,
	}, log)
	if err != nil {
		log.Fatal("s3", zap.Error(err))
	}

	// exports only read, so no change feed is attached
	registry, err := resources.Build(resources.GormSources{DB: db}, nil, log)
	if err != nil {
		log.Fatal("resources", zap.Error(err))
	}
	jobQueue := queue.NewQueue(rdb.Client, log)
	processor := worker.NewExportProcessor(registry, s3Client, jobQueue, log)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	log.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	log.Info("worker stopped")
}
