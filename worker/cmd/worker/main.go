package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pdfworks/worker/cache"
	"pdfworks/worker/config"
	"pdfworks/worker/converter"
	"pdfworks/worker/kafka"
	"pdfworks/worker/pool"
	"pdfworks/worker/repository"
	"pdfworks/worker/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker service starting",
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.Int("workers", cfg.WorkerCount),
	)

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	repo := repository.NewPostgresRepo(db)
	statusCache := cache.NewStatusCache(redisClient)
	conv := converter.NewPDFConverter(logger)

	processor := service.NewProcessor(
		repo,
		statusCache,
		conv,
		cfg.DataDir,
		time.Duration(cfg.JobTimeoutSeconds)*time.Second,
		logger,
	)

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	deadLetters, err := kafka.NewDeadLetterProducer(brokers, cfg.KafkaDeadTopic)
	if err != nil {
		logger.Fatal("Failed to create dead-letter producer", zap.Error(err))
	}
	defer deadLetters.Close()

	// Exhausted deliveries are published for reconciliation and the task is
	// marked failed so it never sits pending forever.
	deadLetter := func(ctx context.Context, msg *kafka.TaskMessage, cause error) {
		if err := deadLetters.Publish(ctx, msg, cause.Error()); err != nil {
			logger.Error("Failed to publish dead letter",
				zap.String("task_id", msg.TaskID),
				zap.Error(err),
			)
		}
		if err := repo.FailTask(ctx, msg.TaskID, "delivery retries exhausted: "+cause.Error()); err != nil &&
			!errors.Is(err, repository.ErrTaskFinished) {
			logger.Error("Failed to mark dead-lettered task",
				zap.String("task_id", msg.TaskID),
				zap.Error(err),
			)
		}
	}

	consumer, err := kafka.NewConsumer(brokers, cfg.KafkaGroupID, cfg.MaxAttempts, deadLetter, logger)
	if err != nil {
		logger.Fatal("Failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	workers := pool.NewWorkerPool(cfg.WorkerCount)
	handler := func(ctx context.Context, msg *kafka.TaskMessage) error {
		return workers.Do(ctx, func() error {
			return processor.Process(ctx, msg)
		})
	}

	for {
		if err := consumer.Consume(ctx, cfg.KafkaTopic, handler); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error("Consumer session ended", zap.Error(err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("Worker service stopped")
}
