package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"login-api/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "worker.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	workerID := core.NewWorkerID()
	hostname, _ := os.Hostname()

	queue := core.NewMailQueue(redisClient)
	sender := core.NewHTTPMailClient(cfg.MailAPIURL, cfg.MailAPIKey)
	processor := core.NewMailProcessor(sender, core.MailAddress{Name: cfg.MailSenderName, Email: cfg.MailSenderAddress})
	state := core.NewHeartbeatState(workerID, hostname, concurrency)
	worker := core.NewMailWorker(queue, processor, state)

	slog.Info("mail worker started", "id", workerID, "concurrency", concurrency, "queue", core.MailPendingKey)

	go state.Start(ctx, redisClient)
	go worker.Reclaim(ctx, 15*time.Second)
	worker.Run(ctx, concurrency)

	slog.Info("mail worker stopped", "id", workerID)
}
