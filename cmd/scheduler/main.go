package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/tempo/internal/config"
	"github.com/muaviaUsmani/tempo/internal/logger"
	"github.com/muaviaUsmani/tempo/internal/queue"
	"github.com/muaviaUsmani/tempo/internal/scheduler"
	"github.com/muaviaUsmani/tempo/internal/store"
)

// connectWithRetry attempts to connect to Redis with exponential backoff
func connectWithRetry(ctx context.Context, redisURL string, maxRetries int, log logger.Logger) (*redis.Client, error) {
	var client *redis.Client
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		client, err = store.Connect(ctx, redisURL)
		if err == nil {
			return client, nil
		}

		// 2^attempt seconds, capped at 30s
		delay := time.Duration(1<<uint(attempt)) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}

		log.Warn("Failed to connect to Redis, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"error", err,
			"retry_in", delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, err)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	logger.SetDefault(log)
	redis.SetLogger(logger.NewRedisLogger(log.WithComponent(logger.ComponentStore)))

	daemonLog := log.WithComponent(logger.ComponentDaemon).WithSource(logger.SourceEngine)

	daemonLog.Info("Planner daemon starting",
		"redis_url", cfg.RedisURL,
		"key_prefix", cfg.KeyPrefix,
		"interval", cfg.PlannerInterval,
		"dispatch_list", cfg.DispatchList)

	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6062"
	}
	go func() {
		daemonLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		if err := http.ListenAndServe(":"+pprofPort, nil); err != nil {
			daemonLog.Error("pprof server failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	client, err := connectWithRetry(ctx, cfg.RedisURL, 5, daemonLog)
	if err != nil {
		daemonLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	daemonLog.Info("Successfully connected to Redis")

	planner := scheduler.NewPlanner(client, scheduler.OptionsFromConfig(cfg))

	recovered, err := planner.RecoverArms(ctx, time.Now())
	if err != nil {
		daemonLog.Error("Failed to recover arms", "error", err)
	}
	daemonLog.Info("Tasks loaded",
		"tasks", planner.Registry().Count(),
		"recovered_arms", recovered)

	publisher := queue.NewListPublisher(client, cfg.DispatchList)

	done := make(chan struct{})
	go func() {
		planner.Run(ctx, publisher)
		close(done)
	}()

	sig := <-sigChan
	daemonLog.Info("Received shutdown signal, initiating graceful shutdown", "signal", sig)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		daemonLog.Warn("Planner did not stop in time")
	}

	m := planner.Metrics().GetMetrics()
	daemonLog.Info("Planner daemon shut down successfully",
		"arms_dispatched", m.ArmsDispatched,
		"dispatch_errors", m.DispatchErrors,
		"uptime", m.Uptime)
}
