package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/bot"
	"crisis-escalation-service/pkg/classifier"
	"crisis-escalation-service/pkg/config"
	"crisis-escalation-service/pkg/detector"
	"crisis-escalation-service/pkg/escalation"
	"crisis-escalation-service/pkg/handlers"
	"crisis-escalation-service/pkg/metrics"
	"crisis-escalation-service/pkg/notify"
	redisClient "crisis-escalation-service/pkg/redis"
	"crisis-escalation-service/pkg/responders"
	"crisis-escalation-service/pkg/server"
	"crisis-escalation-service/pkg/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithField("instance_id", cfg.InstanceID).Info("Starting crisis escalation service")

	// Initialize metrics
	m := metrics.NewMetrics()

	// Select the persistence backend
	var (
		st      store.Store
		emitter notify.Emitter
		roster  responders.Roster
		leader  *escalation.LeaderElection
	)

	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("Running with in-memory store, escalations will not survive a restart")
		st = store.NewMemoryStore()
		emitter = notify.NewLocalEmitter()
		roster = responders.NewMemoryRoster()
	default:
		redisConfig := redisClient.DefaultConnectionConfig()
		redisConfig.URL = cfg.RedisURL

		redis, err := redisClient.NewClient(redisConfig, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()

		rdb := redis.GetRedisClient()
		st = store.NewRedisStore(rdb, logger, m)
		emitter = notify.NewRedisEmitter(rdb, logger)
		roster = responders.NewRedisRoster(rdb)
		leader = escalation.NewLeaderElection(rdb, cfg, logger, m)
	}

	// Build the pipeline
	remote := classifier.NewClient(cfg.MLServiceURL, cfg.ClassifierTimeout(), logger)
	evaluator := detector.NewEvaluator(remote, cfg.ClassifierTimeout(), logger, m)
	fanout := notify.NewFanOut(emitter, logger, m)
	coordinator := escalation.NewCoordinator(st, evaluator, fanout, roster, bot.NewTemplateResponder(), logger, m)
	sweeper := escalation.NewSweeper(st, leader, cfg, logger, m)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build HTTP server and service
	isLeader := func() bool {
		if leader == nil {
			return true
		}
		return leader.IsLeader()
	}
	handler := handlers.NewHandler(coordinator, st, roster, logger, isLeader)
	httpServer := server.NewHTTPServer(cfg, handler, logger)
	service := escalation.NewService(cfg, logger, leader, sweeper, httpServer)

	// Start service
	if err := service.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start service")
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := service.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during service shutdown")
	}

	logger.Info("Crisis escalation service shutdown complete")
}
