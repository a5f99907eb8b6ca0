package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/nursing-api/internal/config"
	"github.com/jwalitptl/nursing-api/internal/email"
	"github.com/jwalitptl/nursing-api/internal/repository/postgres"
	"github.com/jwalitptl/nursing-api/internal/worker"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/messaging"
	"github.com/jwalitptl/nursing-api/pkg/messaging/redis"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
	pkgworker "github.com/jwalitptl/nursing-api/pkg/worker"
)

func setupHealthCheck(port int, db *sqlx.DB, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

// subscribeNotifier routes alert events to email when notifications are on.
func subscribeNotifier(ctx context.Context, cfg config.NotifyConfig, broker messaging.MessageBroker, log *logger.Logger) error {
	if !cfg.Enabled {
		log.Info("Email notifications disabled")
		return nil
	}
	notifier := email.NewNotifier(email.NewSMTPService(cfg), log)
	for topic, handler := range notifier.Handlers() {
		if err := broker.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.FromSettings("info", "json", os.Stderr).Fatal(err, "Failed to load config")
	}

	log := logger.FromSettings(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	redisBroker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), log)
	if err != nil {
		log.Fatal(err, "Failed to create Redis broker")
	}
	broker := messaging.NewBrokerAdapter(redisBroker, log)
	defer broker.Close()

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	processor := pkgworker.NewOutboxProcessor(
		outboxRepo,
		broker,
		cfg.Outbox.ToWorkerConfig(),
		log,
		metrics.NewMetrics("nursing", "worker"),
	)
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, nil, log)

	health := setupHealthCheck(cfg.Worker.HealthPort, db, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := subscribeNotifier(ctx, cfg.Notify, broker, log); err != nil {
		log.Fatal(err, "Failed to subscribe notifier")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	go cleanup.Start(ctx)
	processor.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = health.Shutdown(shutdownCtx)
}
