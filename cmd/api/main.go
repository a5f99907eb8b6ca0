package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwalitptl/nursing-api/internal/app"
	"github.com/jwalitptl/nursing-api/internal/config"
	"github.com/jwalitptl/nursing-api/internal/handler/health"
	"github.com/jwalitptl/nursing-api/internal/repository/postgres"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.FromSettings("info", "json", os.Stderr).Fatal(err, "failed to load configuration")
	}

	log := logger.FromSettings(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	a, err := app.New(app.Options{
		Config:  cfg,
		Repos:   app.PostgresRepositories(db),
		Logger:  log,
		Metrics: metrics.NewMetrics("nursing", "api"),
		Pingers: map[string]health.Pinger{"database": db},
	})
	if err != nil {
		log.Fatal(err, "failed to assemble api")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
