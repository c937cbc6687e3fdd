package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/burakdemirel/analysishub/internal/application"
	appchat "github.com/burakdemirel/analysishub/internal/application/chat"
	"github.com/burakdemirel/analysishub/internal/application/poller"
	appscans "github.com/burakdemirel/analysishub/internal/application/scans"
	"github.com/burakdemirel/analysishub/internal/config"
	"github.com/burakdemirel/analysishub/internal/infra/backend"
	"github.com/burakdemirel/analysishub/internal/infra/httpserver"
	"github.com/burakdemirel/analysishub/internal/infra/memstore"
	"github.com/burakdemirel/analysishub/internal/logging"
	"github.com/burakdemirel/analysishub/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, os.Stdout)

	// analyzer backend client
	client := backend.New(cfg.Backend.BaseURL, cfg.BackendTimeout())

	// in-memory registry: single source of truth for the session
	registry := memstore.New()

	// AI commentary poller
	scheduler := &poller.Scheduler{
		Registry:  registry,
		Backend:   client,
		Logger:    logger,
		Interval:  cfg.PollInterval(),
		MaxProbes: cfg.AI.MaxProbes,
	}

	scansSvc := &appscans.Service{
		Registry: registry,
		Backend:  client,
		Watcher:  scheduler,
		Clock:    application.SystemClock{},
		Logger:   logger,
	}
	chatSvc := &appchat.Manager{
		Registry: registry,
		Backend:  client,
		Logger:   logger,
	}

	handler := httpserver.NewRouter(scansSvc, chatSvc, registry, httpserver.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Health: map[string]middleware.HealthChecker{
			"backend": &middleware.BackendHealthChecker{Pinger: client},
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      middleware.Logging(logger)(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	scheduler.CancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
