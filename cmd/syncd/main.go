// Package main runs the BrightCRM offline sync daemon: it opens the local
// store, registers the bundled CRM entity handlers, starts the background
// synchronizer and retention sweeper, and serves the websocket event feed plus
// a small operational HTTP surface on localhost.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brightcrm/backend/internal/crm"
	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/logging"
	"github.com/brightcrm/backend/internal/notify"
	"github.com/brightcrm/backend/internal/sync"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	var (
		dataDir      = flag.String("data", envOr("DB_PATH", "./data"), "data directory for the sqlite store")
		addr         = flag.String("addr", envOr("SYNC_ADDR", "localhost:8090"), "listen address for the operational HTTP surface")
		syncInterval = flag.Duration("sync-interval", 5*time.Second, "background synchronizer pass interval")
		debug        = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := logrus.InfoLevel
	if *debug {
		level = logrus.DebugLevel
	}
	logging.Init(os.Stdout, level)

	logging.Info("BrightCRM sync daemon starting", map[string]interface{}{
		"version":  Version,
		"data_dir": *dataDir,
		"addr":     *addr,
	})

	database, err := db.Open(*dataDir)
	if err != nil {
		logging.Error("Failed to open database", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database.DB); err != nil {
		logging.Error("Failed to apply migrations", err, nil)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)

	registry := sync.NewRegistry()
	if err := crm.RegisterAll(registry, repo); err != nil {
		logging.Error("Failed to register entity handlers", err, nil)
		os.Exit(1)
	}

	hub := notify.NewHub()
	defer hub.Close()

	cfg := sync.DefaultConfig()
	cfg.SyncInterval = *syncInterval
	service := sync.NewService(repo, registry, hub, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)
	defer service.Stop()

	mux := http.NewServeMux()
	mux.Handle("/ws/events", hub)
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"brightcrm-syncd"}`))
	})
	mux.HandleFunc("/api/sync/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.Status())
	})
	mux.HandleFunc("/api/sync/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		started := service.TriggerSync(r.Context())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"started": started})
	})

	server := &http.Server{Addr: *addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		logging.Error("HTTP server exited", err, nil)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
