package main

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rpm-software-management/libdnf-sub006/internal/api"
	"github.com/rpm-software-management/libdnf-sub006/internal/app"
	"github.com/rpm-software-management/libdnf-sub006/internal/config"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Open module state, metadata storage and the module container
	session, err := app.Open(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to open module session", zap.Error(err))
	}
	defer session.Close()
	for _, e := range multierr.Errors(session.LoadErrors) {
		log.Warn("Module metadata problem", zap.Error(e))
	}

	// Initialize Router
	router := mux.NewRouter()

	// Register API routes
	api.RegisterRoutes(router, api.NewHandlers(session, log), cfg.AuthToken)

	// Start Server
	listenAddr := ":" + cfg.ServerPort
	log.Info("Starting server", zap.String("addr", listenAddr), zap.Int("repos", len(session.Repos)))
	if err := http.ListenAndServe(listenAddr, router); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
