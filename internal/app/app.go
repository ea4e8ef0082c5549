package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"groundtruth/internal/config"
	"groundtruth/internal/logger"
	"groundtruth/internal/metrics"
	"groundtruth/internal/repository/sqlite"
	"groundtruth/internal/route"
	"groundtruth/internal/service/retention"
	"groundtruth/internal/service/session"
	"groundtruth/internal/service/validation"
	"groundtruth/internal/service/websocket"
)

type App struct {
	config           *config.Config
	logger           *logger.Logger
	db               *sqlite.DB
	hubService       *websocket.HubService
	retentionService *retention.RetentionService
	server           *http.Server
}

func NewApp() (*App, error) {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	policy, err := validation.ParseManualBoxPolicy(cfg.ManualBoxPolicy)
	if err != nil {
		log.Close()
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}

	m := metrics.New()
	repo := sqlite.NewSessionRepository(db)
	hub := websocket.NewHubService(log, m)
	engine := validation.NewEngine(policy, log)
	svc := session.NewService(repo, engine, hub, m, log, cfg.MaxImagesPerSession)

	router := route.SetupRoutes(svc, hub, m, cfg, log)

	return &App{
		config:           cfg,
		logger:           log,
		db:               db,
		hubService:       hub,
		retentionService: retention.NewRetentionService(cfg, repo, log, m),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves HTTP until Shutdown is called.
func (a *App) Run() error {
	// Start background services
	go a.hubService.Run()
	go a.retentionService.Run()

	a.logger.Info("Ground truth server listening on :%d", a.config.Port)
	a.logger.Info("Database: %s", a.config.DatabasePath)
	a.logger.Info("Manual boxes: %s, images per session: %d", a.config.ManualBoxPolicy, a.config.MaxImagesPerSession)
	if a.retentionService.Enabled() {
		a.logger.Info("Sessions expire after %d hours idle", a.config.SessionRetentionHours)
	}

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and the background services.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)

	a.retentionService.Stop()
	a.hubService.Stop()
	if dbErr := a.db.Close(); dbErr != nil && err == nil {
		err = dbErr
	}
	a.logger.Info("Server stopped")
	a.logger.Close()
	return err
}
