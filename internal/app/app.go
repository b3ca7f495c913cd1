package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gmail-notion-relay/internal/config"
	"gmail-notion-relay/internal/database"
	"gmail-notion-relay/internal/dedupe"
	"gmail-notion-relay/internal/gmail"
	"gmail-notion-relay/internal/handler"
	"gmail-notion-relay/internal/mapping"
	"gmail-notion-relay/internal/metrics"
	"gmail-notion-relay/internal/notion"
	"gmail-notion-relay/internal/repository"
	"gmail-notion-relay/internal/router"
	"gmail-notion-relay/internal/service"
	"gmail-notion-relay/internal/transform"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Gmail to Notion relay")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	loc, err := cfg.Mapping.Location()
	if err != nil {
		return err
	}

	dbConn, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := repository.New(dbConn)

	m := metrics.NewMetrics(nil)
	if count, err := repo.CountEnabledMappings(); err == nil {
		m.EnabledMappings.Set(float64(count))
	}

	source, err := gmail.NewSource(context.Background(), &cfg.Gmail)
	if err != nil {
		return err
	}

	notionClient := notion.NewClient(&cfg.Notion)
	registry := mapping.NewRegistry(mapping.RegistryOptions{
		Engine:      transform.NewEngine(loc),
		StrictDates: cfg.Mapping.StrictDates,
		Users:       notionClient,
		Pages:       notionClient,
	})
	saver := service.NewSaveService(
		source,
		notionClient,
		repo,
		mapping.NewService(registry),
		dedupe.NewChecker(notionClient),
		m,
		cfg.Notion,
	)

	h := handler.NewHandlers(dbConn, repo, notionClient, registry, saver, source, m)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := source.Close(); err != nil {
		logrus.Errorf("Failed to close email source: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
