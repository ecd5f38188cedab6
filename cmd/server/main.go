package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/feedbackbot/internal/config"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/pkg/logger"
	flag "github.com/spf13/pflag"
)

func main() {
	configPath := flag.StringP("config", "c", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	migrateOnly := flag.Bool("migrate-only", false, "migrate the database and exit")
	initConfig := flag.Bool("init-config", false, "write a config file with default values and exit")
	flag.Parse()

	if *initConfig {
		path := *configPath
		if path == "" {
			path = "config.yaml"
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default config written to %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logger.Init(cfg.Log.Level)

	if *migrateOnly {
		if err := models.InitDB(&cfg.Database); err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		if err := models.AutoMigrate(); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
		logger.Info().Str("driver", cfg.Database.Driver).Msg("Database migrated")
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := bootstrap(ctx, cfg)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	registerRoutes(r, cfg, svc)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Str("mode", cfg.Telegram.Mode).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	if err := svc.start(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("Update source failed")
		stop()
	}

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	svc.shutdown()
	logger.Info().Msg("Bye")
}
