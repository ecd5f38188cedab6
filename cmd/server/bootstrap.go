package main

import (
	"context"
	"time"

	"github.com/huangang/feedbackbot/internal/bot"
	"github.com/huangang/feedbackbot/internal/config"
	"github.com/huangang/feedbackbot/internal/middleware"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/services"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/internal/utils"
	"github.com/huangang/feedbackbot/pkg/logger"
)

const updateQueueSize = 256

// appServices holds everything main needs to serve and to shut down.
type appServices struct {
	client    *telegram.Client
	flows     *services.MemoryFlowStore
	queue     services.NotificationQueue
	worker    *services.Worker
	scheduler *services.MaintenanceScheduler
	analytics *services.AnalyticsService
	events    *services.EventService
	reports   *services.ReportService
	runner    *bot.Runner
	limiter   *middleware.RateLimiter
	pollDone  chan struct{}
}

// bootstrap opens the database and wires the services and the bot.
func bootstrap(ctx context.Context, cfg *config.Config) *appServices {
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default settings")
	}
	db := models.GetDB()
	services.InitSystemLogger(db)

	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:     cfg.Telegram.Token,
		BaseURL:   cfg.Telegram.APIBaseURL,
		SendRate:  cfg.Telegram.SendRate,
		SendBurst: cfg.Telegram.SendBurst,
	})
	if err != nil {
		logger.Fatalf("Failed to create Telegram client: %v", err)
	}
	me, err := client.GetMe(ctx)
	if err != nil {
		logger.Fatalf("Telegram getMe failed: %v", err)
	}
	logger.Info().Str("bot", me.Username).Int64("work_group", cfg.Telegram.WorkGroupID).Msg("Connected to Telegram")

	sender := telegram.NewSender(client)
	dispatcher := services.NewDispatcher(sender)

	// Notifications go through Redis when enabled, inline otherwise.
	queue := services.InitNotificationQueue(cfg)
	dispatcher.UseQueue(queue)
	if syncQueue, ok := queue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(dispatcher.Deliver)
	}
	var worker *services.Worker
	if queue.IsAsync() {
		worker = services.InitWorker(&cfg.Redis)
		worker.SetProcessor(dispatcher.Deliver)
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start notification worker: %v", err)
		}
	}

	location, err := time.LoadLocation(cfg.Bot.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.Bot.Timezone).Msg("Unknown timezone, using UTC")
		location = time.UTC
	}
	flowTTL := time.Duration(cfg.Bot.FlowTTLMinutes) * time.Minute
	flows := services.NewMemoryFlowStore(flowTTL)
	scheduler := services.NewMaintenanceScheduler(db, flows, flowTTL, cfg.Bot.LogRetentionDays, location)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	workGroup := cfg.Telegram.WorkGroupID
	analytics := services.NewAnalyticsService(db)
	events := services.NewEventService(db, sender, dispatcher, workGroup)
	reports := services.NewReportService(analytics, cfg.Bot.ReportFontPath)

	var tokens bot.TokenIssuer
	if cfg.JWT.Secret != "" {
		utils.SetJWTSecret(cfg.JWT.Secret)
		tokens = func(u *models.User) (string, error) {
			return utils.GenerateToken(u.ID, u.Username, u.Role, cfg.JWT.ExpireHour)
		}
	}

	b := bot.New(bot.Deps{
		Messenger: sender,
		Flows:     flows,
		Access:    services.NewAccessService(db, cfg.Telegram.InitialAdminID),
		Events:    events,
		Feedback:  services.NewFeedbackService(db, sender, workGroup),
		Ratings:   services.NewRatingService(db),
		Users:     services.NewUserService(db, dispatcher),
		Settings:  services.NewSettingService(db),
		Analytics: analytics,
		Reports:   reports,
		Tokens:    tokens,
		TokenTTL:  cfg.JWT.ExpireHour,
	}, workGroup)

	runner := bot.NewRunner(cfg.Bot.Workers, updateQueueSize, b.HandleUpdate)
	// Updates drained during shutdown still need a live context.
	runner.Start(context.WithoutCancel(ctx))

	return &appServices{
		client:    client,
		flows:     flows,
		queue:     queue,
		worker:    worker,
		scheduler: scheduler,
		analytics: analytics,
		events:    events,
		reports:   reports,
		runner:    runner,
	}
}

// start connects the update source: long polling, or a webhook registration.
func (s *appServices) start(ctx context.Context, cfg *config.Config) error {
	if cfg.Telegram.Mode == config.ModeWebhook {
		if err := s.client.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			return err
		}
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("Webhook registered")
		return nil
	}

	if err := s.client.DeleteWebhook(ctx); err != nil {
		return err
	}
	// A full queue stalls polling instead of dropping the update.
	poller := telegram.NewPoller(s.client, cfg.Telegram.PollTimeout, func(u telegram.Update) {
		if !s.runner.SubmitWait(ctx, u) {
			logger.Warn().Int64("update_id", u.UpdateID).Msg("Update not queued, shutting down")
		}
	})
	s.pollDone = make(chan struct{})
	go func() {
		defer close(s.pollDone)
		if err := poller.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Polling stopped")
		}
	}()
	return nil
}

// shutdown stops intake first, then drains handlers, then background jobs.
func (s *appServices) shutdown() {
	if s.pollDone != nil {
		<-s.pollDone
	}
	s.runner.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.scheduler.Stop()
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.queue != nil {
		s.queue.Close()
	}
	if sqlDB, err := models.GetDB().DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info().Msg("All services stopped")
}
