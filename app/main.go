package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leadflow/app/api"
	"leadflow/app/cfg"
	"leadflow/app/database"
	"leadflow/app/discovery"
	"leadflow/app/llm"
	"leadflow/app/notify"
	"leadflow/app/pipeline"
	"leadflow/app/ratelimit"
	"leadflow/app/telegram"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting leadflow", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DatabasePath, "migration_version", version, "dirty", dirty)

	channelRepo := database.NewChannelRepository(db)
	messageRepo := database.NewMessageRepository(db)
	leadRepo := database.NewLeadRepository(db)
	budgetRepo := database.NewBudgetRepository(db)

	llmClient := llm.NewClient(appCfg.OpenRouterAPIKey, appCfg.LLMModel, appCfg.LLMFallbackModel,
		appCfg.LLMTemperature, appCfg.LLMMaxTokens)
	gateway := telegram.NewGatewayClient(appCfg.GatewayURL)
	notifier := notify.NewNotifier(appCfg.NotifyBotToken, appCfg.NotifyChatID)

	queue := telegram.NewQueue()
	collector := telegram.NewCollector(gateway, queue)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitored, err := setupChannels(rootCtx, appCfg, gateway, channelRepo)
	if err != nil {
		slog.Error("Failed to set up channels", "error", err)
		os.Exit(1)
	}
	collector.Subscribe(monitored)

	var discoverer pipeline.Discoverer
	if appCfg.DiscoveryEnabled {
		engine := discovery.NewEngine(gateway, channelRepo, collector, llmClient, discovery.Config{
			SearchKeywords:  appCfg.SearchKeywords,
			TargetStacks:    appCfg.TargetStacks,
			SearchLimit:     appCfg.DiscoverySearchLimit,
			MaxChannels:     appCfg.DiscoveryMaxChannels,
			Backfill:        appCfg.DiscoveryBackfill,
			KeywordLangs:    appCfg.DiscoveryKeywordLangs,
			KeywordsPerLang: appCfg.DiscoveryKeywordsPerLang,
			ScanForwards:    appCfg.DiscoveryScanForwards,
			ScanDescs:       appCfg.DiscoveryScanDescs,
			RejectedTTL:     time.Duration(appCfg.DiscoveryRejectedTTL) * time.Hour,
		})
		if err := engine.Init(rootCtx); err != nil {
			slog.Error("Failed to initialize discovery", "error", err)
			os.Exit(1)
		}

		// One keyword pass before the loops start, so a fresh install has
		// channels to monitor right away.
		found := engine.SearchByKeywords(rootCtx)
		slog.Info("Startup discovery pass complete", "new_channels", found)

		discoverer = engine
	}

	// Backfill recent history from every monitored channel.
	for _, chatID := range monitored {
		if err := collector.Backfill(rootCtx, chatID, appCfg.BatchSize); err != nil {
			slog.Warn("Startup backfill failed", "chat_id", chatID, "error", err)
		}
	}

	limiter := ratelimit.NewLimiter(
		time.Duration(appCfg.MinSendDelay)*time.Second,
		time.Duration(appCfg.MaxSendDelay)*time.Second,
		ratelimit.Warmup{
			Week1:     appCfg.WarmupWeek1,
			Week2:     appCfg.WarmupWeek2,
			Week3:     appCfg.WarmupWeek3,
			Week4Plus: appCfg.WarmupWeek4Plus,
		},
		time.Now().UTC(),
	)

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Channels:  channelRepo,
		Messages:  messageRepo,
		Leads:     leadRepo,
		Budget:    budgetRepo,
		LLM:       llmClient,
		Client:    gateway,
		Collector: collector,
		Notifier:  notifier,
		Discovery: discoverer,
		Limiter:   limiter,
		Retry:     telegram.NewRetryPolicy(3, 10*time.Second),
		Queue:     queue,
	}, pipeline.Config{
		CycleInterval:      time.Duration(appCfg.CycleInterval) * time.Second,
		ReplyCheckInterval: time.Duration(appCfg.ReplyCheckInterval) * time.Second,
		NoReplyTTL:         time.Duration(appCfg.NoReplyTTLHours) * time.Hour,
		JanitorInterval:    time.Duration(appCfg.JanitorInterval) * time.Second,
		SummaryHour:        appCfg.SummaryHour,
		DiscoveryInterval:  time.Duration(appCfg.DiscoveryInterval) * time.Second,
		MinRelevance:       appCfg.MinRelevance,
		TargetStacks:       appCfg.TargetStacks,
	})

	apiHandler := api.NewHandler(channelRepo, leadRepo, orchestrator, appCfg.Version)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(apiHandler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 3)

	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	go func() {
		if err := collector.Run(rootCtx); err != nil && rootCtx.Err() == nil {
			errChan <- err
		}
	}()
	go func() {
		if err := orchestrator.Run(rootCtx); err != nil && rootCtx.Err() == nil {
			errChan <- err
		}
	}()

	slog.Info("Leadflow started", "monitored_channels", len(monitored), "discovery", appCfg.DiscoveryEnabled)

	select {
	case <-rootCtx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errChan:
		slog.Error("Fatal error", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// setupChannels resolves the YAML seed channels, upserts them, and returns
// the telegram ids of every active channel to monitor.
func setupChannels(ctx context.Context, appCfg *cfg.Cfg, gateway telegram.Client,
	channelRepo database.ChannelRepository) ([]int64, error) {
	for _, seed := range appCfg.SeedChannels {
		username := strings.TrimPrefix(seed, "@")
		info, err := gateway.Resolve(ctx, username)
		if err != nil {
			slog.Warn("Failed to resolve seed channel", "username", username, "error", err)
			continue
		}

		if _, err := channelRepo.Upsert(database.Channel{
			TelegramID: info.ID,
			Username:   info.Username,
			Title:      info.Title,
			IsActive:   true,
		}); err != nil {
			return nil, err
		}
		slog.Info("Registered seed channel", "username", info.Username, "telegram_id", info.ID)
	}

	active, err := channelRepo.GetActive()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(active))
	for _, channel := range active {
		if channel.TelegramID != 0 {
			ids = append(ids, channel.TelegramID)
		}
	}

	return ids, nil
}
