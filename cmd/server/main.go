package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Yukky887/ReminderBot/internal/clock"
	"github.com/Yukky887/ReminderBot/internal/config"
	"github.com/Yukky887/ReminderBot/internal/database"
	"github.com/Yukky887/ReminderBot/internal/handler"
	"github.com/Yukky887/ReminderBot/internal/jobs"
	"github.com/Yukky887/ReminderBot/internal/lifecycle"
	"github.com/Yukky887/ReminderBot/internal/metrics"
	"github.com/Yukky887/ReminderBot/internal/middleware"
	"github.com/Yukky887/ReminderBot/internal/model"
	"github.com/Yukky887/ReminderBot/internal/notify"
	"github.com/Yukky887/ReminderBot/internal/redis"
	"github.com/Yukky887/ReminderBot/internal/repository"
	"github.com/Yukky887/ReminderBot/internal/service"
	"github.com/Yukky887/ReminderBot/internal/sse"
	"github.com/Yukky887/ReminderBot/internal/telegram"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// A missing .env is fine; the environment may be set by the host.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectWithRetry(ctx, cfg.DatabaseURL, config.DBConnectAttempts, config.DBConnectBackoff)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	tg, err := telegram.NewClient(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram client")
	}

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	deps := service.Deps{
		DB:            db,
		Accounts:      repository.NewAccountRepository(db.DB),
		Subscriptions: repository.NewSubscriptionRepository(db.DB),
		Claims:        repository.NewClaimRepository(db.DB),
		Notifier:      notify.WithTimeout(tg, cfg.NotifyTimeout),
		Events:        broker,
		Metrics:       m,
		Clock:         clock.System(),
		Policy:        policyFromConfig(cfg),
		AdminID:       cfg.AdminID,
	}

	accountService := service.NewAccountService(deps)
	claimService := service.NewClaimService(deps)
	subscriptionService := service.NewSubscriptionService(deps)
	reminderService := service.NewReminderService(deps)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	reminderJob := jobs.NewReminderJob(reminderService, redisClient, m, cfg.TickInterval, cfg.TickConcurrency)
	if err := reminderJob.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start reminder scheduler")
	}

	botHandler := handler.NewBotHandler(
		accountService, claimService, subscriptionService, rateLimiter, tg, cfg.AdminID, cfg.Location(),
	)
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		tg.Run(ctx, botHandler)
	}()

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewBodyLimitMiddleware(0).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		pingCtx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if cfg.AdminAPIEnabled() {
		adminHandler := handler.NewAdminHandler(
			accountService, claimService, subscriptionService, handler.NewEventsHandler(broker), cfg.AdminID,
		)
		r.Route("/admin/api", func(r chi.Router) {
			r.Use(middleware.NewSecurityHeadersMiddleware(cfg.IsProduction()).Handler)
			r.Use(middleware.NewIPRateLimitMiddleware(rateLimiter, config.AdminAPIRateLimit, config.AdminAPIRateWindow).Handler)
			r.Use(middleware.NewAdminKeyMiddleware(cfg.AdminAPIKeyHash).Handler)
			r.Mount("/", adminHandler.Routes())
		})
		log.Info().Msg("admin api enabled")
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0, // the admin event stream is long lived
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := reminderJob.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("reminder scheduler did not stop in time")
	}

	select {
	case <-botDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("telegram updates still in flight at shutdown")
	}

	log.Info().Msg("stopped")
}

func policyFromConfig(cfg *config.Config) lifecycle.Policy {
	statuses := make([]model.SubscriptionStatus, 0, len(cfg.ClaimStatuses))
	for _, s := range cfg.ClaimStatuses {
		statuses = append(statuses, model.SubscriptionStatus(s))
	}
	return lifecycle.Policy{
		Horizons:      cfg.Horizons,
		PeriodDays:    cfg.PeriodDays,
		ClaimStatuses: statuses,
		Location:      cfg.Location(),
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
