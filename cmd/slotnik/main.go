package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotnik/internal/api"
	"slotnik/internal/calendar"
	"slotnik/internal/config"
	"slotnik/internal/database"
	"slotnik/internal/domain"
	"slotnik/internal/events"
	"slotnik/internal/export"
	"slotnik/internal/google"
	"slotnik/internal/logging"
	"slotnik/internal/metrics"
	"slotnik/internal/models"
	"slotnik/internal/notify"
	"slotnik/internal/repository"
	"slotnik/internal/service"
	"slotnik/internal/session"
	"slotnik/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}
	policy := calendar.Policy{
		OpenHour:   cfg.Booking.OpenHour,
		CloseHour:  cfg.Booking.CloseHour,
		BreakHours: cfg.Booking.BreakHours,
		SlotMinute: cfg.Booking.SlotMinute,
		Location:   loc,
	}
	limits := database.Limits{
		CancelCutoff:       cfg.Booking.CancelCutoff(),
		MonthlyCancelLimit: cfg.Booking.MonthlyCancelLimit,
	}

	db, err := database.NewDB(cfg.Database.Path, policy, limits, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profileCache, redisClient := initProfileCache(ctx, cfg, &logger)

	var notifier domain.Notifier
	if cfg.Telegram.Enabled {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("telegram init: %w", err)
		}
		notifier = notify.NewTelegramNotifier(bot, cfg.Telegram.AdminChatID, loc, &logger)
		logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier enabled")
	}

	var sheetsWorker *worker.SheetsWorker
	if cfg.Google.CredentialsFile != "" && cfg.Google.BookingsSpreadsheetID != "" {
		sheetsService, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID, loc, &logger)
		if err != nil {
			return err
		}
		if err := sheetsService.TestConnection(ctx); err != nil {
			logger.Warn().Err(err).Msg("sheets connection test failed, sync may not work")
		}
		retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		sheetsWorker = worker.NewSheetsWorker(db, sheetsService, redisClient, retryPolicy, &logger)
		go sheetsWorker.Start(ctx)
	}

	eventBus := events.NewEventBus()
	subscribeBookingEvents(eventBus, &logger)

	sessionProvider := session.NewProvider(db, &logger)
	userService := service.NewUserService(db, profileCache, cfg.Admins, &logger)
	if err := userService.ReconcileAdmins(ctx); err != nil {
		return fmt.Errorf("admin reconcile: %w", err)
	}

	var syncWorker domain.SyncWorker
	if sheetsWorker != nil {
		syncWorker = sheetsWorker
	}
	bookingService := service.NewBookingService(
		db, db, sessionProvider, profileCache, eventBus, syncWorker, notifier,
		policy, limits, &logger,
	)

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, bookingService, userService, loc, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	if cfg.Exports.Enabled {
		exporter := export.NewExporter(db, policy, cfg.Exports.Path, &logger)
		go exporter.RunDaily(ctx, cfg.Exports.HorizonDays)
	}

	if cfg.Monitoring.PrometheusEnabled {
		go serveMonitoring(cfg, &logger)
	}

	logger.Info().
		Str("db", cfg.Database.Path).
		Str("timezone", cfg.Booking.Timezone).
		Msg("slotnik started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}

// initProfileCache wires the display-hint cache: redis with in-memory
// failover when configured, plain memory otherwise.
func initProfileCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.ProfileCache, *redis.Client) {
	memory := repository.NewMemoryProfileCache(models.DefaultRedisTTL * time.Second)
	if cfg.Redis.Address == "" {
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup, degrading to memory cache")
	}

	redisCache := repository.NewRedisProfileCache(client, models.DefaultRedisTTL*time.Second)
	return repository.NewFailoverProfileCache(redisCache, memory, logger), client
}

func subscribeBookingEvents(bus *events.EventBus, logger *zerolog.Logger) {
	logEvent := func(event *events.Event) error {
		logger.Info().
			Str("event", event.Type).
			RawJSON("payload", event.Payload).
			Msg("booking event")
		return nil
	}
	bus.Subscribe(events.EventBookingCreated, logEvent)
	bus.Subscribe(events.EventBookingCancelled, logEvent)
	bus.Subscribe(events.EventSlotBlocked, logEvent)
	bus.Subscribe(events.EventSlotUnblocked, logEvent)
}

func serveMonitoring(cfg *config.Config, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
	logger.Info().Str("addr", addr).Msg("monitoring endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("monitoring server error")
	}
}
