package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"turfbook/internal/api"
	"turfbook/internal/booking"
	"turfbook/internal/bot"
	"turfbook/internal/config"
	"turfbook/internal/events"
	"turfbook/internal/journal"
	"turfbook/internal/metrics"
	"turfbook/internal/turfapi"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const reminderHour = 9

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	configPath := os.Getenv(config.EnvConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Telegram.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Booking.Timezone).Msg("invalid booking timezone")
	}

	botEnabled := cfg.Telegram.BotToken != "" && cfg.Telegram.BotToken != "YOUR_BOT_TOKEN_HERE"
	if !botEnabled && !cfg.HTTP.Enabled {
		logger.Fatal().Msg("nothing to run: set telegram.bot_token or enable http")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.PrometheusPort(), &logger)
	}

	ledger, err := journal.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open journal error")
	}
	defer ledger.Close()

	bus := events.NewEventBus()
	bus.OnError(func(ev events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Int64("event_id", ev.ID).Msg("event handler failed")
	})
	ledger.Subscribe(bus)

	client := turfapi.NewClient(turfapi.Options{
		BaseURL:       cfg.APIBaseURL(),
		Timeout:       cfg.APITimeout(),
		RatePerSecond: cfg.API.RatePerSecond,
		Burst:         cfg.API.Burst,
	}).WithLogger(logger)

	var rdb *redis.Client
	if ttl := cfg.CacheTTL(); ttl > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, ttl)
	}

	switch {
	case cfg.API.AdminToken != "":
		client.SetToken(cfg.API.AdminToken)
	case cfg.API.AdminUsername != "":
		authCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout())
		if err := client.Authenticate(authCtx, cfg.API.AdminUsername, cfg.API.AdminPassword); err != nil {
			logger.Warn().Err(err).Msg("admin authentication failed; manager commands will be rejected")
		}
		cancel()
	}

	newCoordinator := func(owner int64) *booking.Coordinator {
		return booking.NewCoordinator(client,
			booking.WithLogger(logger),
			booking.WithPublisher(bus),
			booking.WithOwner(owner),
			booking.WithRollbackTimeout(cfg.RollbackTimeout()),
			booking.WithClock(func() time.Time { return time.Now().In(loc) }),
		)
	}

	checks := []api.ReadyCheck{
		{Name: "journal", Check: ledger.PingContext},
		{Name: "remote api", Check: client.HealthCheck},
	}
	if rdb != nil {
		checks = append(checks, api.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	go startHealthServer(ctx, cfg.HealthCheckPort(), checks, &logger)

	backup := journal.NewBackupService(ledger, journal.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      cfg.BackupInterval(),
		Path:          cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, logger)
	go backup.Start(ctx)

	var wg sync.WaitGroup

	if cfg.HTTP.Enabled {
		webSessions := booking.NewSessionStore("web", cfg.SessionTimeout(), func(string) *booking.Coordinator {
			return newCoordinator(0)
		})
		go webSessions.Run(ctx, cfg.SessionCleanupInterval())

		server := api.NewHTTPServer(webSessions, api.Options{
			AllowedOrigins:    cfg.HTTP.AllowedOrigins,
			CookieSecure:      cfg.HTTP.CookieSecure,
			RequestsPerSecond: cfg.HTTPRateLimit(),
			Location:          loc,
			Checks:            checks,
		}, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx, fmt.Sprintf(":%d", cfg.HTTPPort())); err != nil {
				logger.Error().Err(err).Msg("web API server error")
				stop()
			}
		}()
	}

	if botEnabled {
		tgSessions := booking.NewSessionStore("telegram", cfg.SessionTimeout(), func(key string) *booking.Coordinator {
			return newCoordinator(bot.OwnerFromKey(key))
		})
		go tgSessions.Run(ctx, cfg.SessionCleanupInterval())

		b, err := bot.New(cfg.Telegram.BotToken, tgSessions, client, ledger, bus, bot.Options{
			Managers:  cfg.Managers,
			Location:  loc,
			DaysAhead: cfg.DaysAhead(),
			Debug:     cfg.Telegram.Debug,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create bot error")
		}

		if watcher, err := config.NewWatcher(configPath, 30*time.Second, logger); err != nil {
			logger.Warn().Err(err).Msg("config watch disabled")
		} else {
			go watcher.Run(ctx, func(c *config.Config) {
				b.SetManagers(c.Managers)
			})
		}

		b.StartReminders(ctx, reminderHour)

		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Start(ctx)
		}()
	}

	logger.Info().Bool("bot", botEnabled).Bool("http", cfg.HTTP.Enabled).Msg("turfbook started")
	wg.Wait()
	logger.Info().Msg("turfbook stopped")
}

func startHealthServer(ctx context.Context, port int, checks []api.ReadyCheck, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		for _, c := range checks {
			if err := c.Check(ctxPing); err != nil {
				http.Error(w, c.Name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
