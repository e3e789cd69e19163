package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"firmament/internal/audit"
	"firmament/internal/bot"
	"firmament/internal/booking"
	"firmament/internal/config"
	"firmament/internal/events"
	"firmament/internal/metrics"
	"firmament/internal/schedule"
	"firmament/internal/session"
)

const (
	digestHour          = 8
	catalogPollInterval = 30 * time.Second
)

func runBot(ctx context.Context, a *app) error {
	cfg := a.cfg
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return fmt.Errorf("set telegram.bot_token in config")
	}

	adminBus := events.NewBus()
	opts := bot.Options{
		Admins:       cfg.Telegram.Admins,
		Services:     a.catalog.Load().Services,
		Location:     a.loc,
		AdminNotices: events.NewCollector(adminBus),
		Debug:        cfg.Telegram.Debug,
	}
	if err := a.session.Require(session.RoleAdmin); err != nil {
		a.logger.Warn().Err(err).Msg("no admin session, admin commands will fail until 'booker admin login'")
	}
	opts.Admin = schedule.NewEditor(a.client, adminBus, a.loc, a.logger)
	opts.Exporter = audit.NewExporter(a.client, a.loc, a.logger)

	b, err := bot.New(cfg.Telegram.BotToken, booking.NewHandler(a.payments), a.newSession, opts, a.logger)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	if path := cfg.Booking.CatalogPath; path != "" {
		err := config.WatchCatalog(ctx, path, catalogPollInterval, func(c *config.Catalog) {
			a.catalog.Store(c)
			b.SetServices(c.Services)
			a.logger.Info().Str("path", path).Int("services", len(c.Services)).Msg("catalog loaded")
		})
		if err != nil {
			a.logger.Warn().Err(err).Msg("catalog watch disabled")
		}
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, a, a.logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, a.logger)
	}

	b.StartDigest(ctx, digestHour)
	a.logger.Info().Msg("Booking bot started")
	b.Start(ctx)
	return nil
}

func startHealthServer(ctx context.Context, port int, a *app, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := a.client.HealthCheck(ctxPing); err != nil {
			http.Error(w, "api not ready", http.StatusServiceUnavailable)
			return
		}
		if a.rdb != nil {
			if err := a.rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, port, mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, port, mux, "metrics", logger)
}

func serve(ctx context.Context, port int, h http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
