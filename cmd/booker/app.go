package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"firmament/internal/availability"
	"firmament/internal/bot"
	"firmament/internal/booking"
	"firmament/internal/config"
	"firmament/internal/crmapi"
	"firmament/internal/events"
	"firmament/internal/payment"
	"firmament/internal/session"
)

// app holds the wiring shared by all commands.
type app struct {
	cfg      *config.Config
	catalog  atomic.Pointer[config.Catalog]
	loc      *time.Location
	logger   *zerolog.Logger
	bus      *events.Bus
	rdb      *redis.Client
	session  *session.Session
	client   *crmapi.Client
	payments payment.Provider
}

func newApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	catalog, err := config.LoadCatalog(cfg.Booking.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a := &app{cfg: cfg, loc: loc, logger: logger, bus: events.NewBus()}
	a.catalog.Store(catalog)

	if cfg.Redis.Address != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}

	var store session.Store
	switch cfg.Session.Store {
	case "redis":
		store = session.NewRedisStore(a.rdb, cfg.Session.RedisKey)
	default:
		store = session.NewFileStore(cfg.Session.Path)
	}
	a.session = session.New(store, a.bus, logger)
	if err := a.session.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to load session")
	}
	a.bus.Subscribe(events.TypeSessionCleared, func(events.Event) {
		logger.Info().Msg("admin session cleared")
	})

	a.client = crmapi.New(cfg.API.BaseURL,
		crmapi.WithTimeout(cfg.Timeout()),
		crmapi.WithSession(a.session),
		crmapi.WithRateLimit(cfg.API.RatePerSecond, cfg.API.Burst),
		crmapi.WithLogger(logger),
	)
	if a.rdb != nil {
		a.client.UseRedisCache(a.rdb, cfg.CacheTTL())
	}

	if cfg.Stripe.PublishableKey != "" {
		a.payments = payment.NewStripe(cfg.Stripe.PublishableKey, cfg.Stripe.ReturnURL, nil)
	}
	return a, nil
}

// newSession builds an isolated booking wizard with its own bus.
func (a *app) newSession() *bot.Session {
	catalog := a.catalog.Load()
	bus := events.NewBus()
	cache := availability.NewCache(a.client, a.loc, a.logger)
	w := booking.NewWizard(a.client, cache, bus, booking.Options{
		Location:          a.loc,
		Prices:            catalog.Prices,
		ConsultationTypes: catalog.ConsultationTypes,
		DefaultCurrency:   a.cfg.DefaultCurrency(),
	}, a.logger)
	return &bot.Session{Wizard: w, Notices: events.NewCollector(bus)}
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
