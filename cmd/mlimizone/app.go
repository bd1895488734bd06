package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/akirachix/mlimizone-backend/internal/config"
	"github.com/akirachix/mlimizone-backend/internal/gateway"
	"github.com/akirachix/mlimizone-backend/internal/gazetteer"
	"github.com/akirachix/mlimizone-backend/internal/messaging"
	"github.com/akirachix/mlimizone-backend/internal/messaging/gochannel"
	"github.com/akirachix/mlimizone-backend/internal/messaging/kafka"
	"github.com/akirachix/mlimizone-backend/internal/notify"
	"github.com/akirachix/mlimizone-backend/internal/repository"
	"github.com/akirachix/mlimizone-backend/internal/repository/memory"
	"github.com/akirachix/mlimizone-backend/internal/repository/postgres"
	"github.com/akirachix/mlimizone-backend/internal/service"
	"github.com/akirachix/mlimizone-backend/internal/session"
	"github.com/akirachix/mlimizone-backend/internal/ussd"
)

const connectTimeout = time.Minute

// broker is a transport that both publishes and consumes.
type broker interface {
	messaging.Publisher
	messaging.Subscriber
	Close() error
}

// app holds the wired dependencies of one process.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	repos    repository.Store
	sessions session.Store
	broker   broker
	// callbacks carries queued gateway callbacks. In process it is a
	// persistent bus so callbacks accepted before the consumer subscribes are kept.
	callbacks broker

	accounts *service.AccountService
	market   *service.MarketService
	payments *service.PaymentService
	engine   *ussd.Engine

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	// --- Storage ---
	repos, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	a.repos = repos
	if err := repos.Catalog.SeedCrops(ctx, repository.DefaultCrops); err != nil {
		return fmt.Errorf("failed to seed crops: %w", err)
	}

	districts := gazetteer.Default()
	if cfg.GazetteerFile != "" {
		if districts, err = gazetteer.Load(cfg.GazetteerFile); err != nil {
			return err
		}
	}

	// --- Sessions ---
	switch cfg.SessionBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		_, err := retry(ctx, "redis", func() (struct{}, error) {
			return struct{}{}, rdb.Ping(ctx).Err()
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.sessions = session.NewRedisStore(rdb, cfg.SessionTTL)
	default:
		a.sessions = session.NewMemoryStore(cfg.SessionTTL)
	}

	// --- Messaging ---
	switch cfg.MessagingBackend {
	case "kafka":
		a.broker = kafka.NewKafkaBroker(cfg.KafkaBrokers)
	default:
		a.broker = gochannel.NewBus(slog.Default(), false)
	}
	a.closers = append(a.closers, a.broker.Close)
	a.callbacks = a.broker
	if cfg.CallbackQueue && cfg.MessagingBackend != "kafka" {
		bus := gochannel.NewBus(slog.Default(), true)
		a.closers = append(a.closers, bus.Close)
		a.callbacks = bus
	}

	// --- Outbound ---
	var provider notify.Provider = notify.LogProvider{}
	if cfg.SMS.Provider == "smsleopard" {
		provider = notify.NewSMSLeopard(notify.SMSLeopardConfig{
			URL:       cfg.SMS.URL,
			APIKey:    cfg.SMS.APIKey,
			APISecret: cfg.SMS.APISecret,
			Source:    cfg.SMS.Source,
			Timeout:   cfg.SMS.Timeout,
		})
	}
	notifier := notify.NewDispatcher(provider, repos.SMSLogs, cfg.SMS.RatePerSecond)
	a.closers = append(a.closers, notifier.Close)

	var gw gateway.Client = &gateway.Sandbox{}
	if cfg.GatewayMode == "daraja" {
		d, err := gateway.NewDaraja(gateway.DarajaConfig{
			BaseURL:        cfg.Daraja.BaseURL,
			ConsumerKey:    cfg.Daraja.ConsumerKey,
			ConsumerSecret: cfg.Daraja.ConsumerSecret,
			ShortCode:      cfg.Daraja.ShortCode,
			PassKey:        cfg.Daraja.PassKey,
			CallbackURL:    cfg.Daraja.CallbackURL,
			Timeout:        cfg.Daraja.Timeout,
		})
		if err != nil {
			return err
		}
		gw = d
	}

	// domain events also land in the event log when running on Postgres
	var events messaging.Publisher = a.broker
	if a.db != nil {
		events = messaging.Tee(postgres.NewEventLog(a.db), a.broker)
	}

	// --- Services ---
	a.accounts = service.NewAccountService(repos.Accounts, repos.Orders, districts, notifier, events)
	a.market = service.NewMarketService(repos.Catalog, repos.Listings, repos.Orders, districts, notifier, events)
	a.payments = service.NewPaymentService(repos.Orders, repos.Payments, gw, notifier, events)
	a.engine = ussd.NewEngine(a.sessions, a.accounts, a.market, a.payments)

	slog.Info("Application wired",
		"storage", cfg.StorageBackend,
		"sessions", cfg.SessionBackend,
		"messaging", cfg.MessagingBackend,
		"gateway", cfg.GatewayMode,
		"sms", cfg.SMS.Provider,
	)
	return nil
}

func (a *app) openStorage(ctx context.Context) (repository.Store, error) {
	if a.cfg.StorageBackend != "postgres" {
		return memory.NewStore().Repositories(), nil
	}
	db, err := openDB(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return repository.Store{}, err
	}
	a.closers = append(a.closers, db.Close)
	a.db = db
	return postgres.NewStore(db), nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Failed to close resource", "err", err)
		}
	}
	a.closers = nil
}

// openDB connects and migrates, retrying while the database comes up.
func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := retry(ctx, "postgres", func() (*sql.DB, error) {
		return postgres.InitDB(ctx, dsn)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	return db, nil
}

func retry[T any](ctx context.Context, what string, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Dependency not ready, retrying", "dependency", what, "in", next, "err", err)
		}),
	)
}

var errPostgresOnly = errors.New("this command needs storage_backend=postgres")
