package components

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"careAlert/internal/api"
	"careAlert/internal/api/handlers/http/alerts"
	"careAlert/internal/api/handlers/http/system"
	"careAlert/internal/api/handlers/http/telephony"
	"careAlert/internal/config"
	"careAlert/internal/directory"
	"careAlert/internal/events"
	"careAlert/internal/metrics"
	"careAlert/internal/redis"
	"careAlert/internal/service"
	"careAlert/internal/storage/memory"
	"careAlert/internal/storage/postgres"
	"careAlert/internal/subscription"
	twilio "careAlert/internal/telephony"
	"careAlert/internal/workers"
	"careAlert/pkg/logger"
)

// alertBackend is what both storage backends provide to the core.
type alertBackend interface {
	service.AlertRepository
	subscription.Source
}

type userBackend interface {
	directory.Source
	directory.Upserter
}

type Components struct {
	logger     *slog.Logger
	HttpServer *api.Server
	Postgres   *postgres.Postgres
	Redis      *redis.Redis
	Hub        *subscription.Hub
	ChangeBus  *redis.ChangeBus
	Sender     *workers.NotificationSender
	Sweeper    *workers.StaleSweeper
	Events     io.Closer
	Metrics    *metrics.Metrics
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	c := &Components{logger: logger, Metrics: metrics.New()}

	var (
		alertRepo alertBackend
		users     userBackend
		store     workers.NotificationStore
		checks    []system.Check
	)
	switch cfg.Alerts.Store {
	case config.StorePostgres:
		logger.Info("Initializing Postgres")
		pg, err := postgres.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Error("Failed to init postgres", slog.Any("error", err))
			return nil, fmt.Errorf("failed to init postgres: %w", err)
		}
		c.Postgres = pg
		alertRepo, users, store = pg.Alerts, pg.Users, pg.Notifications
		checks = append(checks, system.Check{Name: "postgres", Ping: pg.Pool.Ping})
	default:
		logger.Info("Using in-memory alert store")
		alertRepo, users, store = memory.NewAlertRepository(), memory.NewDirectory(), memory.NewNotificationStore()
	}

	dir := directory.NewCached(users, cfg.Alerts.DirectoryTTL)
	if cfg.Alerts.SeedFile != "" {
		seed, err := directory.LoadSeed(cfg.Alerts.SeedFile)
		if err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to load directory seed: %w", err)
		}
		if err := directory.Seed(ctx, dir, seed); err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to seed directory: %w", err)
		}
		logger.Info("Directory seeded", slog.Int("users", len(seed)), slog.String("file", cfg.Alerts.SeedFile))
	}

	hub := subscription.NewHub(alertRepo, subscription.Options{
		RadiusMiles:    cfg.Alerts.RadiusMiles,
		ResyncInterval: time.Minute,
	}, c.Metrics, logger)
	c.Hub = hub

	var (
		sink    service.NotificationSink
		queue   workers.NotificationQueue
		changes service.ChangePublisher = hub
	)
	if cfg.Redis.Addr != "" {
		logger.Info("Initializing Redis")
		rdb, err := redis.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		c.Redis = rdb
		q := rdb.NotificationQueue()
		sink, queue = q, q
		// every instance learns about changes through the bus, including its own
		c.ChangeBus = rdb.ChangeBus()
		changes = c.ChangeBus
		checks = append(checks, system.Check{Name: "redis", Ping: rdb.Ping})
	} else {
		q := memory.NewNotificationQueue(1024)
		sink, queue = q, q
	}

	var publisher interface {
		service.EventPublisher
		io.Closer
	} = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		logger.Info("Initializing Kafka publisher", slog.String("topic", cfg.Kafka.Topic))
		publisher = events.NewKafkaPublisher(cfg.Kafka, logger)
	}
	c.Events = publisher

	relay := twilio.NewTwilio(cfg.Twilio, logger)

	alertStore := service.NewAlertStore(alertRepo, dir, changes, publisher, c.Metrics, logger)
	router := service.NewNotificationRouter(dir, sink, cfg.Alerts.RadiusMiles, c.Metrics, logger)
	lifecycle := service.NewAlertLifecycle(alertStore, dir, router, logger)
	srv := service.NewService(lifecycle, service.NewStatsService(alertStore), relay)

	if !cfg.Notifications.Disabled {
		c.Sender = workers.NewNotificationSender(queue, store, dir, alertRepo, relay, workers.SenderConfig{
			Workers:    cfg.Notifications.Workers,
			PopTimeout: cfg.Notifications.PopTimeout,
			MaxRetries: cfg.Notifications.MaxRetries,
		}, c.Metrics, logger)
	}
	if cfg.Sweeper.Enabled {
		c.Sweeper = workers.NewStaleSweeper(alertStore, workers.SweeperConfig{
			Schedule: cfg.Sweeper.Schedule,
			MaxAge:   cfg.Sweeper.MaxAge,
		}, logger)
	}

	handlers := api.Handlers{
		Alerts:    alerts.NewHandler(logger, srv.Alerts, srv.Stats, hub, dir),
		Telephony: telephony.NewHandler(logger, relay),
		System:    system.NewHandler(logger, relay, hub, checks...),
	}
	c.HttpServer = api.NewServer(ctx, cfg, logger, handlers, dir, c.Metrics)
	logger.Info("Initialized server")

	return c, nil
}

// RunBackground starts the hub, the change bus listener and the workers.
// They stop when ctx is done; wg tracks them.
func (c *Components) RunBackground(ctx context.Context, wg *sync.WaitGroup) {
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				c.logger.Error("background task failed", slog.String("task", name), slog.Any("error", err))
			}
		}()
	}

	spawn("hub", func(ctx context.Context) error {
		c.Hub.Run(ctx)
		return nil
	})
	if c.ChangeBus != nil {
		spawn("change_bus", func(ctx context.Context) error {
			return c.ChangeBus.Run(ctx, func(id uuid.UUID) { c.Hub.Notify(id) })
		})
	}
	if c.Sender != nil {
		spawn("notification_sender", func(ctx context.Context) error {
			c.Sender.Run(ctx)
			return nil
		})
	}
	if c.Sweeper != nil {
		spawn("stale_sweeper", c.Sweeper.Run)
	}
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Завершение работы компонентов началось")

	if c.Events != nil {
		if err := c.Events.Close(); err != nil {
			c.logger.Error("Event publisher close failed", slog.String("err", err.Error()))
		}
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("Redis close failed", slog.String("err", err.Error()))
		}
	}

	c.logger.Info("Все компоненты успешно завершили работу",
		slog.Duration("latency", time.Since(start)))
}
