package redis

import (
	"context"
	"log/slog"
	"time"

	"careAlert/internal/config"
	"careAlert/pkg/e"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Redis holds the shared client behind the notification queue and the
// alert change bus.
type Redis struct {
	Client *redis.Client
	cfg    config.RedisConfig
	logger *slog.Logger
}

func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Redis, error) {
	const op = "redis.NewRedis"

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: connectTimeout,
	})

	r := &Redis{Client: client, cfg: cfg, logger: logger}
	if err := r.Ping(ctx); err != nil {
		logger.Error("redis unreachable",
			slog.String("op", op),
			slog.String("addr", cfg.Addr),
			slog.Any("error", err),
		)
		if cerr := client.Close(); cerr != nil {
			logger.Warn("redis close after failed ping", slog.Any("error", cerr))
		}
		return nil, err
	}

	logger.Info("redis connected",
		slog.String("addr", cfg.Addr),
		slog.Int("db", cfg.DB),
		slog.String("queue", cfg.QueueKey),
		slog.String("channel", cfg.ChangeChannel),
	)
	return r, nil
}

// Ping is the health check for the shared client.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return e.WrapError(ctx, "redis.Ping", err)
	}
	return nil
}

// NotificationQueue is the queue at the configured key.
func (r *Redis) NotificationQueue() *NotificationQueue {
	return NewNotificationQueue(r.Client, r.cfg.QueueKey)
}

// ChangeBus is the pub/sub bus on the configured channel.
func (r *Redis) ChangeBus() *ChangeBus {
	return NewChangeBus(r.Client, r.cfg.ChangeChannel, r.logger)
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
