package redis

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChangeBus broadcasts committed alert ids over Redis pub/sub so that every
// instance refreshes its live subscribers, not only the one that wrote.
type ChangeBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewChangeBus(client *redis.Client, channel string, logger *slog.Logger) *ChangeBus {
	return &ChangeBus{client: client, channel: channel, logger: logger}
}

func (b *ChangeBus) Publish(ctx context.Context, alertID uuid.UUID) error {
	return b.client.Publish(ctx, b.channel, alertID.String()).Err()
}

// Run forwards every id received on the channel to onChange until ctx ends.
func (b *ChangeBus) Run(ctx context.Context, onChange func(uuid.UUID)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("change bus subscribed", slog.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("change bus stopped", slog.String("reason", ctx.Err().Error()))
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			id, err := uuid.Parse(msg.Payload)
			if err != nil {
				b.logger.Warn("bad change payload", slog.String("payload", msg.Payload))
				continue
			}
			onChange(id)
		}
	}
}
