package memory

import (
	"context"
	"fmt"
	"time"

	"careAlert/internal/domain"
	"careAlert/pkg/e"
)

// NotificationQueue is a bounded in-process stand-in for the Redis queue.
type NotificationQueue struct {
	ch chan domain.Notification
}

func NewNotificationQueue(size int) *NotificationQueue {
	if size <= 0 {
		size = 1024
	}
	return &NotificationQueue{ch: make(chan domain.Notification, size)}
}

// Enqueue never waits: with no consumer draining the buffer a full queue
// fails with e.ErrQueueFull so one caregiver cannot stall the fan-out.
func (q *NotificationQueue) Enqueue(ctx context.Context, n domain.Notification) error {
	const op = "memory.NotificationQueue.Enqueue"
	if err := ctx.Err(); err != nil {
		return e.WrapError(ctx, op, err)
	}
	select {
	case q.ch <- n:
		return nil
	default:
		return fmt.Errorf("%s: %w", op, e.ErrQueueFull)
	}
}

// Pop waits up to timeout for the next notification and returns
// e.ErrQueueEmpty when none arrives.
func (q *NotificationQueue) Pop(ctx context.Context, timeout time.Duration) (domain.Notification, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case n := <-q.ch:
		return n, nil
	case <-t.C:
		return domain.Notification{}, e.ErrQueueEmpty
	case <-ctx.Done():
		return domain.Notification{}, e.WrapError(ctx, "memory.NotificationQueue.Pop", ctx.Err())
	}
}
