package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"careAlert/internal/domain"
	"careAlert/internal/metrics"
	"careAlert/pkg/e"

	"github.com/google/uuid"
)

type NotificationQueue interface {
	Pop(ctx context.Context, timeout time.Duration) (domain.Notification, error)
}

type NotificationStore interface {
	Save(ctx context.Context, n domain.Notification) error
}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type AlertLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (domain.SMSResult, error)
}

type SenderConfig struct {
	Workers    int
	PopTimeout time.Duration
	MaxRetries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// NotificationSender drains the notification queue with a fixed pool of
// workers: each item is stored as an unread notification and, when the
// caregiver has a phone on file, texted to them.
type NotificationSender struct {
	queue   NotificationQueue
	store   NotificationStore
	users   UserLookup
	alerts  AlertLookup
	sms     SMSSender
	cfg     SenderConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewNotificationSender(
	queue NotificationQueue,
	store NotificationStore,
	users UserLookup,
	alerts AlertLookup,
	sms SMSSender,
	cfg SenderConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *NotificationSender {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &NotificationSender{
		queue:   queue,
		store:   store,
		users:   users,
		alerts:  alerts,
		sms:     sms,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

func (s *NotificationSender) Run(ctx context.Context) {
	s.logger.Info("notificationSender STARTED", slog.Int("workers", s.cfg.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}
	wg.Wait()

	s.logger.Info("notificationSender STOPPED", slog.String("reason", context.Cause(ctx).Error()))
}

func (s *NotificationSender) worker(ctx context.Context, id int) {
	l := s.logger.With(slog.Int("worker", id))
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := s.queue.Pop(ctx, s.cfg.PopTimeout)
		if err != nil {
			if errors.Is(err, e.ErrQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			l.Error("queue pop failed", slog.Any("error", err))
			if !sleep(ctx, 500*time.Millisecond) {
				return
			}
			continue
		}

		err = s.deliverWithRetry(ctx, n)
		s.metrics.NotificationDelivered(err)
		if err != nil {
			l.Error("notification dropped",
				slog.String("notification_id", n.ID.String()),
				slog.String("caregiver_id", n.CaregiverID),
				slog.Any("error", err),
			)
		}
	}
}

// deliverWithRetry persists the record and sends the SMS. A step that has
// succeeded is not repeated on the next attempt.
func (s *NotificationSender) deliverWithRetry(ctx context.Context, n domain.Notification) error {
	var (
		saved   bool
		texted  bool
		lastErr error
	)
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.Attempt = attempt

		if !saved {
			if err := s.store.Save(ctx, n); err != nil {
				lastErr = fmt.Errorf("save: %w", err)
			} else {
				saved = true
			}
		}
		if saved && !texted {
			switch err := s.text(ctx, n); {
			case err == nil:
				texted = true
			default:
				lastErr = fmt.Errorf("sms: %w", err)
			}
		}
		if saved && texted {
			return nil
		}

		s.logger.Warn("notification delivery failed",
			slog.Int("attempt", attempt),
			slog.String("notification_id", n.ID.String()),
			slog.Any("error", lastErr),
		)
		if attempt < s.cfg.MaxRetries && !sleep(ctx, time.Duration(attempt)*s.cfg.Backoff) {
			return ctx.Err()
		}
	}
	return lastErr
}

// text returns nil when there is nothing to send.
func (s *NotificationSender) text(ctx context.Context, n domain.Notification) error {
	if s.sms == nil {
		return nil
	}
	cg, err := s.users.GetUser(ctx, n.CaregiverID)
	if err != nil {
		return err
	}
	if cg.Phone == "" {
		return nil
	}
	alert, err := s.alerts.Get(ctx, n.AlertID)
	if err != nil {
		return err
	}
	// closed before we got to it
	if alert.Status.Terminal() {
		return nil
	}

	_, err = s.sms.SendSMS(ctx, cg.Phone, SMSBody(alert))
	if errors.Is(err, e.ErrTelephonyDisabled) {
		return nil
	}
	return err
}

func SMSBody(a *domain.Alert) string {
	body := fmt.Sprintf("%s ALERT: %s needs assistance.", strings.ToUpper(string(a.Severity)), a.PatientName)
	if !a.Location.IsUnavailable() {
		body += fmt.Sprintf(" Location: %.5f,%.5f.", a.Location.Lat, a.Location.Lng)
	}
	return body + " Alert " + a.ID.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
