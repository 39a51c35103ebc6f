package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"careAlert/internal/domain"
	"careAlert/pkg/e"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type AlertCloser interface {
	QueryActiveAndResponded(ctx context.Context) ([]*domain.Alert, error)
	CancelIfActive(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
}

type SweeperConfig struct {
	Schedule string
	MaxAge   time.Duration
}

// StaleSweeper cancels alerts nobody picked up within MaxAge. Alerts that
// already have a responder are left alone.
type StaleSweeper struct {
	alerts AlertCloser
	cfg    SweeperConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewStaleSweeper(alerts AlertCloser, cfg SweeperConfig, logger *slog.Logger) *StaleSweeper {
	return &StaleSweeper{
		alerts: alerts,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run schedules Sweep and blocks until ctx is done.
func (s *StaleSweeper) Run(ctx context.Context) error {
	cl := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("stale sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("sweeper schedule %q: %w", s.cfg.Schedule, err)
	}

	c.Start()
	s.logger.Info("staleSweeper STARTED",
		slog.String("schedule", s.cfg.Schedule),
		slog.Duration("max_age", s.cfg.MaxAge),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("staleSweeper STOPPED")
	return nil
}

// Sweep cancels every active alert older than MaxAge and returns how many
// were closed. An alert acknowledged after the listing is skipped because
// CancelIfActive rechecks the status under the alert's lock.
func (s *StaleSweeper) Sweep(ctx context.Context) (int, error) {
	open, err := s.alerts.QueryActiveAndResponded(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.cfg.MaxAge)
	closed := 0
	for _, a := range open {
		if a.Status != domain.AlertActive || !a.Timestamp.Before(cutoff) {
			continue
		}
		if _, err := s.alerts.CancelIfActive(ctx, a.ID); err != nil {
			if errors.Is(err, e.ErrInvalidTransition) {
				s.logger.Debug("stale alert picked up before cancel",
					slog.String("alert_id", a.ID.String()),
				)
				continue
			}
			s.logger.Warn("cancel stale alert failed",
				slog.String("alert_id", a.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		closed++
		s.logger.Info("stale alert cancelled",
			slog.String("alert_id", a.ID.String()),
			slog.Time("timestamp", a.Timestamp),
		)
	}
	return closed, nil
}
