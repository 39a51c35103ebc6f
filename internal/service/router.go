package service

import (
	"context"
	"log/slog"
	"time"

	"careAlert/internal/domain"
	"careAlert/internal/geo"
	"careAlert/internal/metrics"

	"github.com/google/uuid"
)

// NotificationRouter fans a new alert out to every eligible caregiver:
// those assigned to the patient plus those within the proximity radius.
type NotificationRouter struct {
	dir     Directory
	sink    NotificationSink
	matcher geo.Matcher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewNotificationRouter(dir Directory, sink NotificationSink, radiusMiles float64, m *metrics.Metrics, logger *slog.Logger) *NotificationRouter {
	return &NotificationRouter{
		dir:     dir,
		sink:    sink,
		matcher: geo.NewMatcher(radiusMiles),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// RouteNewAlert enqueues one emergency notification per eligible caregiver
// and returns their ids. Dispatch failures are logged and skipped.
func (r *NotificationRouter) RouteNewAlert(ctx context.Context, alert *domain.Alert) []string {
	l := r.logger.With(slog.String("alert_id", alert.ID.String()))

	caregivers, err := r.dir.ListCaregivers(ctx)
	if err != nil {
		l.Error("directory.ListCaregivers failed", slog.Any("error", err))
		return nil
	}

	skipProximity := alert.Location.IsUnavailable()
	if skipProximity {
		l.Info("alert has no location, proximity matching skipped")
	}

	eligible := make([]string, 0, len(caregivers))
	for _, cg := range caregivers {
		if !r.matcher.Eligible(alert.PatientID, alert.Location, cg.AssignedPatients, cg.Location) {
			continue
		}
		eligible = append(eligible, cg.ID)

		n := domain.Notification{
			ID:          uuid.New(),
			CaregiverID: cg.ID,
			AlertID:     alert.ID,
			Type:        domain.NotificationEmergencyAlert,
			Status:      domain.NotificationUnread,
			CreatedAt:   r.now().UTC(),
		}
		err := r.sink.Enqueue(ctx, n)
		r.metrics.NotificationRouted(reason(alert.PatientID, cg.AssignedPatients), err)
		if err != nil {
			l.Error("enqueue notification failed",
				slog.String("caregiver_id", cg.ID),
				slog.Any("error", err),
			)
			continue
		}
	}

	l.Info("alert routed",
		slog.Int("caregivers", len(caregivers)),
		slog.Int("eligible", len(eligible)),
		slog.Float64("radius_miles", r.matcher.RadiusMiles),
	)
	return eligible
}

func reason(patientID string, assigned []string) string {
	for _, p := range assigned {
		if p == patientID {
			return "assigned"
		}
	}
	return "proximity"
}
