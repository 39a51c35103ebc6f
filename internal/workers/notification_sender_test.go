package workers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careAlert/internal/domain"
	mock_service "careAlert/internal/service/mocks"
	"careAlert/internal/storage/memory"
	"careAlert/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

type senderFixture struct {
	queue  *memory.NotificationQueue
	store  *memory.NotificationStore
	dir    *memory.Directory
	alerts *memory.AlertRepository
	sms    *mock_service.MockTelephonyRelay
	sender *NotificationSender
}

func newSenderFixture(t *testing.T, ctrl *gomock.Controller) *senderFixture {
	t.Helper()
	fx := &senderFixture{
		queue:  memory.NewNotificationQueue(8),
		store:  memory.NewNotificationStore(),
		alerts: memory.NewAlertRepository(),
		sms:    mock_service.NewMockTelephonyRelay(ctrl),
		dir: memory.NewDirectory(
			domain.User{ID: "p1", Name: "Pat", UserType: domain.UserPatient},
			domain.User{ID: "cA", Name: "Ann", UserType: domain.UserCaregiver, Phone: "+6591234567"},
			domain.User{ID: "cB", Name: "Ben", UserType: domain.UserCaregiver},
		),
	}
	fx.sender = NewNotificationSender(fx.queue, fx.store, fx.dir, fx.alerts, fx.sms, SenderConfig{
		Workers:    2,
		PopTimeout: 20 * time.Millisecond,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	}, nil, newTestLogger())
	return fx
}

func (fx *senderFixture) alert(t *testing.T) *domain.Alert {
	t.Helper()
	patient, err := fx.dir.GetUser(context.Background(), "p1")
	require.NoError(t, err)
	a := domain.NewAlert(patient, domain.Coord{Lat: 1.3, Lng: 103.8}, domain.SeverityEmergency, time.Now())
	require.NoError(t, fx.alerts.Insert(context.Background(), a))
	return a
}

func notificationFor(caregiverID string, alertID uuid.UUID) domain.Notification {
	return domain.Notification{
		ID:          uuid.New(),
		CaregiverID: caregiverID,
		AlertID:     alertID,
		Type:        domain.NotificationEmergencyAlert,
		Status:      domain.NotificationUnread,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestNotificationSender_Run(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newSenderFixture(t, ctrl)
	a := fx.alert(t)

	sent := make(chan string, 1)
	fx.sms.EXPECT().SendSMS(gomock.Any(), "+6591234567", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, body string) (domain.SMSResult, error) {
			sent <- body
			return domain.SMSResult{MessageSID: "SM1", Status: "queued"}, nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fx.sender.Run(ctx)
		close(done)
	}()

	require.NoError(t, fx.queue.Enqueue(ctx, notificationFor("cA", a.ID)))

	select {
	case body := <-sent:
		assert.Contains(t, body, "EMERGENCY ALERT: Pat needs assistance.")
		assert.Contains(t, body, a.ID.String())
	case <-time.After(2 * time.Second):
		t.Fatal("sms was never sent")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not stop")
	}

	got, err := fx.store.ListByCaregiver(context.Background(), "cA")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].AlertID)
	assert.Equal(t, 1, got[0].Attempt)
}

func TestNotificationSender_Deliver(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		caregiver string
		setup     func(t *testing.T, fx *senderFixture, a *domain.Alert)
		wantErr   bool
	}{
		{
			name:      "retries sms until it succeeds",
			caregiver: "cA",
			setup: func(_ *testing.T, fx *senderFixture, _ *domain.Alert) {
				gomock.InOrder(
					fx.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.SMSResult{}, errors.New("503")),
					fx.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.SMSResult{MessageSID: "SM2"}, nil),
				)
			},
		},
		{
			name:      "gives up after max retries",
			caregiver: "cA",
			setup: func(_ *testing.T, fx *senderFixture, _ *domain.Alert) {
				fx.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(domain.SMSResult{}, e.ErrInternal).Times(3)
			},
			wantErr: true,
		},
		{
			name:      "telephony disabled is not a failure",
			caregiver: "cA",
			setup: func(_ *testing.T, fx *senderFixture, _ *domain.Alert) {
				fx.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(domain.SMSResult{}, e.ErrTelephonyDisabled)
			},
		},
		{
			name:      "caregiver without phone is only recorded",
			caregiver: "cB",
			setup:     func(*testing.T, *senderFixture, *domain.Alert) {},
		},
		{
			name:      "closed alert is not texted",
			caregiver: "cA",
			setup: func(t *testing.T, fx *senderFixture, a *domain.Alert) {
				_, err := fx.alerts.Mutate(context.Background(), a.ID, func(a *domain.Alert) error {
					return a.SetStatus(domain.AlertCancelled, time.Now())
				})
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			fx := newSenderFixture(t, ctrl)
			a := fx.alert(t)
			tt.setup(t, fx, a)

			err := fx.sender.deliverWithRetry(context.Background(), notificationFor(tt.caregiver, a.ID))
			if tt.wantErr {
				assert.ErrorIs(t, err, e.ErrInternal)
			} else {
				assert.NoError(t, err)
			}

			got, err := fx.store.ListByCaregiver(context.Background(), tt.caregiver)
			require.NoError(t, err)
			assert.Len(t, got, 1, "record is saved once regardless of sms retries")
		})
	}
}

type flakyStore struct {
	failures int
	saved    []domain.Notification
}

func (s *flakyStore) Save(_ context.Context, n domain.Notification) error {
	if s.failures > 0 {
		s.failures--
		return e.ErrDeadline
	}
	s.saved = append(s.saved, n)
	return nil
}

func TestNotificationSender_SaveRetry(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fx := newSenderFixture(t, ctrl)
	a := fx.alert(t)
	store := &flakyStore{failures: 1}
	fx.sender.store = store

	fx.sms.EXPECT().SendSMS(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.SMSResult{}, nil)

	require.NoError(t, fx.sender.deliverWithRetry(context.Background(), notificationFor("cA", a.ID)))
	require.Len(t, store.saved, 1)
	assert.Equal(t, 2, store.saved[0].Attempt)
}

func TestSMSBody(t *testing.T) {
	t.Parallel()
	id := uuid.MustParse("6f1c1c3e-8a4b-4d8e-9b57-0d7f3c7e2a11")

	a := &domain.Alert{ID: id, PatientName: "Pat", Severity: domain.SeverityUrgent, Location: domain.Coord{Lat: 1.3, Lng: 103.8}}
	assert.Equal(t, "URGENT ALERT: Pat needs assistance. Location: 1.30000,103.80000. Alert "+id.String(), SMSBody(a))

	a.Location = domain.Coord{}
	assert.Equal(t, "URGENT ALERT: Pat needs assistance. Alert "+id.String(), SMSBody(a))
}
