package subscription_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careAlert/internal/domain"
	"careAlert/internal/service"
	"careAlert/internal/storage/memory"
	"careAlert/internal/subscription"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	hub   *subscription.Hub
	store *service.AlertStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := memory.NewDirectory(
		domain.User{ID: "p1", Name: "Pat", UserType: domain.UserPatient},
		domain.User{ID: "p2", Name: "Other", UserType: domain.UserPatient},
	)
	repo := memory.NewAlertRepository()
	hub := subscription.NewHub(repo, subscription.Options{RadiusMiles: 1}, nil, newTestLogger())
	store := service.NewAlertStore(repo, dir, hub, nil, nil, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return &fixture{hub: hub, store: store}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
	var zero T
	return zero
}

func quiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %+v", v)
	case <-time.After(150 * time.Millisecond):
	}
}

func ids(alerts []domain.Alert) []uuid.UUID {
	out := make([]uuid.UUID, len(alerts))
	for i, a := range alerts {
		out[i] = a.ID
	}
	return out
}

func TestHub_AssignedCaregiverSeesOnlyAssignedPatients(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()

	got := make(chan []domain.Alert, 16)
	unsubscribe, err := fx.hub.SubscribeCaregiver(ctx, subscription.CaregiverFilter{
		CaregiverID:      "c1",
		AssignedPatients: []string{"p1"},
	}, func(a []domain.Alert) { got <- a })
	require.NoError(t, err)
	defer unsubscribe()

	assert.Empty(t, recv(t, got))

	// far away from everything, still delivered through the assignment
	a1, err := fx.store.Create(ctx, "p1", domain.Coord{Lat: 51.5, Lng: -0.12}, domain.SeverityEmergency)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a1.ID}, ids(recv(t, got)))

	_, err = fx.store.Create(ctx, "p2", domain.Coord{Lat: 51.5, Lng: -0.12}, domain.SeverityEmergency)
	require.NoError(t, err)
	quiet(t, got)
}

func TestHub_ProximityFeed(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()

	got := make(chan []domain.Alert, 16)
	unsubscribe, err := fx.hub.SubscribeCaregiver(ctx, subscription.CaregiverFilter{
		CaregiverID: "c1",
		Location:    &domain.Coord{Lat: 1.305, Lng: 103.805},
	}, func(a []domain.Alert) { got <- a })
	require.NoError(t, err)
	defer unsubscribe()
	recv(t, got)

	near, err := fx.store.Create(ctx, "p1", domain.Coord{Lat: 1.30, Lng: 103.80}, "")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{near.ID}, ids(recv(t, got)))

	// unavailable location never matches by proximity
	_, err = fx.store.Create(ctx, "p2", domain.Coord{}, "")
	require.NoError(t, err)
	quiet(t, got)

	// resolving drops it from the open feed
	_, err = fx.store.SetAlertStatus(ctx, near.ID, domain.AlertResolved)
	require.NoError(t, err)
	assert.Empty(t, recv(t, got))
}

func TestHub_InitialSnapshotIncludesExistingAlerts(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.store.Create(ctx, "p1", domain.Coord{Lat: 1.3, Lng: 103.8}, "")
	require.NoError(t, err)

	got := make(chan []domain.Alert, 4)
	unsubscribe, err := fx.hub.SubscribeCaregiver(ctx, subscription.CaregiverFilter{
		CaregiverID: "c1", AssignedPatients: []string{"p1"},
	}, func(a []domain.Alert) { got <- a })
	require.NoError(t, err)
	defer unsubscribe()

	assert.Equal(t, []uuid.UUID{a.ID}, ids(recv(t, got)))
}

func TestHub_DuplicateSnapshotsSuppressed(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.store.Create(ctx, "p1", domain.Coord{Lat: 1.3, Lng: 103.8}, "")
	require.NoError(t, err)

	got := make(chan []domain.Alert, 4)
	unsubscribe, err := fx.hub.SubscribeCaregiver(ctx, subscription.CaregiverFilter{
		CaregiverID: "c1", AssignedPatients: []string{"p1"},
	}, func(a []domain.Alert) { got <- a })
	require.NoError(t, err)
	defer unsubscribe()
	recv(t, got)

	// a change notification without a content change
	require.NoError(t, fx.hub.Publish(ctx, a.ID))
	quiet(t, got)

	_, err = fx.store.AppendResponder(ctx, a.ID, domain.Responder{CaregiverID: "c9", Status: domain.ResponderAcknowledged})
	require.NoError(t, err)
	snap := recv(t, got)
	require.Len(t, snap, 1)
	assert.Equal(t, domain.AlertResponded, snap[0].Status)
}

func TestHub_IndependentSubscribers(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	filter := subscription.CaregiverFilter{CaregiverID: "c1", AssignedPatients: []string{"p1"}}

	first := make(chan []domain.Alert, 8)
	second := make(chan []domain.Alert, 8)
	unsubFirst, err := fx.hub.SubscribeCaregiver(ctx, filter, func(a []domain.Alert) { first <- a })
	require.NoError(t, err)
	unsubSecond, err := fx.hub.SubscribeCaregiver(ctx, filter, func(a []domain.Alert) { second <- a })
	require.NoError(t, err)
	defer unsubSecond()
	recv(t, first)
	recv(t, second)

	unsubFirst()
	unsubFirst() // idempotent

	_, err = fx.store.Create(ctx, "p1", domain.Coord{Lat: 1.3, Lng: 103.8}, "")
	require.NoError(t, err)
	assert.Len(t, recv(t, second), 1)
	quiet(t, first)

	cg, al := fx.hub.Counts()
	assert.Equal(t, 1, cg)
	assert.Equal(t, 0, al)
}

func TestHub_PanickingSubscriberIsIsolated(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()
	filter := subscription.CaregiverFilter{CaregiverID: "c1", AssignedPatients: []string{"p1"}}

	unsubBad, err := fx.hub.SubscribeCaregiver(ctx, filter, func([]domain.Alert) { panic("boom") })
	require.NoError(t, err)
	defer unsubBad()

	got := make(chan []domain.Alert, 8)
	unsub, err := fx.hub.SubscribeCaregiver(ctx, filter, func(a []domain.Alert) { got <- a })
	require.NoError(t, err)
	defer unsub()
	recv(t, got)

	_, err = fx.store.Create(ctx, "p1", domain.Coord{Lat: 1.3, Lng: 103.8}, "")
	require.NoError(t, err)
	assert.Len(t, recv(t, got), 1)
}

func TestHub_AlertSubscription(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.store.Create(ctx, "p1", domain.Coord{Lat: 1.3, Lng: 103.8}, "")
	require.NoError(t, err)

	got := make(chan *domain.Alert, 8)
	unsubscribe, err := fx.hub.SubscribeAlert(ctx, a.ID, func(al *domain.Alert) { got <- al })
	require.NoError(t, err)
	defer unsubscribe()

	first := recv(t, got)
	require.NotNil(t, first)
	assert.Equal(t, domain.AlertActive, first.Status)

	_, err = fx.store.AppendResponder(ctx, a.ID, domain.Responder{CaregiverID: "c1", Status: domain.ResponderAcknowledged})
	require.NoError(t, err)
	assert.Equal(t, domain.AlertResponded, recv(t, got).Status)

	_, err = fx.store.UpdateResponderStatus(ctx, a.ID, "c1", domain.ResponderEnRoute)
	require.NoError(t, err)
	assert.Equal(t, domain.ResponderEnRoute, recv(t, got).Responders[0].Status)

	// other alerts do not wake this feed
	_, err = fx.store.Create(ctx, "p2", domain.Coord{Lat: 1.3, Lng: 103.8}, "")
	require.NoError(t, err)
	quiet(t, got)
}

func TestHub_AlertSubscriptionUnknownDeliversNil(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	got := make(chan *domain.Alert, 1)
	unsubscribe, err := fx.hub.SubscribeAlert(context.Background(), uuid.New(), func(al *domain.Alert) { got <- al })
	require.NoError(t, err)
	defer unsubscribe()

	assert.Nil(t, recv(t, got))
}
