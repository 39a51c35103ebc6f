package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careAlert/internal/domain"
	"careAlert/pkg/e"
)

var now = time.Date(2025, 12, 23, 12, 0, 0, 0, time.UTC)

func newAlert(t *testing.T) *domain.Alert {
	t.Helper()
	patient := &domain.User{ID: "p1", Name: "Ada", UserType: domain.UserPatient}
	return domain.NewAlert(patient, domain.Coord{Lat: 1.30, Lng: 103.80}, domain.SeverityEmergency, now)
}

func responder(id string, status domain.ResponderStatus) domain.Responder {
	return domain.Responder{CaregiverID: id, CaregiverName: "cg " + id, ResponseTime: now, Status: status}
}

func TestNewAlert(t *testing.T) {
	a := newAlert(t)

	assert.Equal(t, domain.AlertActive, a.Status)
	assert.Equal(t, "Ada", a.PatientName)
	assert.NotNil(t, a.Responders)
	assert.Empty(t, a.Responders)
}

func TestAppendResponder_FirstAcknowledgeMovesToResponded(t *testing.T) {
	a := newAlert(t)

	require.NoError(t, a.AppendResponder(responder("c1", domain.ResponderNotified)))
	assert.Equal(t, domain.AlertActive, a.Status, "notified responders keep the alert active")

	require.NoError(t, a.AppendResponder(responder("c2", domain.ResponderAcknowledged)))
	assert.Equal(t, domain.AlertResponded, a.Status)

	require.NoError(t, a.AppendResponder(responder("c3", domain.ResponderAcknowledged)))
	assert.Equal(t, domain.AlertResponded, a.Status)
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids(a))
}

func TestAppendResponder_Duplicate(t *testing.T) {
	a := newAlert(t)

	require.NoError(t, a.AppendResponder(responder("c1", domain.ResponderAcknowledged)))
	err := a.AppendResponder(responder("c1", domain.ResponderAcknowledged))

	assert.ErrorIs(t, err, e.ErrDuplicateResponder)
	assert.Len(t, a.Responders, 1)
}

func TestUpdateResponderStatus_ForwardOnly(t *testing.T) {
	a := newAlert(t)
	require.NoError(t, a.AppendResponder(responder("c1", domain.ResponderAcknowledged)))

	require.NoError(t, a.UpdateResponderStatus("c1", domain.ResponderEnRoute))
	require.NoError(t, a.UpdateResponderStatus("c1", domain.ResponderArrived))

	assert.ErrorIs(t, a.UpdateResponderStatus("c1", domain.ResponderEnRoute), e.ErrInvalidTransition)
	assert.ErrorIs(t, a.UpdateResponderStatus("c1", domain.ResponderArrived), e.ErrInvalidTransition)

	r, ok := a.Responder("c1")
	require.True(t, ok)
	assert.Equal(t, domain.ResponderArrived, r.Status)
}

func TestUpdateResponderStatus_PromotesNotified(t *testing.T) {
	a := newAlert(t)
	require.NoError(t, a.AppendResponder(responder("c1", domain.ResponderNotified)))

	require.NoError(t, a.UpdateResponderStatus("c1", domain.ResponderAcknowledged))
	assert.Equal(t, domain.AlertResponded, a.Status)
}

func TestUpdateResponderStatus_MissingResponder(t *testing.T) {
	a := newAlert(t)
	assert.ErrorIs(t, a.UpdateResponderStatus("ghost", domain.ResponderEnRoute), e.ErrNotFound)
}

func TestSetStatus_Table(t *testing.T) {
	tests := []struct {
		name      string
		from      domain.AlertStatus
		committed bool
		to        domain.AlertStatus
		ok        bool
	}{
		{"active->resolved", domain.AlertActive, false, domain.AlertResolved, true},
		{"active->cancelled", domain.AlertActive, false, domain.AlertCancelled, true},
		{"active->responded without ack", domain.AlertActive, false, domain.AlertResponded, false},
		{"active->responded with ack", domain.AlertActive, true, domain.AlertResponded, true},
		{"active->active", domain.AlertActive, false, domain.AlertActive, false},
		{"responded->resolved", domain.AlertResponded, true, domain.AlertResolved, true},
		{"responded->cancelled", domain.AlertResponded, true, domain.AlertCancelled, true},
		{"responded->responded", domain.AlertResponded, true, domain.AlertResponded, true},
		{"responded->active", domain.AlertResponded, true, domain.AlertActive, false},
		{"resolved->cancelled", domain.AlertResolved, true, domain.AlertCancelled, false},
		{"cancelled->resolved", domain.AlertCancelled, false, domain.AlertResolved, false},
		{"resolved->resolved", domain.AlertResolved, false, domain.AlertResolved, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, domain.CanTransition(tt.from, tt.to, tt.committed))
		})
	}
}

func TestSetStatus_TerminalFreezesEverything(t *testing.T) {
	a := newAlert(t)
	require.NoError(t, a.AppendResponder(responder("c1", domain.ResponderAcknowledged)))
	require.NoError(t, a.SetStatus(domain.AlertResolved, now))
	require.NotNil(t, a.ResolvedAt)

	assert.ErrorIs(t, a.AppendResponder(responder("c2", domain.ResponderAcknowledged)), e.ErrInvalidTransition)
	assert.ErrorIs(t, a.UpdateResponderStatus("c1", domain.ResponderEnRoute), e.ErrInvalidTransition)
	assert.ErrorIs(t, a.SetStatus(domain.AlertCancelled, now), e.ErrInvalidTransition)
	assert.Nil(t, a.CancelledAt)
}

func TestClone_DoesNotShareResponders(t *testing.T) {
	a := newAlert(t)
	require.NoError(t, a.AppendResponder(responder("c1", domain.ResponderAcknowledged)))

	cp := a.Clone()
	cp.Responders[0].Status = domain.ResponderArrived

	assert.Equal(t, domain.ResponderAcknowledged, a.Responders[0].Status)
}

func TestCoord_IsUnavailable(t *testing.T) {
	assert.True(t, domain.Coord{}.IsUnavailable())
	assert.False(t, domain.Coord{Lat: 0, Lng: 0.0001}.IsUnavailable())
}

func ids(a *domain.Alert) []string {
	out := make([]string, 0, len(a.Responders))
	for _, r := range a.Responders {
		out = append(out, r.CaregiverID)
	}
	return out
}
