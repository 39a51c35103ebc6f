package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAlertCreated    EventType = "alert.created"
	EventResponderAdded  EventType = "alert.responder_added"
	EventResponderStatus EventType = "alert.responder_status"
	EventAlertResolved   EventType = "alert.resolved"
	EventAlertCancelled  EventType = "alert.cancelled"
)

// AlertEvent is emitted after a committed alert mutation.
type AlertEvent struct {
	Type        EventType       `json:"type"`
	AlertID     uuid.UUID       `json:"alert_id"`
	PatientID   string          `json:"patient_id"`
	Status      AlertStatus     `json:"status"`
	Severity    Severity        `json:"severity"`
	CaregiverID string          `json:"caregiver_id,omitempty"`
	Responder   ResponderStatus `json:"responder_status,omitempty"`
	At          time.Time       `json:"at"`
}

func NewAlertEvent(t EventType, a *Alert, caregiverID string, at time.Time) AlertEvent {
	ev := AlertEvent{
		Type:        t,
		AlertID:     a.ID,
		PatientID:   a.PatientID,
		Status:      a.Status,
		Severity:    a.Severity,
		CaregiverID: caregiverID,
		At:          at.UTC(),
	}
	if caregiverID != "" {
		if r, ok := a.Responder(caregiverID); ok {
			ev.Responder = r.Status
		}
	}
	return ev
}
