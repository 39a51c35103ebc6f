package domain

import (
	"fmt"
	"time"

	"careAlert/pkg/e"

	"github.com/google/uuid"
)

type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertResponded AlertStatus = "responded"
	AlertResolved  AlertStatus = "resolved"
	AlertCancelled AlertStatus = "cancelled"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertActive, AlertResponded, AlertResolved, AlertCancelled:
		return true
	}
	return false
}

// Terminal statuses freeze the alert and every responder on it.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertCancelled
}

type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeverityUrgent    Severity = "urgent"
	SeverityRoutine   Severity = "routine"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityEmergency, SeverityUrgent, SeverityRoutine:
		return true
	}
	return false
}

type ResponderStatus string

const (
	ResponderNotified     ResponderStatus = "notified"
	ResponderAcknowledged ResponderStatus = "acknowledged"
	ResponderEnRoute      ResponderStatus = "en_route"
	ResponderArrived      ResponderStatus = "arrived"
)

var responderRank = map[ResponderStatus]int{
	ResponderNotified:     1,
	ResponderAcknowledged: 2,
	ResponderEnRoute:      3,
	ResponderArrived:      4,
}

func (s ResponderStatus) Valid() bool {
	_, ok := responderRank[s]
	return ok
}

// After reports whether s is strictly later than prev in the responder order.
func (s ResponderStatus) After(prev ResponderStatus) bool {
	return responderRank[s] > responderRank[prev]
}

// Committed reports whether the responder has acknowledged or gone further.
func (s ResponderStatus) Committed() bool {
	return responderRank[s] >= responderRank[ResponderAcknowledged]
}

// Coord is a WGS84 position. The zero value means "location unavailable".
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coord) IsUnavailable() bool {
	return c.Lat == 0 && c.Lng == 0
}

type Responder struct {
	CaregiverID   string          `json:"caregiver_id"`
	CaregiverName string          `json:"caregiver_name"`
	ResponseTime  time.Time       `json:"response_time"`
	EtaMinutes    int             `json:"eta_minutes"`
	DistanceMiles float64         `json:"distance_miles"`
	Status        ResponderStatus `json:"status"`
}

type Alert struct {
	ID          uuid.UUID   `json:"id"`
	PatientID   string      `json:"patient_id"`
	PatientName string      `json:"patient_name"`
	Location    Coord       `json:"location"`
	Timestamp   time.Time   `json:"timestamp"`
	Status      AlertStatus `json:"status"`
	Severity    Severity    `json:"severity"`
	Responders  []Responder `json:"responders"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
	CancelledAt *time.Time  `json:"cancelled_at,omitempty"`
}

// NewAlert builds an active alert with no responders.
func NewAlert(patient *User, loc Coord, severity Severity, now time.Time) *Alert {
	return &Alert{
		ID:          uuid.New(),
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Location:    loc,
		Timestamp:   now.UTC(),
		Status:      AlertActive,
		Severity:    severity,
		Responders:  []Responder{},
	}
}

// Clone returns a deep copy so callers never share the responder slice.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Responders = append([]Responder(nil), a.Responders...)
	if cp.Responders == nil {
		cp.Responders = []Responder{}
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		cp.ResolvedAt = &t
	}
	if a.CancelledAt != nil {
		t := *a.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}

func (a *Alert) Responder(caregiverID string) (Responder, bool) {
	for _, r := range a.Responders {
		if r.CaregiverID == caregiverID {
			return r, true
		}
	}
	return Responder{}, false
}

// AppendResponder adds a caregiver to the end of the responder list.
// At most one entry per caregiver is kept.
func (a *Alert) AppendResponder(r Responder) error {
	if a.Status.Terminal() {
		return fmt.Errorf("alert %s is %s: %w", a.ID, a.Status, e.ErrInvalidTransition)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("responder status %q: %w", r.Status, e.ErrInvalidInput)
	}
	if _, ok := a.Responder(r.CaregiverID); ok {
		return fmt.Errorf("caregiver %s on alert %s: %w", r.CaregiverID, a.ID, e.ErrDuplicateResponder)
	}
	a.Responders = append(a.Responders, r)
	if r.Status.Committed() && a.Status == AlertActive {
		a.Status = AlertResponded
	}
	return nil
}

// UpdateResponderStatus moves one responder strictly forward.
func (a *Alert) UpdateResponderStatus(caregiverID string, status ResponderStatus) error {
	if a.Status.Terminal() {
		return fmt.Errorf("alert %s is %s: %w", a.ID, a.Status, e.ErrInvalidTransition)
	}
	if !status.Valid() {
		return fmt.Errorf("responder status %q: %w", status, e.ErrInvalidInput)
	}
	for i := range a.Responders {
		r := &a.Responders[i]
		if r.CaregiverID != caregiverID {
			continue
		}
		if !status.After(r.Status) {
			return fmt.Errorf("responder %s %s -> %s: %w", caregiverID, r.Status, status, e.ErrInvalidTransition)
		}
		r.Status = status
		if status.Committed() && a.Status == AlertActive {
			a.Status = AlertResponded
		}
		return nil
	}
	return fmt.Errorf("responder %s on alert %s: %w", caregiverID, a.ID, e.ErrNotFound)
}

// SetStatus applies an alert-level transition.
func (a *Alert) SetStatus(next AlertStatus, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("alert status %q: %w", next, e.ErrInvalidInput)
	}
	if !CanTransition(a.Status, next, a.hasCommittedResponder()) {
		return fmt.Errorf("alert %s %s -> %s: %w", a.ID, a.Status, next, e.ErrInvalidTransition)
	}
	a.Status = next
	ts := now.UTC()
	switch next {
	case AlertResolved:
		a.ResolvedAt = &ts
	case AlertCancelled:
		a.CancelledAt = &ts
	}
	return nil
}

func (a *Alert) hasCommittedResponder() bool {
	for _, r := range a.Responders {
		if r.Status.Committed() {
			return true
		}
	}
	return false
}

// CanTransition encodes the alert state machine.
// active -> responded is only legal once a responder has acknowledged.
func CanTransition(from, to AlertStatus, committed bool) bool {
	switch from {
	case AlertActive:
		switch to {
		case AlertResolved, AlertCancelled:
			return true
		case AlertResponded:
			return committed
		}
	case AlertResponded:
		switch to {
		case AlertResponded, AlertResolved, AlertCancelled:
			return true
		}
	}
	return false
}
