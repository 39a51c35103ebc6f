package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const NotificationEmergencyAlert NotificationType = "emergency_alert"

type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

type Notification struct {
	ID          uuid.UUID          `json:"id"`
	CaregiverID string             `json:"caregiver_id"`
	AlertID     uuid.UUID          `json:"alert_id"`
	Type        NotificationType   `json:"type"`
	Status      NotificationStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	Attempt     int                `json:"attempt,omitempty"`
}
