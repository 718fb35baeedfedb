package domain

import "time"

// NotificationPriority is the user-facing urgency tier.
type NotificationPriority string

const (
	NotificationLow    NotificationPriority = "LOW"
	NotificationMedium NotificationPriority = "MEDIUM"
	NotificationHigh   NotificationPriority = "HIGH"
	NotificationUrgent NotificationPriority = "URGENT"
)

// EventPriority maps a notification tier onto the bus priority of its creation event.
func (p NotificationPriority) EventPriority() Priority {
	switch p {
	case NotificationUrgent:
		return PriorityCritical
	case NotificationHigh:
		return PriorityHigh
	case NotificationMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// NotificationAction is a button the user can press on a notification.
type NotificationAction struct {
	Label  string         `json:"label"`
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

type Notification struct {
	ID         string               `json:"id"`
	BusinessID string               `json:"business_id"`
	Type       string               `json:"type,omitempty"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Priority   NotificationPriority `json:"priority"`
	Actions    []NotificationAction `json:"actions"`
	Channels   []Channel            `json:"channels,omitempty"`
	Read       bool                 `json:"read"`
	ReadAt     *time.Time           `json:"read_at,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// ActionTaken is the side-channel fact recorded when a user acts on a notification.
type ActionTaken struct {
	ID             string         `json:"id"`
	NotificationID string         `json:"notification_id"`
	BusinessID     string         `json:"business_id"`
	Action         string         `json:"action"`
	Data           map[string]any `json:"data,omitempty"`
	TakenAt        time.Time      `json:"taken_at"`
}

// Template drives construction of notifications of one type.
type Template struct {
	Type            string               `json:"type"`
	TitleTemplate   string               `json:"title_template"`
	MessageTemplate string               `json:"message_template"`
	DefaultPriority NotificationPriority `json:"default_priority"`
	DefaultChannels []Channel            `json:"default_channels"`
	DefaultActions  []NotificationAction `json:"default_actions"`
}

// ThresholdRecord marks that a certification was already notified for a threshold.
type ThresholdRecord struct {
	BusinessID      string    `json:"business_id"`
	CertificationID string    `json:"certification_id"`
	Threshold       int       `json:"threshold"`
	NotifiedAt      time.Time `json:"notified_at"`
}
