package domain

import "time"

// EventType enumerates the domain facts published on the event bus.
type EventType string

const (
	EventBusinessProfileUpdated     EventType = "BUSINESS_PROFILE_UPDATED"
	EventStateUpdated               EventType = "STATE_UPDATED"
	EventMarketSelected             EventType = "MARKET_SELECTED"
	EventRegulatoryRequirementFound EventType = "REGULATORY_REQUIREMENT_DETECTED"
	EventCertificationExpiring      EventType = "CERTIFICATION_EXPIRING"
	EventCertificationExpired       EventType = "CERTIFICATION_EXPIRED"
	EventTimelineGenerated          EventType = "TIMELINE_GENERATED"
	EventTimelineTaskUpdated        EventType = "TIMELINE_TASK_UPDATED"
	EventNotificationCreated        EventType = "NOTIFICATION_CREATED"
	EventNotificationActionTaken    EventType = "NOTIFICATION_ACTION_TAKEN"
)

// EventTypes lists every known event type, used by subscribers that mirror the whole stream.
func EventTypes() []EventType {
	return []EventType{
		EventBusinessProfileUpdated,
		EventStateUpdated,
		EventMarketSelected,
		EventRegulatoryRequirementFound,
		EventCertificationExpiring,
		EventCertificationExpired,
		EventTimelineGenerated,
		EventTimelineTaskUpdated,
		EventNotificationCreated,
		EventNotificationActionTaken,
	}
}

// Priority orders events for dispatch filters and outbox replay.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Rank maps a priority to a sortable number where 1 is the most urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	default:
		return 4
	}
}

// Event is an immutable fact. ID and Timestamp are assigned by the bus at publish time.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Source     string         `json:"source"`
	Priority   Priority       `json:"priority"`
	BusinessID string         `json:"business_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// EventInput is what publishers hand to the bus.
type EventInput struct {
	Type       EventType
	Source     string
	Priority   Priority
	BusinessID string
	Payload    map[string]any
}

// PayloadString reads a string field from the payload.
func (e Event) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}
