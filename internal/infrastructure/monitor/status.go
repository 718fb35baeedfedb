package monitor

import "time"

// Status is the last observed health of the service dependencies.
type Status struct {
	Store        bool      `json:"store"`
	StoreDriver  string    `json:"store_driver"`
	Redis        bool      `json:"redis"`
	RedisEnabled bool      `json:"redis_enabled"`
	Outbox       bool      `json:"outbox"`
	OutboxSize   int       `json:"outbox_size"`
	LastCheck    time.Time `json:"last_check"`

	PersistenceFailures    int        `json:"persistence_failures"`
	LastPersistenceFailure *time.Time `json:"last_persistence_failure,omitempty"`
}

// Healthy reports whether the service can serve writes. Redis only counts when configured.
func (s Status) Healthy() bool {
	return s.Store && (!s.RedisEnabled || s.Redis)
}
