package domain

import "time"

// Requirement is a regulatory item needed to export into a market.
type Requirement struct {
	ID                 string   `json:"id" yaml:"id"`
	Market             string   `json:"market" yaml:"market"`
	Name               string   `json:"name" yaml:"name"`
	IssuingAuthority   string   `json:"issuing_authority" yaml:"issuing_authority"`
	ProcessingTimeDays int      `json:"processing_time_days" yaml:"processing_time_days"`
	EstimatedCost      float64  `json:"estimated_cost" yaml:"estimated_cost"`
	PrerequisiteIDs    []string `json:"prerequisite_ids" yaml:"prerequisites"`
	Mandatory          bool     `json:"mandatory" yaml:"mandatory"`
}

// TaskStatus is the timeline task state machine: NOT_STARTED -> IN_PROGRESS -> COMPLETED.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "NOT_STARTED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskNotStarted, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// CanTransition allows only single forward steps. Rewriting the current status is a no-op and allowed.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	if s == to {
		return true
	}
	switch s {
	case TaskNotStarted:
		return to == TaskInProgress
	case TaskInProgress:
		return to == TaskCompleted
	default:
		return false
	}
}

// TimelineTask is the dated realization of one requirement.
type TimelineTask struct {
	ID                  string     `json:"id"`
	RequirementID       string     `json:"requirement_id"`
	Name                string     `json:"name"`
	IssuingAuthority    string     `json:"issuing_authority,omitempty"`
	StartDate           time.Time  `json:"start_date"`
	EndDate             time.Time  `json:"end_date"`
	Status              TaskStatus `json:"status"`
	PrerequisiteTaskIDs []string   `json:"prerequisite_task_ids"`
	Cost                float64    `json:"cost"`
	Mandatory           bool       `json:"mandatory"`
}

// Timeline is regenerated wholesale; only task status changes after creation.
type Timeline struct {
	ID         string         `json:"id"`
	BusinessID string         `json:"business_id"`
	Market     string         `json:"market"`
	Tasks      []TimelineTask `json:"tasks"`
	Progress   float64        `json:"progress"`
	TotalCost  float64        `json:"total_cost"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// RecomputeProgress sets Progress to completed/total, 0 for an empty timeline.
func (t *Timeline) RecomputeProgress() {
	if t == nil {
		return
	}
	if len(t.Tasks) == 0 {
		t.Progress = 0
		return
	}
	completed := 0
	for _, task := range t.Tasks {
		if task.Status == TaskCompleted {
			completed++
		}
	}
	t.Progress = float64(completed) / float64(len(t.Tasks))
}

// Task returns a pointer into Tasks so callers can update it in place.
func (t *Timeline) Task(taskID string) (*TimelineTask, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.Tasks {
		if t.Tasks[i].ID == taskID {
			return &t.Tasks[i], true
		}
	}
	return nil, false
}

// MarketReport is the black-box market-data figure set for a country.
type MarketReport struct {
	Country       string    `json:"country"`
	Name          string    `json:"name"`
	Industry      string    `json:"industry,omitempty"`
	MarketSizeUSD float64   `json:"market_size_usd"`
	GrowthRate    float64   `json:"growth_rate"`
	TariffRate    float64   `json:"tariff_rate"`
	GeneratedAt   time.Time `json:"generated_at"`
}
