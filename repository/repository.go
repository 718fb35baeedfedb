package repository

import (
	"context"
	"time"

	"github.com/fastygo/exportflow/domain"
)

// Collection names shared by every DocumentStore backend.
const (
	CollectionEvents              = "events"
	CollectionBusinessStates      = "business_states"
	CollectionStateChanges        = "state_changes"
	CollectionNotifications       = "notifications"
	CollectionNotificationActions = "notification_actions"
	CollectionTimelines           = "timelines"
	CollectionThresholdRecords    = "threshold_records"
	CollectionSweepCheckpoints    = "sweep_checkpoints"
)

// Collections lists all collections so backends can prepare buckets or tables up front.
func Collections() []string {
	return []string{
		CollectionEvents,
		CollectionBusinessStates,
		CollectionStateChanges,
		CollectionNotifications,
		CollectionNotificationActions,
		CollectionTimelines,
		CollectionThresholdRecords,
		CollectionSweepCheckpoints,
	}
}

type EventFilter struct {
	Type       domain.EventType
	BusinessID string
	Limit      int
}

type EventRepository interface {
	Save(ctx context.Context, event domain.Event) error
	Recent(ctx context.Context, filter EventFilter) ([]domain.Event, error)
}

// StateRepository persists BusinessState documents with optimistic versioning.
type StateRepository interface {
	// Get returns domain.ErrDocumentNotFound when the business was never written.
	Get(ctx context.Context, businessID string) (*domain.BusinessState, error)
	// Save writes the state if the stored version still equals expectVersion. The change
	// records commit in the same write, so history never disagrees with the state.
	Save(ctx context.Context, state *domain.BusinessState, expectVersion int64, changes ...domain.StateChangeRecord) error
	History(ctx context.Context, businessID string, limit int) ([]domain.StateChangeRecord, error)
	BusinessIDs(ctx context.Context) ([]string, error)
}

type NotificationFilter struct {
	BusinessID string
	UnreadOnly bool
	Limit      int
}

type NotificationRepository interface {
	Save(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter NotificationFilter) ([]domain.Notification, error)
	SaveAction(ctx context.Context, action domain.ActionTaken) error
}

type TimelineRepository interface {
	Save(ctx context.Context, timeline *domain.Timeline) error
	GetByID(ctx context.Context, id string) (*domain.Timeline, error)
	FindByBusinessMarket(ctx context.Context, businessID, market string) (*domain.Timeline, error)
}

// ThresholdLedger holds the at-most-once markers for certification expiry notices.
type ThresholdLedger interface {
	// Claim inserts the record and reports false if it already existed.
	Claim(ctx context.Context, record domain.ThresholdRecord) (bool, error)
	// Release removes a claim whose notification could not be delivered.
	Release(ctx context.Context, record domain.ThresholdRecord) error
	Exists(ctx context.Context, businessID, certificationID string, threshold int) (bool, error)
}

// Locker serializes work on a key across callers. The returned unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CheckpointStore remembers which businesses a sweep run already finished.
type CheckpointStore interface {
	Done(ctx context.Context, runID, businessID string) (bool, error)
	MarkDone(ctx context.Context, runID, businessID string) error
}
