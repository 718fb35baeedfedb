package buffer

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/fastygo/exportflow/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Item is one event whose write to the event store failed and is waiting for replay.
type Item struct {
	EventID    string              `json:"event_id"`
	EventType  string              `json:"event_type"`
	BusinessID string              `json:"business_id,omitempty"`
	Data       jsoniter.RawMessage `json:"data"`
	Priority   int                 `json:"priority"`
	Retries    int                 `json:"retries"`
	Timestamp  time.Time           `json:"timestamp"`
}

// NewEventItem snapshots event for the outbox. More urgent events get lower keys and drain first.
func NewEventItem(event domain.Event) (Item, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Item{}, err
	}
	return Item{
		EventID:    event.ID,
		EventType:  string(event.Type),
		BusinessID: event.BusinessID,
		Data:       data,
		Priority:   event.Priority.Rank(),
	}, nil
}

// Event decodes the buffered event.
func (i Item) Event() (domain.Event, error) {
	var event domain.Event
	err := json.Unmarshal(i.Data, &event)
	return event, err
}

func (i *Item) normalize() {
	if i.Priority <= 0 || i.Priority > 4 {
		i.Priority = domain.PriorityLow.Rank()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
