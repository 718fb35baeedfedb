package docstore

import (
	"context"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

type eventRepository struct {
	store repository.DocumentStore
}

// NewEventRepository persists bus events as documents in the events collection.
func NewEventRepository(store repository.DocumentStore) repository.EventRepository {
	return &eventRepository{store: store}
}

func (r *eventRepository) Save(ctx context.Context, event domain.Event) error {
	if event.ID == "" {
		return domain.ErrInvalidPayload
	}
	doc, err := repository.ToDocument(event)
	if err != nil {
		return err
	}
	doc[repository.IDField] = event.ID
	doc[repository.SortField] = sortKey(event.Timestamp)
	return r.store.InsertOne(ctx, repository.CollectionEvents, doc)
}

func (r *eventRepository) Recent(ctx context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	f := repository.Filter{}
	if filter.Type != "" {
		f["type"] = string(filter.Type)
	}
	if filter.BusinessID != "" {
		f["business_id"] = filter.BusinessID
	}
	docs, err := r.store.FindMany(ctx, repository.CollectionEvents, f, repository.FindOptions{
		Sort:  newestFirst,
		Limit: clampLimit(filter.Limit),
	})
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(docs))
	for _, doc := range docs {
		var event domain.Event
		if err := repository.FromDocument(doc, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
