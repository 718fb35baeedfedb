package docstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

type timelineRepository struct {
	store repository.DocumentStore
}

func NewTimelineRepository(store repository.DocumentStore) repository.TimelineRepository {
	return &timelineRepository{store: store}
}

// Save replaces the stored tasks wholesale. Tasks is an array, so the merge in
// UpdateOne overwrites it instead of patching individual entries.
func (r *timelineRepository) Save(ctx context.Context, t *domain.Timeline) error {
	if t == nil {
		return domain.ErrInvalidPayload
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	doc, err := repository.ToDocument(t)
	if err != nil {
		return err
	}
	doc[repository.IDField] = t.ID
	return r.store.UpdateOne(ctx, repository.CollectionTimelines,
		repository.Filter{repository.IDField: t.ID},
		doc,
		repository.UpdateOptions{Upsert: true},
	)
}

func (r *timelineRepository) GetByID(ctx context.Context, id string) (*domain.Timeline, error) {
	return r.findOne(ctx, repository.Filter{repository.IDField: id})
}

func (r *timelineRepository) FindByBusinessMarket(ctx context.Context, businessID, market string) (*domain.Timeline, error) {
	return r.findOne(ctx, repository.Filter{"business_id": businessID, "market": market})
}

func (r *timelineRepository) findOne(ctx context.Context, filter repository.Filter) (*domain.Timeline, error) {
	doc, err := r.store.FindOne(ctx, repository.CollectionTimelines, filter)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrTimelineNotFound
		}
		return nil, err
	}
	var t domain.Timeline
	if err := repository.FromDocument(doc, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
