package docstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/repository"
)

type notificationRepository struct {
	store repository.DocumentStore
}

func NewNotificationRepository(store repository.DocumentStore) repository.NotificationRepository {
	return &notificationRepository{store: store}
}

func (r *notificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return domain.ErrInvalidPayload
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	doc, err := repository.ToDocument(n)
	if err != nil {
		return err
	}
	doc[repository.IDField] = n.ID
	doc[repository.SortField] = sortKey(n.CreatedAt)
	return r.store.InsertOne(ctx, repository.CollectionNotifications, doc)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	doc, err := r.store.FindOne(ctx, repository.CollectionNotifications, repository.Filter{repository.IDField: id})
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	var n domain.Notification
	if err := repository.FromDocument(doc, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	err := r.store.UpdateOne(ctx, repository.CollectionNotifications,
		repository.Filter{repository.IDField: id},
		repository.Document{"read": true, "read_at": at},
		repository.UpdateOptions{},
	)
	if domain.IsDomainError(err, domain.ErrCodeNotFound) {
		return domain.ErrNotificationNotFound
	}
	return err
}

func (r *notificationRepository) List(ctx context.Context, filter repository.NotificationFilter) ([]domain.Notification, error) {
	f := repository.Filter{"business_id": filter.BusinessID}
	if filter.UnreadOnly {
		f["read"] = false
	}
	docs, err := r.store.FindMany(ctx, repository.CollectionNotifications, f, repository.FindOptions{
		Sort:  newestFirst,
		Limit: clampLimit(filter.Limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(docs))
	for _, doc := range docs {
		var n domain.Notification
		if err := repository.FromDocument(doc, &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *notificationRepository) SaveAction(ctx context.Context, action domain.ActionTaken) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	doc, err := repository.ToDocument(action)
	if err != nil {
		return err
	}
	doc[repository.IDField] = action.ID
	doc[repository.SortField] = sortKey(action.TakenAt)
	return r.store.InsertOne(ctx, repository.CollectionNotificationActions, doc)
}
