package notification

import (
	"context"

	"github.com/fastygo/exportflow/domain"
	notify "github.com/fastygo/exportflow/internal/notification"
)

// Dispatcher is implemented by internal/notification.Dispatcher.
type Dispatcher interface {
	GetNotifications(ctx context.Context, businessID string, opts notify.ListOptions) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string) error
	RecordAction(ctx context.Context, notificationID, action string, data map[string]any) (domain.ActionTaken, error)
}

type UseCase struct {
	dispatcher Dispatcher
}

func New(dispatcher Dispatcher) *UseCase {
	return &UseCase{dispatcher: dispatcher}
}

func (uc *UseCase) List(ctx context.Context, businessID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if businessID == "" {
		return nil, domain.ErrBusinessIDRequired
	}
	return uc.dispatcher.GetNotifications(ctx, businessID, notify.ListOptions{
		UnreadOnly: unreadOnly,
		Limit:      limit,
	})
}

func (uc *UseCase) MarkRead(ctx context.Context, notificationID string) error {
	if notificationID == "" {
		return domain.ErrNotificationNotFound
	}
	return uc.dispatcher.MarkAsRead(ctx, notificationID)
}

func (uc *UseCase) Act(ctx context.Context, notificationID, action string, data map[string]any) (domain.ActionTaken, error) {
	if notificationID == "" {
		return domain.ActionTaken{}, domain.ErrNotificationNotFound
	}
	return uc.dispatcher.RecordAction(ctx, notificationID, action, data)
}
