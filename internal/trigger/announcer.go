package trigger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/notification"
)

// Announcer tells the business about facts other components produced.
type Announcer struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewAnnouncer(notifier Notifier, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Announcer{notifier: notifier, logger: logger.Named("announcer")}
}

func (a *Announcer) Register(sub Subscriber) {
	sub.Subscribe(domain.EventMarketSelected, a.marketSelected)
	sub.Subscribe(domain.EventTimelineGenerated, a.timelineGenerated)
}

func (a *Announcer) marketSelected(ctx context.Context, evt domain.Event) error {
	return a.announce(ctx, evt, notification.TemplateMarketSelected, map[string]any{
		"market": stringField(evt.Payload, "market"),
	})
}

func (a *Announcer) timelineGenerated(ctx context.Context, evt domain.Event) error {
	return a.announce(ctx, evt, notification.TemplateTimelineGenerated, evt.Payload)
}

func (a *Announcer) announce(ctx context.Context, evt domain.Event, template string, data map[string]any) error {
	if evt.BusinessID == "" {
		a.logger.Debug("skipping event without business", zap.String("event_id", evt.ID))
		return nil
	}
	if _, err := a.notifier.Notify(ctx, evt.BusinessID, template, data); err != nil {
		return fmt.Errorf("announce %s: %w", evt.Type, err)
	}
	return nil
}
