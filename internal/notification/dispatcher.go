package notification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/metrics"
	"github.com/fastygo/exportflow/pkg/render"
	"github.com/fastygo/exportflow/repository"
)

const defaultListLimit = 20

// Publisher is the slice of the event bus the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, in domain.EventInput) (string, error)
}

type Config struct {
	DefaultLimit int
	Now          func() time.Time
}

// ListOptions filters GetNotifications.
type ListOptions struct {
	UnreadOnly bool
	Limit      int
}

// Option overrides template defaults for a single Notify call.
type Option func(*domain.Notification)

func WithPriority(p domain.NotificationPriority) Option {
	return func(n *domain.Notification) {
		n.Priority = p
	}
}

func WithChannels(channels ...domain.Channel) Option {
	return func(n *domain.Notification) {
		n.Channels = append([]domain.Channel(nil), channels...)
	}
}

// Dispatcher builds notifications from templates, stores them and announces them on the bus.
type Dispatcher struct {
	repo     repository.NotificationRepository
	registry *Registry
	bus      Publisher
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cfg      Config
}

func NewDispatcher(repo repository.NotificationRepository, registry *Registry, bus Publisher, logger *zap.Logger, m *metrics.Metrics, cfg Config) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultListLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		repo:     repo,
		registry: registry,
		bus:      bus,
		logger:   logger.Named("notification"),
		metrics:  m,
		cfg:      cfg,
	}
}

// Notify renders the template registered for templateType with data and stores the result.
func (d *Dispatcher) Notify(ctx context.Context, businessID, templateType string, data map[string]any, opts ...Option) (string, error) {
	if businessID == "" {
		return "", domain.ErrBusinessIDRequired
	}
	tmpl, ok := d.registry.Lookup(templateType)
	if !ok {
		return "", domain.UnknownTemplate(templateType)
	}

	values := render.Data(data)
	n := domain.Notification{
		BusinessID: businessID,
		Type:       tmpl.Type,
		Title:      render.Render(tmpl.TitleTemplate, values),
		Message:    render.Render(tmpl.MessageTemplate, values),
		Priority:   tmpl.DefaultPriority,
		Channels:   append([]domain.Channel(nil), tmpl.DefaultChannels...),
		Actions:    renderActions(tmpl.DefaultActions, values),
	}
	for _, opt := range opts {
		opt(&n)
	}
	return d.create(ctx, n)
}

// NotifyCustom stores a caller-built notification without templating.
func (d *Dispatcher) NotifyCustom(ctx context.Context, businessID string, n domain.Notification) (string, error) {
	if businessID == "" {
		return "", domain.ErrBusinessIDRequired
	}
	if strings.TrimSpace(n.Title) == "" {
		return "", domain.ErrTitleRequired
	}
	n.BusinessID = businessID
	if n.Type == "" {
		n.Type = "CUSTOM"
	}
	n.Actions = cloneActions(n.Actions)
	return d.create(ctx, n)
}

// MarkAsRead flips the read flag. Marking twice keeps the first read time.
func (d *Dispatcher) MarkAsRead(ctx context.Context, notificationID string) error {
	n, err := d.repo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.Read {
		return nil
	}
	return d.repo.MarkRead(ctx, notificationID, d.cfg.Now().UTC())
}

// RecordAction stores that the user acted on a notification and publishes NOTIFICATION_ACTION_TAKEN.
func (d *Dispatcher) RecordAction(ctx context.Context, notificationID, action string, data map[string]any) (domain.ActionTaken, error) {
	if strings.TrimSpace(action) == "" {
		return domain.ActionTaken{}, domain.ErrActionRequired
	}
	n, err := d.repo.GetByID(ctx, notificationID)
	if err != nil {
		return domain.ActionTaken{}, err
	}

	taken := domain.ActionTaken{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		BusinessID:     n.BusinessID,
		Action:         action,
		Data:           data,
		TakenAt:        d.cfg.Now().UTC(),
	}
	if err := d.repo.SaveAction(ctx, taken); err != nil {
		return domain.ActionTaken{}, domain.TransientPersistence("record notification action", err)
	}

	d.publish(ctx, domain.EventInput{
		Type:       domain.EventNotificationActionTaken,
		Source:     "notification_dispatcher",
		Priority:   n.Priority.EventPriority(),
		BusinessID: n.BusinessID,
		Payload: map[string]any{
			"notification_id": n.ID,
			"action":          action,
			"data":            data,
		},
	})
	return taken, nil
}

// GetNotifications lists a business's notifications newest first.
func (d *Dispatcher) GetNotifications(ctx context.Context, businessID string, opts ListOptions) ([]domain.Notification, error) {
	if businessID == "" {
		return nil, domain.ErrBusinessIDRequired
	}
	if opts.Limit <= 0 {
		opts.Limit = d.cfg.DefaultLimit
	}
	return d.repo.List(ctx, repository.NotificationFilter{
		BusinessID: businessID,
		UnreadOnly: opts.UnreadOnly,
		Limit:      opts.Limit,
	})
}

func (d *Dispatcher) create(ctx context.Context, n domain.Notification) (string, error) {
	n.ID = uuid.NewString()
	n.CreatedAt = d.cfg.Now().UTC()
	n.Read = false
	n.ReadAt = nil
	if n.Priority == "" {
		n.Priority = domain.NotificationMedium
	}
	if len(n.Channels) == 0 {
		n.Channels = []domain.Channel{domain.ChannelInApp}
	}
	if n.Actions == nil {
		n.Actions = []domain.NotificationAction{}
	}

	if err := d.repo.Save(ctx, &n); err != nil {
		return "", domain.TransientPersistence("persist notification", err)
	}
	d.metrics.IncNotificationCreated(string(n.Priority))

	d.publish(ctx, domain.EventInput{
		Type:       domain.EventNotificationCreated,
		Source:     "notification_dispatcher",
		Priority:   n.Priority.EventPriority(),
		BusinessID: n.BusinessID,
		Payload: map[string]any{
			"notification_id": n.ID,
			"type":            n.Type,
			"title":           n.Title,
			"priority":        string(n.Priority),
		},
	})
	return n.ID, nil
}

func (d *Dispatcher) publish(ctx context.Context, in domain.EventInput) {
	if d.bus == nil {
		return
	}
	if _, err := d.bus.Publish(ctx, in); err != nil {
		d.logger.Warn("failed to publish notification event",
			zap.String("event_type", string(in.Type)),
			zap.String("business_id", in.BusinessID),
			zap.Error(err))
	}
}

func renderActions(actions []domain.NotificationAction, values render.Context) []domain.NotificationAction {
	out := make([]domain.NotificationAction, len(actions))
	for i, a := range actions {
		out[i] = domain.NotificationAction{
			Label:  render.Render(a.Label, values),
			Action: a.Action,
		}
		if a.Data != nil {
			out[i].Data = render.RenderValue(a.Data, values).(map[string]any)
		}
	}
	return out
}

func cloneActions(actions []domain.NotificationAction) []domain.NotificationAction {
	if actions == nil {
		return nil
	}
	out := make([]domain.NotificationAction, len(actions))
	for i, a := range actions {
		out[i] = a
		if a.Data != nil {
			data := make(map[string]any, len(a.Data))
			for k, v := range a.Data {
				data[k] = v
			}
			out[i].Data = data
		}
	}
	return out
}
