package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/testutil"
	"github.com/fastygo/exportflow/repository"
	"github.com/fastygo/exportflow/repository/docstore"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.EventInput
}

func (p *recordingPublisher) Publish(_ context.Context, in domain.EventInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, in)
	return "evt", nil
}

func (p *recordingPublisher) ofType(t domain.EventType) []domain.EventInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.EventInput
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type DispatcherSuite struct {
	suite.Suite
	repo       repository.NotificationRepository
	registry   *Registry
	bus        *recordingPublisher
	dispatcher *Dispatcher
	ctx        context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.repo = docstore.NewNotificationRepository(testutil.NewDocumentStore(s.T()))
	s.registry = NewRegistry(DefaultTemplates()...)
	s.registry.Register(domain.Template{
		Type:            "CERT_EXP",
		TitleTemplate:   "{{name}} expiring",
		MessageTemplate: "{{name}} expires on {{date}}",
		DefaultPriority: domain.NotificationHigh,
		DefaultActions: []domain.NotificationAction{
			{Label: "Renew {{name}}", Action: "RENEW", Data: map[string]any{"cert": "{{name}}", "attempt": 1}},
		},
	})
	s.bus = &recordingPublisher{}
	clock := testutil.NewSteppingClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	s.dispatcher = NewDispatcher(s.repo, s.registry, s.bus, nil, nil, Config{Now: clock.Now})
	s.ctx = context.Background()
}

// =============================================================================
// Notify
// =============================================================================

func (s *DispatcherSuite) TestNotifyRendersTemplate() {
	id, err := s.dispatcher.Notify(s.ctx, "biz", "CERT_EXP", map[string]any{"name": "ISO9001", "date": "2025-01-01"})
	s.Require().NoError(err)

	n, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("ISO9001 expiring", n.Title)
	s.Equal("ISO9001 expires on 2025-01-01", n.Message)
	s.Equal(domain.NotificationHigh, n.Priority)
	s.Equal([]domain.Channel{domain.ChannelInApp}, n.Channels)
	s.False(n.Read)
	s.Require().Len(n.Actions, 1)
	s.Equal("Renew ISO9001", n.Actions[0].Label)
	s.Equal("ISO9001", n.Actions[0].Data["cert"])
	s.Equal(float64(1), n.Actions[0].Data["attempt"])

	created := s.bus.ofType(domain.EventNotificationCreated)
	s.Require().Len(created, 1)
	s.Equal(domain.PriorityHigh, created[0].Priority)
	s.Equal(id, created[0].Payload["notification_id"])
}

func (s *DispatcherSuite) TestTemplateDefaultsAreNotMutated() {
	_, err := s.dispatcher.Notify(s.ctx, "biz", "CERT_EXP", map[string]any{"name": "A"})
	s.Require().NoError(err)

	tmpl, ok := s.registry.Lookup("CERT_EXP")
	s.Require().True(ok)
	s.Equal("{{name}}", tmpl.DefaultActions[0].Data["cert"])
}

func (s *DispatcherSuite) TestMissingDataLeavesTokens() {
	id, err := s.dispatcher.Notify(s.ctx, "biz", "CERT_EXP", map[string]any{"name": "ISO9001"})
	s.Require().NoError(err)

	n, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("ISO9001 expires on {{date}}", n.Message)
}

func (s *DispatcherSuite) TestUnknownTemplateCreatesNothing() {
	_, err := s.dispatcher.Notify(s.ctx, "biz", "NOPE", nil)
	s.Require().Error(err)
	s.ErrorIs(err, domain.ErrUnknownTemplate)
	s.True(domain.IsDomainError(err, domain.ErrCodeUnknownTemplate))

	list, err := s.dispatcher.GetNotifications(s.ctx, "biz", ListOptions{})
	s.Require().NoError(err)
	s.Empty(list)
	s.Empty(s.bus.events)
}

func (s *DispatcherSuite) TestPriorityMapping() {
	tests := []struct {
		priority domain.NotificationPriority
		want     domain.Priority
	}{
		{domain.NotificationUrgent, domain.PriorityCritical},
		{domain.NotificationHigh, domain.PriorityHigh},
		{domain.NotificationMedium, domain.PriorityMedium},
		{domain.NotificationLow, domain.PriorityLow},
	}
	for _, tt := range tests {
		s.bus.events = nil
		_, err := s.dispatcher.Notify(s.ctx, "biz", "CERT_EXP", nil, WithPriority(tt.priority))
		s.Require().NoError(err)
		s.Require().Len(s.bus.events, 1)
		s.Equal(tt.want, s.bus.events[0].Priority, string(tt.priority))
	}
}

func (s *DispatcherSuite) TestReRegisterOverwrites() {
	s.registry.Register(domain.Template{Type: "CERT_EXP", TitleTemplate: "replaced", DefaultPriority: domain.NotificationLow})

	id, err := s.dispatcher.Notify(s.ctx, "biz", "CERT_EXP", map[string]any{"name": "x"}, WithChannels(domain.ChannelSMS))
	s.Require().NoError(err)
	n, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("replaced", n.Title)
	s.Equal([]domain.Channel{domain.ChannelSMS}, n.Channels)
	s.Empty(n.Actions)
}

func (s *DispatcherSuite) TestDefaultTemplatesRender() {
	id, err := s.dispatcher.Notify(s.ctx, "biz", TemplateCertificationExpiring, map[string]any{
		"days": 14,
		"certification": map[string]any{
			"id":          "iso",
			"name":        "ISO9001",
			"expiry_date": time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	})
	s.Require().NoError(err)

	n, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("ISO9001 expires in 14 days", n.Title)
	s.Contains(n.Message, "expires on 2025-01-15")
	s.Equal("iso", n.Actions[0].Data["certification_id"])
}

// =============================================================================
// Custom, read, actions, listing
// =============================================================================

func (s *DispatcherSuite) TestNotifyCustom() {
	id, err := s.dispatcher.NotifyCustom(s.ctx, "biz", domain.Notification{
		Title:    "Literal {{title}}",
		Message:  "Nothing rendered",
		Priority: domain.NotificationUrgent,
	})
	s.Require().NoError(err)

	n, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("Literal {{title}}", n.Title)
	s.Equal("biz", n.BusinessID)
	s.Equal(domain.PriorityCritical, s.bus.events[0].Priority)

	_, err = s.dispatcher.NotifyCustom(s.ctx, "biz", domain.Notification{})
	s.ErrorIs(err, domain.ErrTitleRequired)
}

func (s *DispatcherSuite) TestMarkAsRead() {
	id, err := s.dispatcher.Notify(s.ctx, "biz", "CERT_EXP", nil)
	s.Require().NoError(err)

	s.Require().NoError(s.dispatcher.MarkAsRead(s.ctx, id))
	first, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.True(first.Read)
	s.Require().NotNil(first.ReadAt)

	s.Require().NoError(s.dispatcher.MarkAsRead(s.ctx, id))
	second, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.True(first.ReadAt.Equal(*second.ReadAt))

	s.ErrorIs(s.dispatcher.MarkAsRead(s.ctx, "missing"), domain.ErrNotificationNotFound)
}

func (s *DispatcherSuite) TestRecordAction() {
	id, err := s.dispatcher.Notify(s.ctx, "biz", "CERT_EXP", map[string]any{"name": "ISO9001"})
	s.Require().NoError(err)

	taken, err := s.dispatcher.RecordAction(s.ctx, id, "RENEW", map[string]any{"cert": "ISO9001"})
	s.Require().NoError(err)
	s.Equal(id, taken.NotificationID)
	s.Equal("biz", taken.BusinessID)

	events := s.bus.ofType(domain.EventNotificationActionTaken)
	s.Require().Len(events, 1)
	s.Equal("RENEW", events[0].Payload["action"])
	s.Equal(domain.PriorityHigh, events[0].Priority)

	_, err = s.dispatcher.RecordAction(s.ctx, "missing", "RENEW", nil)
	s.ErrorIs(err, domain.ErrNotificationNotFound)

	_, err = s.dispatcher.RecordAction(s.ctx, id, " ", nil)
	s.ErrorIs(err, domain.ErrActionRequired)
}

func (s *DispatcherSuite) TestGetNotifications() {
	var ids []string
	for i := 0; i < 25; i++ {
		id, err := s.dispatcher.Notify(s.ctx, "biz", "CERT_EXP", nil)
		s.Require().NoError(err)
		ids = append(ids, id)
	}
	_, err := s.dispatcher.Notify(s.ctx, "other", "CERT_EXP", nil)
	s.Require().NoError(err)
	s.Require().NoError(s.dispatcher.MarkAsRead(s.ctx, ids[24]))

	list, err := s.dispatcher.GetNotifications(s.ctx, "biz", ListOptions{})
	s.Require().NoError(err)
	s.Len(list, 20)
	s.Equal(ids[24], list[0].ID)
	s.Equal(ids[23], list[1].ID)

	unread, err := s.dispatcher.GetNotifications(s.ctx, "biz", ListOptions{UnreadOnly: true, Limit: 5})
	s.Require().NoError(err)
	s.Len(unread, 5)
	s.Equal(ids[23], unread[0].ID)

	_, err = s.dispatcher.GetNotifications(s.ctx, "", ListOptions{})
	s.ErrorIs(err, domain.ErrBusinessIDRequired)
}

func TestRegistryTypes(t *testing.T) {
	r := NewRegistry(DefaultTemplates()...)
	types := r.Types()
	if len(types) != 5 || types[0] != TemplateCertificationExpired {
		t.Fatalf("unexpected template types: %v", types)
	}
}
