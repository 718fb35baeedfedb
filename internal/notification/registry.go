package notification

import (
	"sort"
	"sync"

	"github.com/fastygo/exportflow/domain"
)

// Template types shipped with the service.
const (
	TemplateCertificationExpiring = "CERTIFICATION_EXPIRING"
	TemplateCertificationExpired  = "CERTIFICATION_EXPIRED"
	TemplateRegulatoryRequirement = "REGULATORY_REQUIREMENT"
	TemplateTimelineGenerated     = "TIMELINE_GENERATED"
	TemplateMarketSelected        = "MARKET_SELECTED"
)

// Registry holds notification templates keyed by type. Build it once at startup
// and hand it to NewDispatcher.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]domain.Template
}

func NewRegistry(templates ...domain.Template) *Registry {
	r := &Registry{templates: make(map[string]domain.Template, len(templates))}
	for _, t := range templates {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing any template of the same type.
func (r *Registry) Register(t domain.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Type] = t
}

func (r *Registry) Lookup(templateType string) (domain.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[templateType]
	return t, ok
}

// Types lists registered template types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.templates))
	for t := range r.templates {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultTemplates are the templates the monitors and use cases rely on.
func DefaultTemplates() []domain.Template {
	return []domain.Template{
		{
			Type:            TemplateCertificationExpiring,
			TitleTemplate:   "{{certification.name}} expires in {{days}} days",
			MessageTemplate: "Your {{certification.name}} certification expires on {{certification.expiry_date}}. Start the renewal now to keep exporting without interruption.",
			DefaultPriority: domain.NotificationMedium,
			DefaultChannels: []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
			DefaultActions: []domain.NotificationAction{
				{Label: "Start renewal", Action: "RENEW_CERTIFICATION", Data: map[string]any{"certification_id": "{{certification.id}}"}},
				{Label: "Remind me later", Action: "SNOOZE", Data: map[string]any{"certification_id": "{{certification.id}}"}},
			},
		},
		{
			Type:            TemplateCertificationExpired,
			TitleTemplate:   "{{certification.name}} has expired",
			MessageTemplate: "Your {{certification.name}} certification expired on {{certification.expiry_date}}. Shipments that depend on it may be held at the border.",
			DefaultPriority: domain.NotificationUrgent,
			DefaultChannels: []domain.Channel{domain.ChannelInApp, domain.ChannelEmail, domain.ChannelSMS},
			DefaultActions: []domain.NotificationAction{
				{Label: "Renew now", Action: "RENEW_CERTIFICATION", Data: map[string]any{"certification_id": "{{certification.id}}"}},
			},
		},
		{
			Type:            TemplateRegulatoryRequirement,
			TitleTemplate:   "New requirement for {{market}}: {{requirement.name}}",
			MessageTemplate: "Exporting to {{market}} requires {{requirement.name}} from {{requirement.issuing_authority}}. Processing takes about {{requirement.processing_time_days}} days.",
			DefaultPriority: domain.NotificationHigh,
			DefaultChannels: []domain.Channel{domain.ChannelInApp},
			DefaultActions: []domain.NotificationAction{
				{Label: "Generate timeline", Action: "GENERATE_TIMELINE", Data: map[string]any{"market": "{{market}}"}},
				{Label: "View requirement", Action: "VIEW_REQUIREMENT", Data: map[string]any{"requirement_id": "{{requirement.id}}"}},
			},
		},
		{
			Type:            TemplateTimelineGenerated,
			TitleTemplate:   "Your {{market}} compliance timeline is ready",
			MessageTemplate: "{{task_count}} tasks scheduled, finishing by {{completion_date}}.",
			DefaultPriority: domain.NotificationMedium,
			DefaultChannels: []domain.Channel{domain.ChannelInApp},
			DefaultActions: []domain.NotificationAction{
				{Label: "Open timeline", Action: "VIEW_TIMELINE", Data: map[string]any{"timeline_id": "{{timeline_id}}"}},
			},
		},
		{
			Type:            TemplateMarketSelected,
			TitleTemplate:   "{{market}} added to your target markets",
			MessageTemplate: "We are checking regulatory requirements for {{market}}.",
			DefaultPriority: domain.NotificationLow,
			DefaultChannels: []domain.Channel{domain.ChannelInApp},
			DefaultActions: []domain.NotificationAction{
				{Label: "View market report", Action: "VIEW_MARKET_REPORT", Data: map[string]any{"market": "{{market}}"}},
			},
		},
	}
}
