package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the orchestration engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsPublished          *prometheus.CounterVec
	EventPersistenceFailures prometheus.Counter
	HandlerFailures          *prometheus.CounterVec

	StateUpdates   prometheus.Counter
	StateConflicts prometheus.Counter

	NotificationsCreated   *prometheus.CounterVec
	ThresholdNotifications *prometheus.CounterVec

	TimelinesGenerated prometheus.Counter

	SweepDuration prometheus.Histogram
	SweepOutcomes *prometheus.CounterVec

	OutboxReplayed prometheus.Counter
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exportflow_events_published_total",
			Help: "Events published on the bus by type",
		}, []string{"type"}),

		EventPersistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "exportflow_event_persistence_failures_total",
			Help: "Events dispatched even though persisting them failed",
		}),

		HandlerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exportflow_event_handler_failures_total",
			Help: "Subscriber failures by event type and reason",
		}, []string{"type", "reason"}), // reason: "error", "panic", "timeout"

		StateUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "exportflow_state_updates_total",
			Help: "Business state updates committed",
		}),

		StateConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "exportflow_state_update_conflicts_total",
			Help: "Optimistic version conflicts observed while updating business state",
		}),

		NotificationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exportflow_notifications_created_total",
			Help: "Notifications created by priority",
		}, []string{"priority"}),

		ThresholdNotifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exportflow_certification_threshold_notifications_total",
			Help: "Certification expiry notices sent by threshold",
		}, []string{"threshold"}),

		TimelinesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "exportflow_timelines_generated_total",
			Help: "Timelines generated",
		}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "exportflow_certification_sweep_duration_seconds",
			Help:    "Duration of a full certification expiry sweep",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),

		SweepOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exportflow_certification_sweep_businesses_total",
			Help: "Businesses visited by certification sweeps by outcome",
		}, []string{"outcome"}), // outcome: "checked", "skipped", "failed"

		OutboxReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "exportflow_outbox_events_replayed_total",
			Help: "Events written to the event store from the outbox",
		}),
	}
}

func (m *Metrics) IncEventPublished(eventType string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncEventPersistenceFailure() {
	if m != nil {
		m.EventPersistenceFailures.Inc()
	}
}

func (m *Metrics) IncHandlerFailure(eventType, reason string) {
	if m != nil {
		m.HandlerFailures.WithLabelValues(eventType, reason).Inc()
	}
}

func (m *Metrics) IncStateUpdate() {
	if m != nil {
		m.StateUpdates.Inc()
	}
}

func (m *Metrics) IncStateConflict() {
	if m != nil {
		m.StateConflicts.Inc()
	}
}

func (m *Metrics) IncNotificationCreated(priority string) {
	if m != nil {
		m.NotificationsCreated.WithLabelValues(priority).Inc()
	}
}

func (m *Metrics) IncThresholdNotification(threshold string) {
	if m != nil {
		m.ThresholdNotifications.WithLabelValues(threshold).Inc()
	}
}

func (m *Metrics) IncTimelineGenerated() {
	if m != nil {
		m.TimelinesGenerated.Inc()
	}
}

// ObserveSweep records a finished sweep.
func (m *Metrics) ObserveSweep(d time.Duration, checked, skipped, failed int) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
	m.SweepOutcomes.WithLabelValues("checked").Add(float64(checked))
	m.SweepOutcomes.WithLabelValues("skipped").Add(float64(skipped))
	m.SweepOutcomes.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) AddOutboxReplayed(n int) {
	if m != nil {
		m.OutboxReplayed.Add(float64(n))
	}
}
