package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/api/transport"
	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/infrastructure/monitor"
	"github.com/fastygo/exportflow/pkg/httpcontext"
)

// SubscriberCounter is satisfied by the event bus.
type SubscriberCounter interface {
	SubscriberCount(eventType domain.EventType) int
}

type healthReport struct {
	monitor.Status
	Uptime      string         `json:"uptime"`
	Subscribers map[string]int `json:"subscribers,omitempty"`
}

// HealthHandler serves the liveness and readiness checks.
type HealthHandler struct {
	baseHandler
	monitor   *monitor.Monitor
	subs      SubscriberCounter
	startedAt time.Time
}

// NewHealthHandler builds the health handler. subs may be nil.
func NewHealthHandler(mon *monitor.Monitor, subs SubscriberCounter, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
		subs:        subs,
		startedAt:   time.Now(),
	}
}

// Check pings every dependency before answering, so a stale background result never
// marks the service ready.
//
// @Summary Readiness check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	report := h.report(h.monitor.Refresh(stdCtx))
	if report.Healthy() {
		h.respondSuccess(ctx, http.StatusOK, report)
		return
	}
	h.logger.Warn("readiness check failed",
		zap.Bool("store", report.Store),
		zap.Bool("redis", report.Redis),
		zap.Int("outbox_size", report.OutboxSize))
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", report))
}

// Live answers from the last background poll without touching dependencies.
//
// @Summary Liveness check
// @Tags health
// @Router /health/live [get]
func (h *HealthHandler) Live(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.report(h.monitor.GetStatus()))
}

func (h *HealthHandler) report(status monitor.Status) healthReport {
	report := healthReport{
		Status: status,
		Uptime: time.Since(h.startedAt).Truncate(time.Second).String(),
	}
	if h.subs == nil {
		return report
	}
	for _, t := range domain.EventTypes() {
		if n := h.subs.SubscriberCount(t); n > 0 {
			if report.Subscribers == nil {
				report.Subscribers = make(map[string]int)
			}
			report.Subscribers[string(t)] = n
		}
	}
	return report
}
