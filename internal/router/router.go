package router

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	apiHandler "github.com/fastygo/exportflow/api/handler"
)

type Handlers struct {
	Business     *apiHandler.BusinessHandler
	Market       *apiHandler.MarketHandler
	Timeline     *apiHandler.TimelineHandler
	Notification *apiHandler.NotificationHandler
	Compliance   *apiHandler.ComplianceHandler
	Health       *apiHandler.HealthHandler
}

// New registers the API routes. A nil gatherer leaves /metrics out.
func New(handlers Handlers, gatherer prometheus.Gatherer) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	r.GET("/health/live", handlers.Health.Live)
	if gatherer != nil {
		r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		))
	}

	v1 := r.Group("/api/v1")

	// Business state
	v1.GET("/businesses/{id}/state", handlers.Business.GetState)
	v1.PATCH("/businesses/{id}/state", handlers.Business.UpdateState)
	v1.GET("/businesses/{id}/history", handlers.Business.History)
	v1.GET("/businesses/{id}/events", handlers.Business.Events)
	v1.POST("/businesses/{id}/markets", handlers.Business.SelectMarket)

	// Markets
	v1.GET("/markets", handlers.Market.List)
	v1.GET("/businesses/{id}/markets/{country}/report", handlers.Market.Report)

	// Timelines
	v1.POST("/businesses/{id}/timelines/{market}", handlers.Timeline.Generate)
	v1.GET("/businesses/{id}/timelines/{market}", handlers.Timeline.Get)
	v1.PATCH("/timelines/{id}/tasks/{taskId}", handlers.Timeline.UpdateTask)

	// Notifications
	v1.GET("/businesses/{id}/notifications", handlers.Notification.List)
	v1.POST("/notifications/{id}/read", handlers.Notification.MarkRead)
	v1.POST("/notifications/{id}/actions", handlers.Notification.Act)

	// Compliance
	v1.POST("/sweeps/certifications", handlers.Compliance.RunSweep)

	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.SetContentType("application/json")
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString(`{"success":false,"error":"route not found","code":"NOT_FOUND"}`)
	}

	return r
}
