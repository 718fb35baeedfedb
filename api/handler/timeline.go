package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/api/transport"
	"github.com/fastygo/exportflow/pkg/httpcontext"
	timelineUC "github.com/fastygo/exportflow/usecase/timeline"
)

type TimelineHandler struct {
	baseHandler
	uc *timelineUC.UseCase
}

func NewTimelineHandler(uc *timelineUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TimelineHandler {
	return &TimelineHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Generate (or regenerate) the timeline for a market
// @Tags timelines
// @Router /api/v1/businesses/{id}/timelines/{market} [post]
func (h *TimelineHandler) Generate(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tl, err := h.uc.Generate(stdCtx, pathParam(ctx, "id"), pathParam(ctx, "market"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, tl)
}

// @Summary Get the timeline for a market
// @Tags timelines
// @Router /api/v1/businesses/{id}/timelines/{market} [get]
func (h *TimelineHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tl, err := h.uc.Get(stdCtx, pathParam(ctx, "id"), pathParam(ctx, "market"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tl)
}

// @Summary Update a task status
// @Tags timelines
// @Router /api/v1/timelines/{id}/tasks/{taskId} [patch]
func (h *TimelineHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	var req transport.TaskStatusRequest
	if !h.decode(ctx, &req, false) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tl, err := h.uc.UpdateTaskStatus(stdCtx, pathParam(ctx, "id"), pathParam(ctx, "taskId"), req.Status)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, tl)
}
