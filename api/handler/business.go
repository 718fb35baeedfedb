package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/api/transport"
	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/pkg/httpcontext"
	businessUC "github.com/fastygo/exportflow/usecase/business"
)

type BusinessHandler struct {
	baseHandler
	uc *businessUC.UseCase
}

func NewBusinessHandler(uc *businessUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *BusinessHandler {
	return &BusinessHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Get business state
// @Tags businesses
// @Router /api/v1/businesses/{id}/state [get]
func (h *BusinessHandler) GetState(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.GetState(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Partially update business state
// @Tags businesses
// @Router /api/v1/businesses/{id}/state [patch]
func (h *BusinessHandler) UpdateState(ctx *fasthttp.RequestCtx) {
	var partial map[string]any
	if !h.decode(ctx, &partial, false) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.UpdateState(stdCtx, pathParam(ctx, "id"), partial)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary State change history, newest first
// @Tags businesses
// @Router /api/v1/businesses/{id}/history [get]
func (h *BusinessHandler) History(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	history, err := h.uc.History(stdCtx, pathParam(ctx, "id"), queryInt(ctx, "limit", 0))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, history)
}

// @Summary Select a target market
// @Tags businesses
// @Router /api/v1/businesses/{id}/markets [post]
func (h *BusinessHandler) SelectMarket(ctx *fasthttp.RequestCtx) {
	var req transport.SelectMarketRequest
	if !h.decode(ctx, &req, false) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.SelectMarket(stdCtx, pathParam(ctx, "id"), req.Country)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, state)
}

// @Summary Recent events for a business
// @Tags businesses
// @Router /api/v1/businesses/{id}/events [get]
func (h *BusinessHandler) Events(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	eventType := domain.EventType(ctx.QueryArgs().Peek("type"))
	events, err := h.uc.Events(stdCtx, pathParam(ctx, "id"), eventType, queryInt(ctx, "limit", 0))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}
