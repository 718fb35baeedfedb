package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/api/transport"
	"github.com/fastygo/exportflow/pkg/httpcontext"
	notificationUC "github.com/fastygo/exportflow/usecase/notification"
)

type NotificationHandler struct {
	baseHandler
	uc *notificationUC.UseCase
}

func NewNotificationHandler(uc *notificationUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List notifications, newest first
// @Tags notifications
// @Router /api/v1/businesses/{id}/notifications [get]
func (h *NotificationHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.uc.List(stdCtx, pathParam(ctx, "id"), queryBool(ctx, "unread"), queryInt(ctx, "limit", 0))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, items)
}

// @Summary Mark a notification as read
// @Tags notifications
// @Router /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.MarkRead(stdCtx, pathParam(ctx, "id")); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"read": true})
}

// @Summary Record an action taken on a notification
// @Tags notifications
// @Router /api/v1/notifications/{id}/actions [post]
func (h *NotificationHandler) Act(ctx *fasthttp.RequestCtx) {
	var req transport.ActionRequest
	if !h.decode(ctx, &req, false) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	taken, err := h.uc.Act(stdCtx, pathParam(ctx, "id"), req.Action, req.Data)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, taken)
}
