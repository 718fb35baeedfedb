package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/pkg/httpcontext"
	marketUC "github.com/fastygo/exportflow/usecase/market"
)

type MarketHandler struct {
	baseHandler
	uc *marketUC.UseCase
}

func NewMarketHandler(uc *marketUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *MarketHandler {
	return &MarketHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Market report for the business's industry
// @Tags markets
// @Router /api/v1/businesses/{id}/markets/{country}/report [get]
func (h *MarketHandler) Report(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	report, err := h.uc.Report(stdCtx, pathParam(ctx, "id"), pathParam(ctx, "country"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}

// @Summary Countries with market data
// @Tags markets
// @Router /api/v1/markets [get]
func (h *MarketHandler) List(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.uc.Markets())
}
