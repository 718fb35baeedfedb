package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/api/transport"
	"github.com/fastygo/exportflow/pkg/httpcontext"
	complianceUC "github.com/fastygo/exportflow/usecase/compliance"
)

type ComplianceHandler struct {
	baseHandler
	uc *complianceUC.UseCase
}

func NewComplianceHandler(uc *complianceUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Run the certification expiry sweep now
// @Tags compliance
// @Router /api/v1/sweeps/certifications [post]
func (h *ComplianceHandler) RunSweep(ctx *fasthttp.RequestCtx) {
	var req transport.SweepRequest
	if !h.decode(ctx, &req, true) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	report, err := h.uc.RunSweep(stdCtx, req.RunID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, report)
}
