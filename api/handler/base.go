package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/api/transport"
	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/pkg/httpcontext"
	"github.com/fastygo/exportflow/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, log *zap.Logger) baseHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: log}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	var (
		stdCtx context.Context
		cancel context.CancelFunc
	)
	if h.adapter != nil {
		stdCtx, cancel = h.adapter.Attach(ctx)
	} else {
		stdCtx, cancel = context.WithCancel(context.Background())
	}
	if strings.HasPrefix(string(ctx.Path()), "/api/v1/businesses/") {
		stdCtx = logger.ContextWithBusinessID(stdCtx, pathParam(ctx, "id"))
	}
	return stdCtx, cancel
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(payload.Marshal())
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, stdCtx context.Context, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(stdCtx, h.logger).Error("request failed",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Error(err))
	}
	h.respondJSON(ctx, status, transport.NewError(code, err.Error(), nil))
}

func (h baseHandler) respondInvalid(ctx *fasthttp.RequestCtx, message string) {
	h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), message, nil))
}

// decode reads a JSON body into v. An empty body leaves v untouched when optional is set.
func (h baseHandler) decode(ctx *fasthttp.RequestCtx, v interface{}, optional bool) bool {
	body := ctx.PostBody()
	if len(body) == 0 && optional {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		h.respondInvalid(ctx, domain.ErrInvalidPayload.Message)
		return false
	}
	return true
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return strings.TrimSpace(v)
}

func queryInt(ctx *fasthttp.RequestCtx, name string, fallback int) int {
	if v, err := strconv.Atoi(string(ctx.QueryArgs().Peek(name))); err == nil {
		return v
	}
	return fallback
}

func queryBool(ctx *fasthttp.RequestCtx, name string) bool {
	v, err := strconv.ParseBool(string(ctx.QueryArgs().Peek(name)))
	return err == nil && v
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	case domain.IsDomainError(err, domain.ErrCodeCycleDetected):
		return http.StatusConflict, string(domain.ErrCodeCycleDetected)
	case domain.IsDomainError(err, domain.ErrCodeUnknownTemplate):
		return http.StatusUnprocessableEntity, string(domain.ErrCodeUnknownTemplate)
	case domain.IsDomainError(err, domain.ErrCodeTransientPersistence):
		return http.StatusInternalServerError, string(domain.ErrCodeTransientPersistence)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}
