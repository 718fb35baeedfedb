package httpcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestAttach(t *testing.T) {
	t.Run("keeps caller request id", func(t *testing.T) {
		var rc fasthttp.RequestCtx
		rc.Request.Header.Set(HeaderRequestID, "req-1")
		rc.Request.Header.SetMethod("GET")
		rc.Request.SetRequestURI("/health")

		ctx, cancel := NewAdapter(nil, time.Second).Attach(&rc)
		defer cancel()

		assert.Equal(t, "req-1", string(rc.Response.Header.Peek(HeaderRequestID)))
		assert.Equal(t, "GET /health", ctx.Value(KeyRoute))
		_, ok := ctx.Deadline()
		assert.True(t, ok)
	})

	t.Run("generates a stable id", func(t *testing.T) {
		var rc fasthttp.RequestCtx
		first := RequestID(&rc)
		assert.NotEmpty(t, first)
		assert.Equal(t, first, RequestID(&rc))
	})

	t.Run("base cancellation reaches requests", func(t *testing.T) {
		base, stop := context.WithCancel(context.Background())
		var rc fasthttp.RequestCtx
		ctx, cancel := NewAdapter(base, time.Minute).Attach(&rc)
		defer cancel()

		stop()
		<-ctx.Done()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}
