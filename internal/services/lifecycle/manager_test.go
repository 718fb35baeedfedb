package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsInReverseOrder(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	for _, name := range []string{"store", "bus", "http"} {
		name := name
		m.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "bus", "store"}, order)

	// Second shutdown has nothing left to stop.
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownJoinsErrors(t *testing.T) {
	m := New(time.Second, nil)
	boom := errors.New("boom")
	stopped := false

	m.Register("store", func(context.Context) error {
		stopped = true
		return nil
	})
	m.Register("outbox", Closer(func() error { return boom }))
	m.Register("kafka", func(context.Context) error { panic("broken client") })

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "kafka: panic during stop")
	assert.True(t, stopped)
}

func TestShutdownHonoursTimeout(t *testing.T) {
	m := New(20*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegisterAfterShutdownStopsImmediately(t *testing.T) {
	m := New(time.Second, nil)
	require.NoError(t, m.Shutdown(context.Background()))

	stopped := false
	m.Register("late", func(context.Context) error {
		stopped = true
		return nil
	})
	assert.True(t, stopped)
}
