package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// StopFunc releases one component.
type StopFunc func(ctx context.Context) error

type component struct {
	name string
	stop StopFunc
}

// Manager stops registered components in reverse registration order, so whatever was
// started last (usually the HTTP server) goes first and the stores close last.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu         sync.Mutex
	components []component
	stopped    bool
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger.Named("lifecycle"),
	}
}

// Register adds a component. Registering after Shutdown stops it immediately.
func (m *Manager) Register(name string, stop StopFunc) {
	if stop == nil {
		return
	}
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		m.logger.Warn("component registered after shutdown", zap.String("component", name))
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		_ = stop(ctx)
		return
	}
	m.components = append(m.components, component{name: name, stop: stop})
	m.mu.Unlock()
}

// Closer adapts io.Closer-style components.
func Closer(close func() error) StopFunc {
	return func(context.Context) error { return close() }
}

// Shutdown stops every component once, bounded by the manager timeout. Errors are joined.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	components := m.components
	m.components = nil
	m.stopped = true
	m.mu.Unlock()

	var result error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := m.stop(ctx, c); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", c.name), zap.Error(err))
			result = errors.Join(result, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		m.logger.Info("component stopped", zap.String("component", c.name))
	}
	return result
}

func (m *Manager) stop(ctx context.Context, c component) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during stop: %v", r)
		}
	}()
	return c.stop(ctx)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("shutdown signal received")
		}
	}()
	return ctx, stop
}
