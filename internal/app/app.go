// Package app wires the service from configuration. cmd/exportflow and the API tests share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/exportflow/api/handler"
	"github.com/fastygo/exportflow/internal/catalog"
	"github.com/fastygo/exportflow/internal/config"
	"github.com/fastygo/exportflow/internal/eventbus"
	"github.com/fastygo/exportflow/internal/infrastructure/buffer"
	"github.com/fastygo/exportflow/internal/infrastructure/kafka"
	"github.com/fastygo/exportflow/internal/infrastructure/lock"
	"github.com/fastygo/exportflow/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/exportflow/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/exportflow/internal/infrastructure/redis"
	"github.com/fastygo/exportflow/internal/metrics"
	"github.com/fastygo/exportflow/internal/notification"
	appRouter "github.com/fastygo/exportflow/internal/router"
	"github.com/fastygo/exportflow/internal/services"
	"github.com/fastygo/exportflow/internal/services/lifecycle"
	"github.com/fastygo/exportflow/internal/state"
	"github.com/fastygo/exportflow/internal/timeline"
	"github.com/fastygo/exportflow/internal/trigger"
	"github.com/fastygo/exportflow/pkg/httpcontext"
	"github.com/fastygo/exportflow/repository"
	"github.com/fastygo/exportflow/repository/boltdb"
	"github.com/fastygo/exportflow/repository/docstore"
	"github.com/fastygo/exportflow/repository/postgres"
	redisRepo "github.com/fastygo/exportflow/repository/redis"
	businessUC "github.com/fastygo/exportflow/usecase/business"
	complianceUC "github.com/fastygo/exportflow/usecase/compliance"
	marketUC "github.com/fastygo/exportflow/usecase/market"
	notificationUC "github.com/fastygo/exportflow/usecase/notification"
	timelineUC "github.com/fastygo/exportflow/usecase/timeline"
)

const monitorInterval = 10 * time.Second

// App holds the wired components. Build it with New, run background work with Start and
// release everything with Shutdown.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store          repository.DocumentStore
	Bus            *eventbus.Bus
	States         *state.Store
	Notifications  *notification.Dispatcher
	Timelines      *timeline.Scheduler
	Certifications *trigger.CertificationMonitor
	Regulatory     *trigger.RegulatoryMonitor
	Catalog        *catalog.Catalog

	Outbox    *services.Outbox
	Monitor   *monitor.Monitor
	Scheduler *services.Scheduler
	Lifecycle *lifecycle.Manager

	Business   *businessUC.UseCase
	Compliance *complianceUC.UseCase
	Router     *router.Router
}

// New builds the application. On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  prometheus.NewRegistry(),
		Lifecycle: lifecycle.New(cfg.Context.ShutdownTimeout, logger),
	}
	defer func() {
		if err != nil {
			_ = a.Lifecycle.Shutdown(context.Background())
		}
	}()

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if a.Store, err = a.openStore(ctx); err != nil {
		return nil, err
	}

	redisClient, err := redisInfra.Connect(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	locker, ledger := a.coordination(redisClient)

	outboxStore, err := buffer.Open(cfg.Buffer.Path, "outbox", cfg.Buffer.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	a.Lifecycle.Register("outbox", lifecycle.Closer(outboxStore.Close))

	a.Monitor = monitor.New(a.Store, redisClient, outboxStore, logger, monitor.Config{
		StoreDriver: cfg.Storage.Driver,
		Interval:    monitorInterval,
	})
	a.Monitor.Refresh(ctx)

	events := docstore.NewEventRepository(a.Store)
	a.Outbox = services.NewOutbox(outboxStore, events, a.Monitor, logger, a.Metrics, services.OutboxConfig{
		BatchSize:  cfg.Buffer.BatchSize,
		MaxRetries: cfg.Buffer.MaxRetry,
	})
	a.Bus = eventbus.New(events, eventbus.Config{
		HandlerTimeout: cfg.Bus.HandlerTimeout,
		FailureBuffer:  cfg.Bus.FailureBuffer,
		Outbox:         a.Outbox,
	}, logger, a.Metrics)

	if a.Catalog, err = catalog.Load(cfg.Catalog.Path); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a.States = state.NewStore(docstore.NewStateRepository(a.Store), locker, a.Bus, logger, a.Metrics, state.Config{})
	a.Notifications = notification.NewDispatcher(
		docstore.NewNotificationRepository(a.Store),
		notification.NewRegistry(notification.DefaultTemplates()...),
		a.Bus, logger, a.Metrics,
		notification.Config{DefaultLimit: cfg.Notifications.DefaultLimit},
	)
	a.Timelines = timeline.NewScheduler(
		docstore.NewTimelineRepository(a.Store), a.Catalog, a.States, locker, a.Bus, logger, a.Metrics,
		timeline.Config{BufferDays: cfg.Scheduler.BufferDays},
	)
	a.Certifications = trigger.NewCertificationMonitor(
		a.States, ledger, docstore.NewCheckpointStore(a.Store), a.Notifications, a.Bus, logger, a.Metrics,
		trigger.CertificationConfig{Concurrency: cfg.Sweep.Concurrency},
	)
	a.Regulatory = trigger.NewRegulatoryMonitor(a.States, a.Catalog, a.Notifications, a.Bus, logger)
	a.Regulatory.Register(a.Bus)
	trigger.NewAnnouncer(a.Notifications, logger).Register(a.Bus)

	if cfg.KafkaEnabled() {
		client, err := kafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		mirror := kafka.NewMirror(client, cfg.Kafka.Topic, logger)
		mirror.Register(a.Bus)
		a.Lifecycle.Register("kafka", mirror.Close)
	}

	var sweeper services.Sweeper
	sweepSchedule := ""
	if cfg.Sweep.Enabled {
		sweeper, sweepSchedule = a.Certifications, cfg.Sweep.Schedule
	}
	if a.Scheduler, err = services.NewScheduler(sweeper, a.Outbox, logger, services.SchedulerConfig{
		SweepSchedule: sweepSchedule,
		DrainInterval: cfg.Buffer.SyncInterval,
	}); err != nil {
		return nil, err
	}

	a.Business = businessUC.New(a.States, a.Bus, a.Bus, logger)
	a.Compliance = complianceUC.New(a.Certifications, logger)

	adapter := httpcontext.NewAdapter(ctx, cfg.Context.RequestTimeout)
	var gatherer prometheus.Gatherer
	if cfg.HTTP.EnableMetrics {
		gatherer = a.Registry
	}
	a.Router = appRouter.New(appRouter.Handlers{
		Business:     apiHandler.NewBusinessHandler(a.Business, adapter, logger),
		Market:       apiHandler.NewMarketHandler(marketUC.New(a.Catalog, a.States, logger), adapter, logger),
		Timeline:     apiHandler.NewTimelineHandler(timelineUC.New(a.Timelines), adapter, logger),
		Notification: apiHandler.NewNotificationHandler(notificationUC.New(a.Notifications), adapter, logger),
		Compliance:   apiHandler.NewComplianceHandler(a.Compliance, adapter, logger),
		Health:       apiHandler.NewHealthHandler(a.Monitor, a.Bus, adapter, logger),
	}, gatherer)

	return a, nil
}

// Start launches the health monitor, its bus failure consumer and the periodic jobs.
func (a *App) Start() {
	a.Monitor.Watch(a.Bus.Failures())
	a.Monitor.Start()
	a.Lifecycle.Register("monitor", func(context.Context) error {
		a.Monitor.Stop()
		return nil
	})
	a.Scheduler.Start()
	a.Lifecycle.Register("scheduler", func(ctx context.Context) error {
		a.Scheduler.Stop(ctx)
		return nil
	})
}

// Shutdown stops every component in reverse order.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Lifecycle.Shutdown(ctx)
}

func (a *App) openStore(ctx context.Context) (repository.DocumentStore, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := pgInfra.Connect(ctx, cfg, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.Lifecycle.Register("postgres", pgInfra.Closer(pool, a.Logger))
		return postgres.NewDocumentStore(pool), nil
	default:
		store, err := boltdb.Open(cfg.Storage.BoltPath, repository.Collections()...)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		a.Lifecycle.Register("bolt", lifecycle.Closer(store.Close))
		return store, nil
	}
}

// coordination picks the state lock and threshold ledger: redis when configured, otherwise
// an in-process lock and the document store.
func (a *App) coordination(client *redislib.Client) (repository.Locker, repository.ThresholdLedger) {
	if client == nil {
		return lock.NewKeyedMutex(), docstore.NewThresholdLedger(a.Store)
	}
	a.Lifecycle.Register("redis", lifecycle.Closer(client.Close))
	prefix := a.Config.Redis.KeyPrefix
	return redisRepo.NewLocker(client, prefix, a.Config.Redis.LockTTL, a.Logger),
		redisRepo.NewThresholdLedger(client, prefix)
}
