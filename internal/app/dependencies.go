package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redisstore"
)

const redisKeyPrefix = "storefront:idempotency:"

// runtimeDependencies собирает хранилища выбранного драйвера.
type runtimeDependencies struct {
	checkoutStore   domain.CheckoutStore
	orderRepo       domain.OrderRepository
	productRepo     domain.ProductRepository
	requestRepo     domain.RequestRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository

	storageChecker healthcheck.Checker
	redisChecker   healthcheck.Checker

	closeFn func() error
}

// initRuntimeDependencies открывает хранилище и, если задан RedisURL,
// переносит ключи идемпотентности в Redis.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	var (
		deps *runtimeDependencies
		err  error
	)
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		deps = initMemoryStorage()
	case StorageDriverPostgres:
		deps, err = initPostgresStorage(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, err
	}
	logger.WithField("driver", cfg.StorageDriver).Info("storage initialized")

	if cfg.RedisURL == "" {
		return deps, nil
	}
	client, err := redisstore.Open(ctx, cfg.RedisURL)
	if err != nil {
		_ = deps.close()
		return nil, fmt.Errorf("init redis idempotency store: %w", err)
	}
	deps.idempotencyRepo = redisstore.NewIdempotencyRepository(client, redisKeyPrefix)
	deps.redisChecker = redisChecker(client)
	storageClose := deps.closeFn
	deps.closeFn = func() error {
		var errs []error
		if storageClose != nil {
			errs = append(errs, storageClose())
		}
		errs = append(errs, client.Close())
		return errors.Join(errs...)
	}
	logger.Info("idempotency keys are stored in redis")
	return deps, nil
}

func initMemoryStorage() *runtimeDependencies {
	store := memory.NewStore()
	return &runtimeDependencies{
		checkoutStore:   store,
		orderRepo:       memory.NewOrderRepository(store),
		productRepo:     memory.NewProductRepository(store),
		requestRepo:     memory.NewRequestRepository(store),
		outboxRepo:      memory.NewOutboxRepository(),
		timelineRepo:    memory.NewTimelineRepository(),
		idempotencyRepo: memory.NewIdempotencyRepository(),
		storageChecker:  healthcheck.NewPingChecker("storage", store.Ping),
	}
}

func initPostgresStorage(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres storage requires PostgresDSN")
	}
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("postgres migrations applied")
	}

	return &runtimeDependencies{
		checkoutStore:   store,
		orderRepo:       postgres.NewOrderRepository(store),
		productRepo:     postgres.NewProductRepository(store),
		requestRepo:     postgres.NewRequestRepository(store),
		outboxRepo:      postgres.NewOutboxRepository(store),
		timelineRepo:    postgres.NewTimelineRepository(store),
		idempotencyRepo: postgres.NewIdempotencyRepository(store),
		storageChecker:  healthcheck.NewPingChecker("storage", store.Ping),
		closeFn:         store.Close,
	}, nil
}

func redisChecker(client *redis.Client) healthcheck.Checker {
	return healthcheck.NewPingChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// services связывает сервисы поверх хранилищ. Его используют оба транспорта.
type services struct {
	checkout *checkout.Service
	orders   *orders.Service
	catalog  *catalog.Service
	guard    *idempotency.Guard
}

func buildServices(cfg Config, deps *runtimeDependencies, logger *log.Entry) services {
	orderMetrics := metrics.NewOrderMetrics()

	dispatcher := notification.NewDispatcher(deps.outboxRepo,
		logger.WithField("component", "notification-dispatcher"), orderMetrics)
	ordersSvc := orders.NewService(deps.orderRepo, deps.requestRepo, deps.timelineRepo, dispatcher,
		orders.WithMetrics(orderMetrics),
		orders.WithLogger(logger.WithField("component", "orders-service")),
	)

	engine := checkout.NewEngine(deps.checkoutStore,
		checkout.WithStrictTotals(cfg.StrictTotals),
		checkout.WithMetrics(metrics.NewCheckoutMetrics()),
		checkout.WithLogger(logger.WithField("component", "checkout-engine")),
	)

	return services{
		checkout: checkout.NewService(engine, ordersSvc, logger.WithField("component", "checkout-service")),
		orders:   ordersSvc,
		catalog:  catalog.NewService(deps.productRepo, logger.WithField("component", "catalog-service")),
		guard: idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL,
			logger.WithField("component", "idempotency-guard")),
	}
}
