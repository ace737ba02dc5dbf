package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// Run поднимает gRPC, HTTP API, сервер метрик и фоновые воркеры и держит их
// до отмены ctx. После отмены возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	// Без Kafka витрина продолжает работу: уведомления уходят в лог.
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	svc := buildServices(cfg, deps, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	if deps.redisChecker != nil {
		healthHandler.RegisterChecker("redis", deps.redisChecker)
	}

	grpcServer, grpcHealth := newGRPCServer(svc, logger)
	apiServer := &http.Server{
		Handler: httpapi.NewRouter(
			httpapi.NewHandler(svc.checkout, svc.orders, svc.catalog, svc.guard, logger.WithField("layer", "http")),
			healthHandler, cfg.RequestTimeout),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	if err := prometheus.Register(version.Collector()); err != nil && !isAlreadyRegistered(err) {
		logger.WithError(err).Warn("failed to register build info")
	}
	metricsServer := &http.Server{Handler: metricsMux(healthHandler), ReadHeaderTimeout: readHeaderTimeout}

	listeners, err := listenAll(cfg.GRPCAddr, cfg.HTTPAddr, cfg.MetricsAddr)
	if err != nil {
		return err
	}

	publisher, dlq := outboxPublishers(cfg, producer, logger)
	outboxWorker := outbox.NewWorker(deps.outboxRepo, publisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics()),
		outbox.WithDLQPublisher(dlq),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	sweeper := idempotency.NewSweeper(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-sweeper")),
		idempotency.WithMetrics(metrics.NewIdempotencyMetrics()),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", listeners[0].Addr())
		if err := grpcServer.Serve(listeners[0]); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("HTTP API слушает %s", listeners[1].Addr())
		return serveHTTP(apiServer, listeners[1], "api")
	})
	g.Go(func() error {
		logger.Infof("метрики доступны по адресу %s/metrics", listeners[2].Addr())
		return serveHTTP(metricsServer, listeners[2], "metrics")
	})
	g.Go(func() error {
		outboxWorker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		shutdownServers(cfg.ShutdownTimeout, grpcServer, logger, apiServer, metricsServer)
		return nil
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	shutdownCheckout(shutdownCtx, svc.checkout, logger)
	// Уведомления, поставленные после последнего опроса, уходят до закрытия producer.
	if drained := outboxWorker.Drain(shutdownCtx); drained > 0 {
		logger.WithField("messages", drained).Info("outbox drained on shutdown")
	}

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

// newGRPCServer регистрирует CheckoutService, метрики, health и reflection.
func newGRPCServer(svc services, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	grpcsvc.RegisterCheckoutServiceServer(server, grpcsvc.NewCheckoutService(
		svc.checkout, svc.orders, svc.catalog, svc.guard, logger.WithField("layer", "grpc")))
	grpcMetrics.InitializeMetrics(server)
	reflection.Register(server)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server, healthServer
}

func isAlreadyRegistered(err error) bool {
	var are prometheus.AlreadyRegisteredError
	return errors.As(err, &are)
}

// metricsMux отдаёт /metrics для Prometheus и пробы для оркестратора.
func metricsMux(healthHandler *healthcheck.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func listenAll(addrs ...string) ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("listen %s: %w", addr, err)
		}
		listeners = append(listeners, lis)
	}
	return listeners, nil
}

func serveHTTP(srv *http.Server, lis net.Listener, name string) error {
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// shutdownServers останавливает gRPC через GracefulStop и HTTP-серверы
// через Shutdown. По истечении timeout gRPC останавливается принудительно.
func shutdownServers(timeout time.Duration, grpcServer *grpc.Server, logger *log.Entry, servers ...*http.Server) {
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		grpcServer.Stop()
	}

	for _, srv := range servers {
		shutdownHTTP(srv, timeout, logger)
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

// shutdownCheckout ждёт фоновые рассылки после оформленных заказов.
func shutdownCheckout(ctx context.Context, svc *checkout.Service, logger *log.Entry) {
	if svc == nil {
		return
	}
	if err := svc.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("checkout notifications did not finish before shutdown")
	}
}
