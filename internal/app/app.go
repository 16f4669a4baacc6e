package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pharmacy/internal/health"
	"github.com/vladislavdragonenkov/pharmacy/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/order"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/outbox"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/payment"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/pricing"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/rest"
	"github.com/vladislavdragonenkov/pharmacy/internal/storage/memory"
	"github.com/vladislavdragonenkov/pharmacy/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/pharmacy/internal/storage/redis"
	"github.com/vladislavdragonenkov/pharmacy/internal/version"
)

// Run собирает зависимости и запускает HTTP API и ops-сервер.
// Блокируется до отмены контекста или фатальной ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	svc := order.NewService(order.Config{
		Orders:    deps.orders,
		Catalog:   deps.catalog,
		Counter:   deps.counter,
		Outbox:    deps.outbox,
		Documents: deps.documents,
		Flows:     deps.flows,
		Signer:    payment.NewSigner(cfg.Payment.SignatureSecret),
		Pricer:    pricing.NewEngine(deps.catalog, log.WithField("component", "pricing")),
	})

	authCfg := rest.AuthConfig{
		Secret:   cfg.Security.JWTSecret,
		Issuer:   cfg.Security.Issuer,
		Audience: cfg.Security.Audience,
		TokenTTL: cfg.Security.TokenTTL,
		Clients:  make(map[string]rest.Client, len(cfg.Security.Clients)),
	}
	for id, client := range cfg.Security.Clients {
		authCfg.Clients[id] = rest.Client{
			Secret: client.Secret,
			UserID: client.UserID,
			Role:   client.Role,
		}
	}

	accounts := memory.NewAccountStore()
	for _, client := range cfg.Security.Clients {
		accounts.Add(domain.User{ID: client.UserID, Name: client.Name})
	}

	router := rest.NewRouter(
		rest.NewOrderHandler(svc, accounts, deps.idempotency, log.StandardLogger()),
		rest.NewTokenHandler(authCfg),
		rest.NewAuth(authCfg),
		log.StandardLogger(),
	)

	// фоновые воркеры живут в собственном контексте, чтобы остановить их
	// до закрытия соединений
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	deps.startWorkers(workerCtx)

	opsSrv := startOpsServer(ctx, cfg.App.OpsAddr, logger, deps.health)

	apiSrv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.App.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		stopWorkers()
		shutdownHTTP(apiSrv, cfg.HTTP.ShutdownTimeout, logger)
		shutdownHTTP(opsSrv, cfg.HTTP.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		stopWorkers()
		shutdownHTTP(opsSrv, cfg.HTTP.ShutdownTimeout, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// dependencies — собранный набор зависимостей сервиса заказов.
type dependencies struct {
	orders      domain.OrderRepository
	catalog     domain.CatalogRepository
	counter     domain.OrderCounter
	outbox      domain.OutboxRepository
	documents   domain.DocumentStore
	idempotency domain.IdempotencyStore
	flows       *payment.Flows

	health *healthcheck.Handler

	store         *postgres.Store
	redisClient   *goredis.Client
	kafkaProducer *kafka.Producer
	outboxWorker  *outbox.Worker
	cleanupWorker *idempotency.CleanupWorker
}

func buildDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*dependencies, error) {
	deps := &dependencies{
		health: healthcheck.NewHandler(version.GetVersion()),
	}

	// хранилище: PostgreSQL при наличии DSN, иначе in-memory
	if cfg.Postgres.DSN != "" {
		store, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.store = store
		deps.orders = postgres.NewOrderRepository(store)
		deps.catalog = postgres.NewCatalogRepository(store)
		deps.counter = postgres.NewCounterRepository(store)
		deps.outbox = postgres.NewOutboxRepository(store)
		deps.health.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			return store.Ping(context.Background())
		}))
		logger.Info("storage: postgresql")
	} else {
		deps.orders = memory.NewOrderRepository()
		deps.catalog = memory.NewCatalogRepository()
		deps.counter = memory.NewCounterRepository()
		deps.outbox = memory.NewOutboxRepository()
		logger.Warn("storage: in-memory, данные не переживут рестарт")
	}

	// idempotency: Redis при наличии адреса, иначе in-memory с cleanup-воркером
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		deps.redisClient = client
		deps.idempotency = redisstore.NewIdempotencyStore(client, cfg.Idempotency.TTL)
		deps.health.RegisterChecker("redis", healthcheck.NewSimpleChecker("redis", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx).Err()
		}))
		logger.Info("idempotency: redis")
	} else {
		memStore := memory.NewIdempotencyStore(cfg.Idempotency.TTL)
		deps.idempotency = memStore
		deps.cleanupWorker = idempotency.NewCleanupWorker(memStore,
			idempotency.WithLogger(log.WithField("component", "idempotency_cleanup")))
		logger.Info("idempotency: in-memory")
	}

	// kafka опционален: без брокеров события копятся в outbox
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log.WithField("component", "kafka_producer"))
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			deps.kafkaProducer = producer
			deps.outboxWorker = outbox.NewWorker(deps.outbox, kafka.NewOutboxPublisher(producer),
				outbox.WithLogger(log.WithField("component", "outbox_worker")),
				outbox.WithPollInterval(cfg.Outbox.PollInterval),
				outbox.WithBatchSize(cfg.Outbox.BatchSize),
				outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts))
			logger.WithField("brokers", cfg.Kafka.Brokers).Info("kafka producer initialized")
		}
	}
	deps.health.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.outbox, cfg.Outbox.MaxPendingAge))

	deps.documents = memory.NewDocumentStore()

	// NOTE: Using the mock gateway for development/demo purposes
	// In production, replace with the real payment provider client
	gateway := payment.NewMockGateway()
	deps.flows = payment.NewFlows(
		payment.NewCODFlow(),
		payment.NewGatewayFlow(gateway),
		payment.NewUPIFlow(gateway),
	)

	return deps, nil
}

func (d *dependencies) startWorkers(ctx context.Context) {
	if d.outboxWorker != nil {
		go d.outboxWorker.Run(ctx)
	}
	if d.cleanupWorker != nil {
		go d.cleanupWorker.Run(ctx)
	}
}

func (d *dependencies) close(logger *log.Entry) {
	if d.kafkaProducer != nil {
		if err := d.kafkaProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

// startOpsServer поднимает служебный HTTP: метрики и health checks.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
