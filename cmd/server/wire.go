package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"

	auditapi "arsenal/internal/audit"
	cataloghandler "arsenal/internal/catalog/handler"
	catalogservice "arsenal/internal/catalog/service"
	catalogstore "arsenal/internal/catalog/store"
	"arsenal/internal/documents"
	intakehandler "arsenal/internal/intake/handler"
	intakemetrics "arsenal/internal/intake/metrics"
	intakeservice "arsenal/internal/intake/service"
	invhandler "arsenal/internal/inventory/handler"
	invmetrics "arsenal/internal/inventory/metrics"
	invservice "arsenal/internal/inventory/service"
	invstore "arsenal/internal/inventory/store"
	jwttoken "arsenal/internal/jwt_token"
	licensehandler "arsenal/internal/license/handler"
	licenseservice "arsenal/internal/license/service"
	licensestore "arsenal/internal/license/store"
	"arsenal/internal/payment/consumer"
	paymentmetrics "arsenal/internal/payment/metrics"
	paymentservice "arsenal/internal/payment/service"
	"arsenal/internal/platform/config"
	"arsenal/internal/platform/kafka"
	"arsenal/internal/platform/lock"
	"arsenal/internal/platform/metrics"
	"arsenal/internal/platform/migrations"
	"arsenal/internal/platform/redis"
	quotahandler "arsenal/internal/quota/handler"
	quotametrics "arsenal/internal/quota/metrics"
	quotaservice "arsenal/internal/quota/service"
	quotastore "arsenal/internal/quota/store"
	reshandler "arsenal/internal/reservation/handler"
	resmetrics "arsenal/internal/reservation/metrics"
	resservice "arsenal/internal/reservation/service"
	resstore "arsenal/internal/reservation/store"
	httptransport "arsenal/internal/transport/http"
	workflowhandler "arsenal/internal/workflow/handler"
	workflowmetrics "arsenal/internal/workflow/metrics"
	workflowservice "arsenal/internal/workflow/service"
	workflowstore "arsenal/internal/workflow/store"
	audit "arsenal/pkg/platform/audit"
	"arsenal/pkg/platform/audit/publisher"
	"arsenal/pkg/platform/audit/relay"
	auditmemory "arsenal/pkg/platform/audit/store/memory"
	auditpostgres "arsenal/pkg/platform/audit/store/postgres"
	"arsenal/pkg/platform/tx"
)

const (
	jwtIssuer        = "arsenal"
	jwtAudience      = "arsenal-operators"
	auditBufferSize  = 1024
	paymentPartition = 3
)

type application struct {
	router  http.Handler
	workers []func(ctx context.Context) error
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// persistence groups the store implementations picked at startup.
type persistence struct {
	db           *sql.DB
	catalog      catalogservice.Store
	inventory    invservice.Store
	quota        quotaservice.Store
	reservations *reservationStores
	licenses     licenseservice.Store
	groups       workflowservice.Store
	audit        audit.Store
	outbox       *auditpostgres.Store
	txRunner     tx.Runner
}

type reservationStores struct {
	resservice.Store
	resservice.MembershipStore
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*application, error) {
	app := &application{}

	p, err := openPersistence(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if p.db != nil {
		app.closers = append(app.closers, func() { _ = p.db.Close() })
	}

	platformMetrics := metrics.New()
	locker, err := openLocker(ctx, cfg, log, app)
	if err != nil {
		app.close()
		return nil, err
	}
	locker = lock.NewTimed(locker, platformMetrics)

	// Postgres audit rows share the business transaction, so emit stays
	// synchronous there; the in-memory sink can drain in the background.
	var pubOpts []publisher.Option
	pubOpts = append(pubOpts, publisher.WithLogger(log))
	if p.outbox == nil {
		pubOpts = append(pubOpts, publisher.WithAsyncBuffer(auditBufferSize))
	}
	auditPublisher := publisher.NewPublisher(p.audit, pubOpts...)
	app.closers = append(app.closers, auditPublisher.Close)

	catalogSvc := catalogservice.New(p.catalog, catalogservice.WithLogger(log))
	inventorySvc := invservice.New(p.inventory, catalogSvc,
		invservice.WithLogger(log),
		invservice.WithAuditPublisher(auditPublisher),
		invservice.WithMetrics(invmetrics.New()),
	)
	quotaSvc := quotaservice.New(p.quota,
		quotaservice.WithLogger(log),
		quotaservice.WithAuditPublisher(auditPublisher),
		quotaservice.WithMetrics(quotametrics.New()),
		quotaservice.WithLocker(locker),
	)
	resOpts := []resservice.Option{
		resservice.WithLogger(log),
		resservice.WithAuditPublisher(auditPublisher),
		resservice.WithMetrics(resmetrics.New()),
		resservice.WithLocker(locker),
	}
	if p.txRunner != nil {
		resOpts = append(resOpts, resservice.WithTxRunner(p.txRunner))
	}
	reservationSvc := resservice.New(p.reservations, p.reservations, quotaSvc, inventorySvc, catalogSvc, catalogSvc, resOpts...)
	inventorySvc.SetReservations(reservationSvc)
	licenseSvc := licenseservice.New(p.licenses, licenseservice.WithLogger(log))

	documentGroups, documentsHandler, err := openDocuments(cfg, log)
	if err != nil {
		app.close()
		return nil, err
	}

	wfOpts := []workflowservice.Option{
		workflowservice.WithLogger(log),
		workflowservice.WithAuditPublisher(auditPublisher),
		workflowservice.WithMetrics(workflowmetrics.New()),
		workflowservice.WithLocker(locker),
	}
	if p.txRunner != nil {
		wfOpts = append(wfOpts, workflowservice.WithTxRunner(p.txRunner))
	}
	workflowSvc := workflowservice.New(p.groups, documentGroups, licenseSvc, quotaSvc, reservationSvc, wfOpts...)
	reservationSvc.SetGroups(workflowSvc)

	intakeSvc := intakeservice.New(inventorySvc, catalogSvc,
		intakeservice.WithLogger(log),
		intakeservice.WithAuditPublisher(auditPublisher),
		intakeservice.WithMetrics(intakemetrics.New()),
	)
	paymentMetrics := paymentmetrics.New()
	paymentSvc := paymentservice.New(inventorySvc, reservationSvc,
		paymentservice.WithLogger(log),
		paymentservice.WithMetrics(paymentMetrics),
		paymentservice.WithLocker(locker),
	)

	handlers := []httptransport.Registrar{
		cataloghandler.New(catalogSvc, log),
		invhandler.New(inventorySvc, log),
		quotahandler.New(quotaSvc, log),
		reshandler.New(reservationSvc, log),
		licensehandler.New(licenseSvc, log),
		workflowhandler.New(workflowSvc, log),
		intakehandler.New(intakeSvc, log),
		auditapi.NewHandler(p.audit, log),
	}
	if documentsHandler != nil {
		handlers = append(handlers, documentsHandler)
	}
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)
	app.router = httptransport.NewRouter(log, platformMetrics, jwtService, handlers...)

	if err := wireKafka(ctx, cfg, log, app, p, paymentSvc, paymentMetrics); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func openPersistence(ctx context.Context, cfg config.Server, log *slog.Logger) (*persistence, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		reservations := resstore.NewInMemory()
		return &persistence{
			catalog:      catalogstore.NewInMemory(),
			inventory:    invstore.NewInMemory(),
			quota:        quotastore.NewInMemory(),
			reservations: &reservationStores{Store: reservations, MembershipStore: reservations},
			licenses:     licensestore.NewInMemory(),
			groups:       workflowstore.NewInMemory(),
			audit:        auditmemory.NewInMemoryStore(),
		}, nil
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	reservations := resstore.NewPostgres(db)
	outbox := auditpostgres.New(db)
	return &persistence{
		db:           db,
		catalog:      catalogstore.NewPostgres(db),
		inventory:    invstore.NewPostgres(db),
		quota:        quotastore.NewPostgres(db),
		reservations: &reservationStores{Store: reservations, MembershipStore: reservations},
		licenses:     licensestore.NewPostgres(db),
		groups:       workflowstore.NewPostgres(db),
		audit:        outbox,
		outbox:       outbox,
		txRunner:     tx.NewPostgres(db).WithTimeout(cfg.TxTimeout),
	}, nil
}

// openLocker prefers Redis so several replicas share one lock space.
func openLocker(ctx context.Context, cfg config.Server, log *slog.Logger, app *application) (lock.Locker, error) {
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		log.Warn("REDIS_URL not set, using in-process locks; run a single replica")
		return lock.NewKeyed(), nil
	}
	app.closers = append(app.closers, func() { _ = rdb.Close() })
	return lock.NewRedis(rdb, lock.WithTTL(cfg.LockTTL), lock.WithLogger(log)), nil
}

// openDocuments returns the document group checker, plus a handler when the
// in-memory stand-in is used so operators can record uploads.
func openDocuments(cfg config.Server, log *slog.Logger) (workflowservice.DocumentGroupService, httptransport.Registrar, error) {
	if cfg.DocumentsURL == "" {
		log.Warn("DOCUMENTS_URL not set, tracking required documents in memory")
		store := documents.NewInMemory()
		return store, documents.NewHandler(store, log), nil
	}
	client, err := documents.NewHTTPClient(cfg.DocumentsURL, cfg.DocumentsTimeout)
	if err != nil {
		return nil, nil, err
	}
	return client, nil, nil
}

func wireKafka(
	ctx context.Context,
	cfg config.Server,
	log *slog.Logger,
	app *application,
	p *persistence,
	settler consumer.Settler,
	paymentMetrics *paymentmetrics.Metrics,
) error {
	if !cfg.Kafka.Enabled() {
		log.Warn("KAFKA_BROKERS not set, payment consumer and audit relay disabled")
		return nil
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, producer.Close)
	if err := kafka.EnsureTopics(ctx, producer, paymentPartition, cfg.Kafka.PaymentTopic, cfg.Kafka.AuditTopic); err != nil {
		return err
	}

	if p.outbox != nil {
		r := relay.New(p.outbox, producer, cfg.Kafka.AuditTopic,
			relay.WithInterval(cfg.Kafka.RelayInterval),
			relay.WithLogger(log),
		)
		app.workers = append(app.workers, r.Run)
	} else {
		log.Warn("audit relay needs the postgres outbox, not publishing audit events")
	}

	client, err := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.PaymentTopic)
	if err != nil {
		return err
	}
	app.closers = append(app.closers, client.Close)
	c := consumer.New(client, settler,
		consumer.WithLogger(log),
		consumer.WithMetrics(paymentMetrics),
	)
	app.workers = append(app.workers, c.Run)
	return nil
}
