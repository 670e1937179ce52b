package infrastructure

import (
	"context"

	"github.com/CristianMorenoC/prueba-tecnica/internal/config"
	"github.com/CristianMorenoC/prueba-tecnica/internal/notifier"
	"github.com/CristianMorenoC/prueba-tecnica/internal/repository"
	"github.com/CristianMorenoC/prueba-tecnica/internal/service"
	transportHTTP "github.com/CristianMorenoC/prueba-tecnica/internal/transport/http"
	transportNATS "github.com/CristianMorenoC/prueba-tecnica/internal/transport/nats"
)

// Bootstrap initialises all dependencies from config and wires up the API
// application. Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, db.Close)

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, func() { _ = rdb.Close() })

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, nc.Close)

	// ── Store and engine wiring ────────────────────────────────────────────────
	bus := transportNATS.NewBus(nc)
	feed := repository.NewChangeFeed(bus)

	funds := repository.NewFundRepo(db)
	accounts := repository.NewAccountRepo(db, feed)
	subs := repository.NewSubscriptionRepo(db, feed)
	ledger := repository.NewLedgerRepo(db)
	uow := repository.NewTxRunner(db, feed)

	var svc service.SubscriptionService = service.NewEngine(funds, accounts, subs, ledger, uow)

	// ── Servers ────────────────────────────────────────────────────────────────
	var servers []Server

	servers = append(servers, transportNATS.NewHandler(svc, nc))

	if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
		servers = append(servers, transportHTTP.NewServer(addr, svc))
	}

	// The notifier can run embedded in the api process or as its own binary.
	if cfg.NotifierEnabled == "true" {
		dispatcher := notifier.NewDispatcher(
			notifier.NewDeliveryClient(bus, rdb),
			repository.NewRedisDeduper(rdb, 0),
			cfg.DispatchWorkers,
			cfg.DispatchTimeout,
		)
		servers = append(servers, notifier.NewWorker(dispatcher, nc))
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// BootstrapNotifier wires only the notification worker and its
// dependencies (redis and nats, no database).
func BootstrapNotifier(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() { _ = rdb.Close() })

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, nc.Close)

	dispatcher := notifier.NewDispatcher(
		notifier.NewDeliveryClient(transportNATS.NewBus(nc), rdb),
		repository.NewRedisDeduper(rdb, 0),
		cfg.DispatchWorkers,
		cfg.DispatchTimeout,
	)

	return NewApp([]Server{notifier.NewWorker(dispatcher, nc)}), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in
// reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
