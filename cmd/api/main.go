package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fairwaylabs/fairway-pos-backend/api/routes"
	"github.com/fairwaylabs/fairway-pos-backend/internal/customers"
	"github.com/fairwaylabs/fairway-pos-backend/internal/dispatch"
	"github.com/fairwaylabs/fairway-pos-backend/internal/giftcards"
	"github.com/fairwaylabs/fairway-pos-backend/internal/ledger"
	"github.com/fairwaylabs/fairway-pos-backend/internal/receipts"
	"github.com/fairwaylabs/fairway-pos-backend/internal/refunds"
	"github.com/fairwaylabs/fairway-pos-backend/internal/terminal"
	"github.com/fairwaylabs/fairway-pos-backend/internal/voids"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/events"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/metrics"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/migrate"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	var publisher events.Publisher
	if cfg.PubSub.Enabled {
		pubsubPublisher, err := events.NewPubSubPublisher(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub publisher", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubPublisher.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub publisher", err)
			}
		}()
		publisher = pubsubPublisher
	} else {
		publisher = events.NewLogPublisher(logg)
	}

	var term terminal.Terminal
	if cfg.Terminal.Provider == "square" {
		squareTerminal, err := terminal.NewSquareTerminal(context.Background(), cfg.Terminal, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap square terminal", err)
			os.Exit(1)
		}
		term = squareTerminal
	} else {
		term = terminal.NewSimulator(logg)
	}

	giftCardLedger, err := giftcards.NewRedisLedger(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gift card ledger", err)
		os.Exit(1)
	}

	directory, err := customers.NewDirectory(customers.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create customer directory", err)
		os.Exit(1)
	}

	dispatcher, err := dispatch.New(term, giftCardLedger, directory)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment dispatcher", err)
		os.Exit(1)
	}

	var receiptSender receipts.Sender = receipts.NoopSender{}
	if cfg.Receipts.Enabled {
		httpSender, err := receipts.NewHTTPSender(cfg.Receipts, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create receipt sender", err)
			os.Exit(1)
		}
		receiptSender = httpSender
	}

	defaultTaxRate, err := cfg.Pricing.TaxRate()
	if err != nil {
		logg.Error(context.Background(), "invalid default tax rate", err)
		os.Exit(1)
	}
	tierRates, err := cfg.Pricing.MembershipTierRates()
	if err != nil {
		logg.Error(context.Background(), "invalid membership tier rates", err)
		os.Exit(1)
	}

	// One lock table across all three services so payments, refunds and voids
	// against the same transaction never interleave.
	locks := ledger.NewLocks()
	transactionRepo := ledger.NewRepository(dbClient.DB())

	ledgerService, err := ledger.NewService(ledger.Config{
		Repo:           transactionRepo,
		Dispatcher:     dispatcher,
		Directory:      directory,
		Publisher:      publisher,
		Receipts:       receiptSender,
		Metrics:        settlementMetrics,
		Logger:         logg,
		Locks:          locks,
		DefaultTaxRate: defaultTaxRate,
		TierRates:      tierRates,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	refundService, err := refunds.NewService(refunds.Config{
		Repo:      transactionRepo,
		Terminal:  term,
		GiftCards: giftCardLedger,
		Directory: directory,
		Publisher: publisher,
		Metrics:   settlementMetrics,
		Logger:    logg,
		Locks:     locks,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refund service", err)
		os.Exit(1)
	}

	voidService, err := voids.NewService(voids.Config{
		Repo:      transactionRepo,
		Terminal:  term,
		Publisher: publisher,
		Metrics:   settlementMetrics,
		Logger:    logg,
		Locks:     locks,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create void service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Cfg:      cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Registry: registry,
			Ledger:   ledgerService,
			Refunds:  refundService,
			Voids:    voidService,
		}),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
