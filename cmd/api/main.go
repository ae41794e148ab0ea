package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	"github.com/ariefcatur/go-marketplace-orders/internal/httpx"
	"github.com/ariefcatur/go-marketplace-orders/internal/invoices"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/ledger"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payments"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	zerolog.SetGlobalLevel(cfg.Level())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Str("service", cfg.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.InvoiceTopic, 1024)
	prod.Start()

	blobs, err := invoices.NewS3Store(ctx, invoices.S3Config{
		Bucket:   cfg.S3Bucket,
		Region:   cfg.S3Region,
		Endpoint: cfg.S3Endpoint,
		Prefix:   cfg.S3Prefix,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("s3")
	}

	store := &ledger.Store{DB: db}
	fanout := &notify.Fanout{Store: store, Broker: &notify.RedisBroker{Redis: rdb}}
	queue := &invoices.KafkaQueue{Producer: prod, Service: cfg.ServiceName}
	engine := &orders.Engine{Store: store, Notifier: fanout, Invoices: queue, Currency: cfg.Currency}
	pay := &payments.Service{
		Store:       store,
		Engine:      engine,
		Gateway:     payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		Dedup:       &redisx.Dedup{Redis: rdb, Service: cfg.ServiceName + "-webhooks"},
		Currency:    cfg.Currency,
		FrontendURL: cfg.FrontendURL,
	}

	router := httpx.NewRouter()
	handlers := &httpx.Handlers{
		Orders:        &httpx.OrdersHandler{Engine: engine, Payments: pay},
		Webhooks:      &httpx.WebhookHandler{Payments: pay},
		Notifications: &httpx.NotificationsHandler{Fanout: fanout},
		Invoices: &httpx.InvoicesHandler{Service: &invoices.Service{
			Orders:   store,
			Invoices: store,
			Blobs:    blobs,
			Queue:    queue,
			URLTTL:   cfg.InvoiceURLTTL,
		}},
		Auth: &auth.Verifier{Secret: []byte(cfg.JWTSecret)},
	}
	handlers.Mount(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		// live websocket streams end with the process context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}

	fanout.Wait()
	prod.Close() // flush queued invoice jobs
	prod.WaitClosed()
}
