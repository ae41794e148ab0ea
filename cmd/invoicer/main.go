package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	"github.com/ariefcatur/go-marketplace-orders/internal/invoices"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/ledger"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
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
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Str("service", cfg.ServiceName+"-invoicer").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

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
	worker := &invoices.Worker{
		Pipeline: &invoices.Pipeline{
			Store:    store,
			Blobs:    blobs,
			Lock:     &redisx.Lock{Redis: rdb, TTL: redisx.TTLInvoiceLock},
			Currency: cfg.Currency,
		},
		Orders:      store,
		Notifier:    fanout,
		MaxAttempts: cfg.InvoiceMaxAttempts,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InvoiceGroup, cfg.InvoiceTopic, cfg.InvoiceWorkers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("group", cfg.InvoiceGroup).Str("topic", cfg.InvoiceTopic).Int("workers", cfg.InvoiceWorkers).Msg("invoice consumer started")
		return cons.Start(gctx, worker.Handle)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("consumer exit")
	}
	fanout.Wait()
}
