package invoices

import (
	"context"
	"errors"
	"time"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

// Worker consumes invoice jobs. A job that keeps failing is reported to the
// buyer and then committed; it is never redelivered forever.
type Worker struct {
	Pipeline    *Pipeline
	Orders      orders.Store
	Notifier    orders.Notifier
	MaxAttempts uint
	// InitialInterval is the first retry delay; it doubles up to MaxInterval.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (w *Worker) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		log.Error().Err(err).Int64("offset", m.Offset).Msg("invoices: dropping undecodable job")
		return nil
	}
	if env.EventType != orders.EventInvoiceRequested {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.InvoiceRequestedPayload](env.Payload)
	if err != nil || p.SalesOrderID == "" {
		log.Error().Err(err).Str("event_id", env.EventID).Msg("invoices: dropping job without sales order")
		return nil
	}

	ref, err := w.generate(ctx, p.SalesOrderID)
	if err == nil {
		log.Info().Str("sales_order_id", p.SalesOrderID).Str("document_ref", ref).Msg("invoices: job done")
		return nil
	}
	if ctx.Err() != nil {
		// shutting down; leave the offset uncommitted
		return ctx.Err()
	}
	if errors.Is(err, ErrInFlight) {
		// the lease holder stores the document
		log.Info().Str("sales_order_id", p.SalesOrderID).Msg("invoices: another worker is generating, skipping")
		return nil
	}

	log.Error().Err(err).Str("sales_order_id", p.SalesOrderID).Msg("invoices: giving up")
	w.notifyFailure(ctx, p.SalesOrderID)
	return nil
}

func (w *Worker) generate(ctx context.Context, salesOrderID string) (string, error) {
	b := backoff.NewExponentialBackOff()
	if w.InitialInterval > 0 {
		b.InitialInterval = w.InitialInterval
	}
	if w.MaxInterval > 0 {
		b.MaxInterval = w.MaxInterval
	}
	tries := w.MaxAttempts
	if tries == 0 {
		tries = 5
	}

	attempt := 0
	return backoff.Retry(ctx, func() (string, error) {
		attempt++
		ref, err := w.Pipeline.Generate(ctx, salesOrderID)
		switch {
		case err == nil:
			return ref, nil
		case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, ErrInFlight):
			return "", backoff.Permanent(err)
		default:
			log.Warn().Err(err).Int("attempt", attempt).Str("sales_order_id", salesOrderID).Msg("invoices: attempt failed")
			return "", err
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

func (w *Worker) notifyFailure(ctx context.Context, salesOrderID string) {
	if w.Notifier == nil || w.Orders == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	so, err := w.Orders.GetSalesOrder(ctx, salesOrderID)
	if err != nil {
		log.Error().Err(err).Str("sales_order_id", salesOrderID).Msg("invoices: cannot find sales order to report failure")
		return
	}
	o, err := w.Orders.GetOrder(ctx, so.OrderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", so.OrderID).Msg("invoices: cannot find order to report failure")
		return
	}
	msg := "We could not generate the invoice for order " + o.ID + ". You can request it again from the order page."
	if err := w.Notifier.Notify(ctx, o.BuyerID, msg); err != nil {
		log.Error().Err(err).Str("user_id", o.BuyerID).Msg("invoices: failure notification not stored")
	}
}
