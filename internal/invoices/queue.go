package invoices

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KafkaQueue hands invoice jobs to the invoicer workers.
type KafkaQueue struct {
	Producer Publisher
	Service  string
}

func (q *KafkaQueue) RequestInvoice(ctx context.Context, salesOrderID string) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventInvoiceRequested,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      q.Service,
		CorrelationID: salesOrderID,
		Payload:       kafkax.MustMarshal(orders.InvoiceRequestedPayload{SalesOrderID: salesOrderID}),
	}
	return q.Producer.Publish(ctx, orders.PartitionKey(salesOrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventInvoiceRequested)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
