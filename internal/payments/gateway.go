package payments

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

var (
	ErrUnauthenticated  = errors.New("webhook signature rejected")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

const (
	MetaSalesOrderID = "sales_order_id"
	MetaOrderID      = "order_id"
)

// Gateway is the payment provider as seen by the reconciler.
type Gateway interface {
	// ParseEvent verifies the signature and decodes the event.
	// It fails with ErrUnauthenticated or ErrMalformedPayload.
	ParseEvent(payload []byte, signature string) (Event, error)
	// IntentMetadata re-fetches the metadata attached to a payment intent.
	IntentMetadata(ctx context.Context, intentID string) (map[string]string, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
}

// Event is a verified gateway notification.
type Event struct {
	ID   string
	Type string
	// Status is the payment status the event implies; empty for events we ignore.
	Status orders.PaymentStatus
	// IntentID is the id of the event's object (checkout session or payment intent).
	IntentID string
	// PaymentIntentID is the underlying payment intent, when known.
	PaymentIntentID string
	Metadata        map[string]string
}

func (e Event) refersTo(externalIntentID string) bool {
	return externalIntentID != "" && (e.IntentID == externalIntentID || e.PaymentIntentID == externalIntentID)
}

type CheckoutRequest struct {
	SalesOrderID    string
	OrderID         string
	Title           string
	Quantity        int
	UnitAmountCents int64
	Currency        string
	SuccessURL      string
	CancelURL       string
}

type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"checkout_url"`
}
