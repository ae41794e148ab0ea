package orders

import (
	"encoding/json"
	"time"
)

const (
	EventInvoiceRequested = "InvoiceRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the Event* constants
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "marketplace-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // sales order id
	Payload       json.RawMessage `json:"payload"`
}

type InvoiceRequestedPayload struct {
	SalesOrderID string `json:"sales_order_id"`
}
